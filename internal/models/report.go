package models

import (
	"time"

	"gorm.io/datatypes"
)

// Report submission channels.
const (
	// SubmittedViaLiff marks a report submitted through the driver mobile form.
	SubmittedViaLiff = "liff"
	// SubmittedViaAdmin marks a report entered by an administrator.
	SubmittedViaAdmin = "admin"
)

// PreWorkReport is the legally mandated pre-work check. One row per driver
// and date; existence of a row means "submitted".
type PreWorkReport struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID uint64 `gorm:"not null;index"`                                // Owning organization.
	DriverID       uint64 `gorm:"not null;uniqueIndex:idx_pre_work_driver_date"` // Reporting driver.

	ReportDate string  `gorm:"type:date;not null;uniqueIndex:idx_pre_work_driver_date"` // Civil date "YYYY-MM-DD".
	VehicleID  *uint64 `gorm:"index"`                                                   // Vehicle used that day.

	Details datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Whitelisted form fields.

	SubmittedVia string `gorm:"type:text;not null;default:'liff'"` // liff or admin.
	ExpiresAt    string `gorm:"type:date"`                         // Retention deadline, computed at insert.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// PostWorkReport is the end-of-shift report. One row per driver and date.
type PostWorkReport struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID uint64 `gorm:"not null;index"`                                 // Owning organization.
	DriverID       uint64 `gorm:"not null;uniqueIndex:idx_post_work_driver_date"` // Reporting driver.

	ReportDate string  `gorm:"type:date;not null;uniqueIndex:idx_post_work_driver_date"` // Civil date "YYYY-MM-DD".
	VehicleID  *uint64 `gorm:"index"`                                                    // Vehicle used that day.

	Details datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Whitelisted form fields.

	SubmittedVia string `gorm:"type:text;not null;default:'liff'"` // liff or admin.
	ExpiresAt    string `gorm:"type:date"`                         // Retention deadline, computed at insert.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// DailyInspection is the daily vehicle inspection record.
type DailyInspection struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID uint64 `gorm:"not null;index"`                                  // Owning organization.
	DriverID       uint64 `gorm:"not null;uniqueIndex:idx_inspection_driver_date"` // Inspecting driver.

	InspectionDate string  `gorm:"type:date;not null;uniqueIndex:idx_inspection_driver_date"` // Civil date "YYYY-MM-DD".
	VehicleID      *uint64 `gorm:"index"`                                                     // Inspected vehicle.

	Details datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Whitelisted check items.

	SubmittedVia string `gorm:"type:text;not null;default:'liff'"` // liff or admin.
	ExpiresAt    string `gorm:"type:date"`                         // Retention deadline, computed at insert.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// AccidentReport records a traffic accident. Retained longer than daily
// reports; multiple rows per driver are allowed.
type AccidentReport struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID uint64 `gorm:"not null;index"` // Owning organization.
	DriverID       uint64 `gorm:"not null;index"` // Reporting driver.

	OccurredAt time.Time `gorm:"not null"` // Accident time.
	VehicleID  *uint64   `gorm:"index"`    // Involved vehicle.

	Details datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Whitelisted form fields.

	IsSerious bool   `gorm:"not null;default:false"`            // Serious-accident flag.
	Status    string `gorm:"type:text;not null;default:'open'"` // Follow-up status.

	SubmittedVia string `gorm:"type:text;not null;default:'liff'"` // liff or admin.
	ExpiresAt    string `gorm:"type:date"`                         // Retention deadline, computed at insert.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
