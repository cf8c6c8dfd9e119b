package models

import "time"

// Shift statuses a driver may request or the system may set.
const (
	// ShiftStatusWorking marks a normal working day.
	ShiftStatusWorking = "working"
	// ShiftStatusDayOff marks a requested day off.
	ShiftStatusDayOff = "day_off"
	// ShiftStatusHalfAM marks a morning half day.
	ShiftStatusHalfAM = "half_am"
	// ShiftStatusHalfPM marks an afternoon half day.
	ShiftStatusHalfPM = "half_pm"
	// ShiftStatusAbsent marks an absence, set by the emergency side effect.
	ShiftStatusAbsent = "absent"
)

// Shift submitters.
const (
	// ShiftSubmittedByDriver marks a driver-requested shift entry.
	ShiftSubmittedByDriver = "driver"
	// ShiftSubmittedByAdmin marks an admin-entered shift entry.
	ShiftSubmittedByAdmin = "admin"
	// ShiftSubmittedBySystem marks an entry written by the emergency side effect.
	ShiftSubmittedBySystem = "system"
)

// RequestableShiftStatuses lists the statuses a driver may request directly.
// Absent is excluded; it is only written by the emergency side effect.
var RequestableShiftStatuses = []string{
	ShiftStatusWorking, ShiftStatusDayOff, ShiftStatusHalfAM, ShiftStatusHalfPM,
}

// Shift is one driver's planned status for one civil date. Unique per
// driver and date; upserts replace the prior status.
type Shift struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID uint64 `gorm:"not null;index"`                              // Owning organization.
	DriverID       uint64 `gorm:"not null;uniqueIndex:idx_shifts_driver_date"` // Driver.

	ShiftDate string `gorm:"type:date;not null;uniqueIndex:idx_shifts_driver_date"` // Civil date "YYYY-MM-DD".

	Status string  `gorm:"type:text;not null"` // One of the shift status constants.
	Note   *string `gorm:"type:text"`          // Free-form note; the emergency side effect writes the reason here.

	SubmittedBy string `gorm:"type:text;not null;default:'driver'"` // driver, admin or system.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
