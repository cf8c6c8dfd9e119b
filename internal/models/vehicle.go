package models

import "time"

// Vehicle represents a fleet vehicle assigned to drivers.
type Vehicle struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID uint64 `gorm:"not null;index"` // Owning organization.

	PlateNumber string `gorm:"type:text;not null"` // License plate.
	Maker       string `gorm:"type:text"`          // Manufacturer.
	Model       string `gorm:"type:text"`          // Model name.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
