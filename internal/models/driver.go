package models

import "time"

// Driver statuses.
const (
	// DriverStatusActive marks a driver as currently working.
	DriverStatusActive = "active"
	// DriverStatusInactive marks a driver as suspended or retired.
	DriverStatusInactive = "inactive"
)

// Driver represents a transport driver who submits daily reports via LINE.
type Driver struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID uint64 `gorm:"not null;index"` // Owning organization.

	Name  string `gorm:"type:text;not null"` // Full name.
	Phone string `gorm:"type:text"`          // Contact phone number.

	Status string `gorm:"type:text;not null;default:'active'"` // active or inactive.

	DefaultVehicleID *uint64 `gorm:"index"` // Vehicle pre-selected on report forms.

	LineUserID *string `gorm:"type:text;uniqueIndex"` // Bound LINE account; nil until linked.

	RegistrationToken          *string    `gorm:"type:text;index"` // Single-use linking token; nil once claimed.
	RegistrationTokenExpiresAt *time.Time ``                       // Token expiry; cleared together with the token.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
