package models

import "time"

// Admin roles.
const (
	// RoleOrgAdmin grants full control over an organization.
	RoleOrgAdmin = "org_admin"
	// RoleManager grants day-to-day report review access.
	RoleManager = "manager"
)

// AdminUser represents a dashboard account for an organization manager.
type AdminUser struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID uint64 `gorm:"not null;index"` // Owning organization.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	Password string `gorm:"type:text;not null"`             // Hashed password.
	Name     string `gorm:"type:text;not null"`             // Display name.

	Role   string `gorm:"type:text;not null;default:'manager'"` // org_admin or manager.
	Active bool   `gorm:"not null;default:true"`                // Whether the admin can sign in.

	TOTPSecret string `gorm:"type:text"` // TOTP secret for MFA; empty when MFA is off.

	LineUserID *string `gorm:"type:text;uniqueIndex"` // Bound LINE account for summary notifications.

	LineRegistrationToken          *string    `gorm:"type:text;index"` // Single-use LINE linking token; nil once claimed.
	LineRegistrationTokenExpiresAt *time.Time ``                       // Token expiry; cleared together with the token.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
