package models

import "time"

// Emergency report types.
const (
	// EmergencyTypeAbsent reports sickness or sudden absence.
	EmergencyTypeAbsent = "absent"
	// EmergencyTypeVehicleTrouble reports a vehicle breakdown.
	EmergencyTypeVehicleTrouble = "vehicle_trouble"
	// EmergencyTypeAccident reports a traffic accident.
	EmergencyTypeAccident = "accident"
	// EmergencyTypeFamily reports a family emergency.
	EmergencyTypeFamily = "family"
	// EmergencyTypeOther reports any other urgent matter.
	EmergencyTypeOther = "other"
)

// EmergencyTypes lists the accepted emergency report types.
var EmergencyTypes = []string{
	EmergencyTypeAbsent, EmergencyTypeVehicleTrouble, EmergencyTypeAccident,
	EmergencyTypeFamily, EmergencyTypeOther,
}

// EmergencyTypeLabel returns the human-readable label for an emergency type.
func EmergencyTypeLabel(reportType string) string {
	switch reportType {
	case EmergencyTypeAbsent:
		return "体調不良・欠勤"
	case EmergencyTypeVehicleTrouble:
		return "車両故障"
	case EmergencyTypeAccident:
		return "事故"
	case EmergencyTypeFamily:
		return "家庭の事情"
	default:
		return "その他"
	}
}

// EmergencyReport records an urgent notification from a driver. Creating one
// also rewrites the driver's shift for that day to absent.
type EmergencyReport struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrganizationID uint64 `gorm:"not null;index"` // Owning organization.
	DriverID       uint64 `gorm:"not null;index"` // Reporting driver.

	ReportDate string `gorm:"type:date;not null"` // Civil date "YYYY-MM-DD".

	ReportType string  `gorm:"type:text;not null"` // One of the emergency type constants.
	Reason     *string `gorm:"type:text"`          // Free-form reason.

	SubmittedVia string `gorm:"type:text;not null;default:'liff'"` // Submission channel.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
