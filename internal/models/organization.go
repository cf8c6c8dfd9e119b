package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Organization is the multi-tenant boundary. Every driver, admin and report
// belongs to exactly one organization.
type Organization struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null"` // Display name.

	LineChannelAccessToken *string `gorm:"type:text"` // Outbound LINE channel credential; nil when messaging is not configured.

	Settings datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Per-organization settings map, including notification toggles.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// NotificationToggle is one named notification switch with its send time.
type NotificationToggle struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time"` // "HH:MM" in the organization's civil timezone.
}

// NotificationSettings groups the per-organization notification toggles.
type NotificationSettings struct {
	MorningReminder NotificationToggle `json:"morningReminder"`
	PreWorkAlert    NotificationToggle `json:"preWorkAlert"`
	PostWorkAlert   NotificationToggle `json:"postWorkAlert"`
	AdminSummary    NotificationToggle `json:"adminSummary"`
}

// DefaultNotificationSettings returns the settings applied when an
// organization has never saved notification preferences.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		MorningReminder: NotificationToggle{Enabled: true, Time: "08:00"},
		PreWorkAlert:    NotificationToggle{Enabled: true, Time: "09:30"},
		PostWorkAlert:   NotificationToggle{Enabled: true, Time: "19:00"},
		AdminSummary:    NotificationToggle{Enabled: true, Time: "10:00"},
	}
}

// organizationSettings is the envelope stored in Organization.Settings.
type organizationSettings struct {
	Notification *NotificationSettings `json:"notification,omitempty"`
}

// NotificationSettingsFromJSON extracts the notification settings from an
// organization settings blob, falling back to defaults when absent or invalid.
func NotificationSettingsFromJSON(raw datatypes.JSON) NotificationSettings {
	if len(raw) == 0 {
		return DefaultNotificationSettings()
	}
	var envelope organizationSettings
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Notification == nil {
		return DefaultNotificationSettings()
	}
	return *envelope.Notification
}

// MergeNotificationSettings replaces the notification key inside an existing
// settings blob, preserving any unrelated keys.
func MergeNotificationSettings(raw datatypes.JSON, notification NotificationSettings) (datatypes.JSON, error) {
	existing := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &existing); err != nil {
			existing = map[string]json.RawMessage{}
		}
	}
	encoded, err := json.Marshal(notification)
	if err != nil {
		return nil, err
	}
	existing["notification"] = encoded
	merged, err := json.Marshal(existing)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(merged), nil
}
