package handlers

import (
	"net/http"
	"regexp"

	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SettingsHandler reads and updates organization notification settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// timeShape matches the "HH:MM" send times stored in toggles.
var timeShape = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// GetNotificationSettings returns the organization's notification toggles,
// falling back to defaults when never saved.
func (h *SettingsHandler) GetNotificationSettings(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}

	var org models.Organization
	if errFind := h.db.WithContext(c.Request.Context()).First(&org, claims.OrganizationID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notification":       models.NotificationSettingsFromJSON(org.Settings),
		"messagingConfigured": org.LineChannelAccessToken != nil,
	})
}

// updateSettingsRequest defines the body for updating notification toggles.
type updateSettingsRequest struct {
	Notification models.NotificationSettings `json:"notification"`
}

// UpdateNotificationSettings replaces the notification toggles, preserving
// unrelated settings keys.
func (h *SettingsHandler) UpdateNotificationSettings(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}

	var body updateSettingsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	for _, toggle := range []models.NotificationToggle{
		body.Notification.MorningReminder, body.Notification.PreWorkAlert,
		body.Notification.PostWorkAlert, body.Notification.AdminSummary,
	} {
		if toggle.Time != "" && !timeShape.MatchString(toggle.Time) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid time format"})
			return
		}
	}

	var org models.Organization
	if errFind := h.db.WithContext(c.Request.Context()).First(&org, claims.OrganizationID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	merged, errMerge := models.MergeNotificationSettings(org.Settings, body.Notification)
	if errMerge != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "merge failed"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Organization{}).
		Where("id = ?", claims.OrganizationID).
		Update("settings", merged).Error; errUpdate != nil {
		log.Errorf("admin: update notification settings: %v", errUpdate)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "notification": body.Notification})
}
