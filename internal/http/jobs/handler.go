// Package jobs exposes the scheduler-triggered dispatch endpoints. An
// external cron service calls them with a shared bearer secret.
package jobs

import (
	"net/http"
	"strings"

	"github.com/ecxia/fleet-safety/internal/notify"
	"github.com/ecxia/fleet-safety/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Handler triggers notification dispatch runs. An unset cron secret fails
// closed: every trigger is rejected.
type Handler struct {
	cronSecret string
	dispatcher *notify.Dispatcher
}

// NewHandler constructs a Handler.
func NewHandler(cronSecret string, dispatcher *notify.Dispatcher) *Handler {
	return &Handler{cronSecret: cronSecret, dispatcher: dispatcher}
}

// authorized checks the bearer secret with a constant-time comparison.
func (h *Handler) authorized(c *gin.Context) bool {
	if h.cronSecret == "" {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return false
	}
	header := c.GetHeader("Authorization")
	if !security.TimingSafeEqual(header, "Bearer "+h.cronSecret) {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return false
	}
	return true
}

// checkRequest is the optional body of a submission check trigger.
type checkRequest struct {
	Type string `json:"type"`
}

// CheckSubmissions runs a missing-submission dispatch pass. The body's
// type selects pre_work, post_work or admin_summary; absent bodies default
// to pre_work.
func (h *Handler) CheckSubmissions(c *gin.Context) {
	if !h.authorized(c) {
		return
	}

	checkType := notify.CheckTypePreWork
	var body checkRequest
	if errBind := c.ShouldBindJSON(&body); errBind == nil && strings.TrimSpace(body.Type) != "" {
		checkType = body.Type
	}
	if checkType == notify.CheckTypeMorningReminder || !notify.IsValidCheckType(checkType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid check type"})
		return
	}

	sent, errRun := h.dispatcher.Run(c.Request.Context(), checkType)
	if errRun != nil {
		log.Errorf("jobs: %s dispatch: %v", checkType, errRun)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "type": checkType, "alerts": sent})
}

// MorningReminder pushes the start-of-day reminder to every linked driver.
func (h *Handler) MorningReminder(c *gin.Context) {
	if !h.authorized(c) {
		return
	}

	sent, errRun := h.dispatcher.Run(c.Request.Context(), notify.CheckTypeMorningReminder)
	if errRun != nil {
		log.Errorf("jobs: morning reminder dispatch: %v", errRun)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sent": sent})
}
