package handlers

import (
	"net/http"

	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// EmergenciesHandler lists emergency reports for the dashboard.
type EmergenciesHandler struct {
	db *gorm.DB
}

// NewEmergenciesHandler constructs an EmergenciesHandler.
func NewEmergenciesHandler(db *gorm.DB) *EmergenciesHandler {
	return &EmergenciesHandler{db: db}
}

// List returns the organization's emergency reports, newest first. An
// optional date query filters to one civil date.
func (h *EmergenciesHandler) List(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}

	query := h.db.WithContext(c.Request.Context()).
		Where("organization_id = ?", claims.OrganizationID)
	if date := c.Query("date"); date != "" {
		query = query.Where("report_date = ?", date)
	}

	var reports []models.EmergencyReport
	if errFind := query.Order("created_at DESC").Limit(200).Find(&reports).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	entries := make([]gin.H, 0, len(reports))
	for _, report := range reports {
		entries = append(entries, gin.H{
			"id":          report.ID,
			"driver_id":   report.DriverID,
			"report_date": report.ReportDate,
			"report_type": report.ReportType,
			"type_label":  models.EmergencyTypeLabel(report.ReportType),
			"reason":      report.Reason,
			"created_at":  report.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"reports": entries})
}
