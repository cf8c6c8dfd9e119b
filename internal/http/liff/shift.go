package liff

import (
	"net/http"
	"regexp"
	"slices"

	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"
)

// Date shapes accepted from the client.
var (
	dateShape      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	yearMonthShape = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// shiftRequest is the body of the shift endpoint.
type shiftRequest struct {
	Action     string  `json:"action"`
	YearMonth  string  `json:"yearMonth"`
	ShiftDate  string  `json:"shiftDate"`
	Status     string  `json:"status"`
	Note       *string `json:"note"`
	ReportType string  `json:"reportType"`
	Reason     *string `json:"reason"`
}

// Shift handles LIFF shift calls: month listing, day-off requests and
// emergency reports.
func (h *Handler) Shift(c *gin.Context) {
	driver := h.authenticatedDriver(c)
	if driver == nil {
		return
	}

	var body shiftRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "無効なリクエストです"})
		return
	}

	switch body.Action {
	case "get_shifts":
		h.getShifts(c, driver, body.YearMonth)
	case "request_shift":
		h.requestShift(c, driver, body)
	case "emergency":
		h.emergency(c, driver, body)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "無効なアクションです"})
	}
}

// getShifts lists the driver's shifts for one month.
func (h *Handler) getShifts(c *gin.Context, driver *models.Driver, yearMonth string) {
	if !yearMonthShape.MatchString(yearMonth) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "年月の形式が不正です"})
		return
	}

	var shifts []models.Shift
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("driver_id = ? AND shift_date >= ? AND shift_date <= ?", driver.ID, yearMonth+"-01", yearMonth+"-31").
		Order("shift_date").
		Find(&shifts).Error; errFind != nil {
		log.Errorf("liff: list shifts for driver %d: %v", driver.ID, errFind)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "シフトの取得に失敗しました"})
		return
	}

	entries := make([]gin.H, 0, len(shifts))
	for _, shift := range shifts {
		entries = append(entries, gin.H{
			"shiftDate": shift.ShiftDate,
			"status":    shift.Status,
			"note":      shift.Note,
		})
	}
	c.JSON(http.StatusOK, gin.H{"driverName": driver.Name, "shifts": entries})
}

// requestShift upserts a driver-requested shift entry. Absent is not
// requestable; it is reserved for the emergency side effect.
func (h *Handler) requestShift(c *gin.Context, driver *models.Driver, body shiftRequest) {
	if !dateShape.MatchString(body.ShiftDate) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "日付の形式が不正です"})
		return
	}
	if !slices.Contains(models.RequestableShiftStatuses, body.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "無効なシフト種別です"})
		return
	}

	shift := models.Shift{
		OrganizationID: driver.OrganizationID,
		DriverID:       driver.ID,
		ShiftDate:      body.ShiftDate,
		Status:         body.Status,
		Note:           body.Note,
		SubmittedBy:    models.ShiftSubmittedByDriver,
	}
	if errUpsert := h.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "driver_id"}, {Name: "shift_date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":       body.Status,
			"note":         body.Note,
			"submitted_by": models.ShiftSubmittedByDriver,
		}),
	}).Create(&shift).Error; errUpsert != nil {
		log.Errorf("liff: upsert shift for driver %d: %v", driver.ID, errUpsert)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "シフト申請に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "シフトを申請しました"})
}

// emergency records an emergency report, rewrites today's shift to absent
// and alerts linked admins.
func (h *Handler) emergency(c *gin.Context, driver *models.Driver, body shiftRequest) {
	if !slices.Contains(models.EmergencyTypes, body.ReportType) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "無効な連絡種別です"})
		return
	}

	if _, errSubmit := h.dispatcher.SubmitEmergency(c.Request.Context(), driver, body.ReportType, body.Reason); errSubmit != nil {
		log.Errorf("liff: emergency for driver %d: %v", driver.ID, errSubmit)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "緊急連絡の送信に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "緊急連絡を送信しました。管理者に通知されます。"})
}
