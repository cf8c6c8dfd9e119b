package liff

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Report types accepted by the submission endpoint.
const (
	ReportTypePreWork    = "pre_work"
	ReportTypePostWork   = "post_work"
	ReportTypeInspection = "inspection"
	ReportTypeAccident   = "accident"
)

// reportFields whitelists the client-supplied fields per report type.
// Unknown fields are silently dropped; organization and driver ids are
// always set server-side.
var reportFields = map[string][]string{
	ReportTypePreWork: {
		"reportDate", "vehicleId", "clockInAt", "departurePoint",
		"alcoholCheckResult", "alcoholCheckValue", "alcoholCheckerName",
		"healthCondition", "fatigueLevel", "sleepHours", "sleepSufficient",
		"illnessNote", "routeInfo", "notes",
	},
	ReportTypePostWork: {
		"reportDate", "vehicleId", "clockOutAt", "arrivalPoint",
		"distanceKm", "cargoDeliveredCount", "restPeriods",
		"alcoholCheckResult", "alcoholCheckValue", "alcoholCheckerName",
		"roadConditionNote", "vehicleConditionNote", "notes",
	},
	ReportTypeInspection: {
		"inspectionDate", "vehicleId",
		"engineOil", "coolantLevel", "battery", "fanBelt",
		"headlights", "turnSignals", "brakeLights", "hazardLights",
		"tirePressure", "tireTread", "tireDamage",
		"mirrors", "seatbelt", "brakes", "steering",
		"allPassed", "abnormalityNote", "notes",
	},
	ReportTypeAccident: {
		"occurredAt", "vehicleId", "location", "latitude", "longitude",
		"summary", "cause", "preventionMeasures",
		"hasInjuries", "injuryDetails", "isSerious",
		"counterpartyInfo", "policeReported", "insuranceContacted",
		"notes", "status",
	},
}

// reportRequest is the body of the report endpoint.
type reportRequest struct {
	Action string         `json:"action"`
	Type   string         `json:"type"`
	Data   map[string]any `json:"data"`
}

// Report handles LIFF report calls: "identify" resolves the calling driver
// and their default vehicle, "submit" stores a whitelisted report.
func (h *Handler) Report(c *gin.Context) {
	driver := h.authenticatedDriver(c)
	if driver == nil {
		return
	}

	var body reportRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "無効なリクエストです"})
		return
	}

	switch body.Action {
	case "identify":
		h.identify(c, driver)
	case "submit":
		h.submitReport(c, driver, body.Type, body.Data)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "無効なアクションです"})
	}
}

// identify returns the calling driver and their default vehicle for LIFF
// form prefill.
func (h *Handler) identify(c *gin.Context, driver *models.Driver) {
	response := gin.H{
		"driver": gin.H{
			"id":               driver.ID,
			"organizationId":   driver.OrganizationID,
			"name":             driver.Name,
			"defaultVehicleId": driver.DefaultVehicleID,
		},
		"vehicle": nil,
	}

	if driver.DefaultVehicleID != nil {
		var vehicle models.Vehicle
		if errFind := h.db.WithContext(c.Request.Context()).First(&vehicle, *driver.DefaultVehicleID).Error; errFind == nil {
			response["vehicle"] = gin.H{
				"id":          vehicle.ID,
				"plateNumber": vehicle.PlateNumber,
				"maker":       vehicle.Maker,
				"model":       vehicle.Model,
			}
		}
	}
	c.JSON(http.StatusOK, response)
}

// submitReport sanitizes the payload against the type's whitelist and
// inserts the report row with a server-computed retention deadline.
func (h *Handler) submitReport(c *gin.Context, driver *models.Driver, reportType string, data map[string]any) {
	allowed, ok := reportFields[reportType]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "無効なレポート種別です"})
		return
	}

	sanitized := make(map[string]any, len(allowed))
	for _, key := range allowed {
		if value, present := data[key]; present {
			sanitized[key] = value
		}
	}

	var record any
	switch reportType {
	case ReportTypePreWork:
		record = &models.PreWorkReport{
			OrganizationID: driver.OrganizationID,
			DriverID:       driver.ID,
			ReportDate:     h.dateField(sanitized, "reportDate"),
			VehicleID:      uint64Field(sanitized, "vehicleId"),
			Details:        detailsJSON(sanitized),
			SubmittedVia:   models.SubmittedViaLiff,
			ExpiresAt:      h.retentionDeadline(1),
		}
	case ReportTypePostWork:
		record = &models.PostWorkReport{
			OrganizationID: driver.OrganizationID,
			DriverID:       driver.ID,
			ReportDate:     h.dateField(sanitized, "reportDate"),
			VehicleID:      uint64Field(sanitized, "vehicleId"),
			Details:        detailsJSON(sanitized),
			SubmittedVia:   models.SubmittedViaLiff,
			ExpiresAt:      h.retentionDeadline(1),
		}
	case ReportTypeInspection:
		record = &models.DailyInspection{
			OrganizationID: driver.OrganizationID,
			DriverID:       driver.ID,
			InspectionDate: h.dateField(sanitized, "inspectionDate"),
			VehicleID:      uint64Field(sanitized, "vehicleId"),
			Details:        detailsJSON(sanitized),
			SubmittedVia:   models.SubmittedViaLiff,
			ExpiresAt:      h.retentionDeadline(1),
		}
	case ReportTypeAccident:
		record = &models.AccidentReport{
			OrganizationID: driver.OrganizationID,
			DriverID:       driver.ID,
			OccurredAt:     h.timeField(sanitized, "occurredAt"),
			VehicleID:      uint64Field(sanitized, "vehicleId"),
			Details:        detailsJSON(sanitized),
			IsSerious:      boolField(sanitized, "isSerious"),
			Status:         stringFieldOr(sanitized, "status", "open"),
			SubmittedVia:   models.SubmittedViaLiff,
			ExpiresAt:      h.retentionDeadline(3),
		}
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(record).Error; errCreate != nil {
		log.Errorf("liff: insert %s report for driver %d: %v", reportType, driver.ID, errCreate)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "レポートの保存に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": record})
}

// retentionDeadline computes the retention expiry date.
func (h *Handler) retentionDeadline(years int) string {
	return h.now().In(h.loc).AddDate(years, 0, 0).Format("2006-01-02")
}

// dateField extracts a "YYYY-MM-DD" field, defaulting to today.
func (h *Handler) dateField(data map[string]any, key string) string {
	if value, ok := data[key].(string); ok && dateShape.MatchString(value) {
		return value
	}
	return h.today()
}

// timeField extracts an RFC 3339 timestamp field, defaulting to now.
func (h *Handler) timeField(data map[string]any, key string) time.Time {
	if value, ok := data[key].(string); ok {
		if parsed, errParse := time.Parse(time.RFC3339, value); errParse == nil {
			return parsed
		}
		if parsed, errParse := time.ParseInLocation("2006-01-02T15:04", value, h.loc); errParse == nil {
			return parsed
		}
	}
	return h.now()
}

// detailsJSON serializes the sanitized payload for the details column.
func detailsJSON(sanitized map[string]any) datatypes.JSON {
	raw, errMarshal := json.Marshal(sanitized)
	if errMarshal != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

// uint64Field extracts a numeric id field.
func uint64Field(data map[string]any, key string) *uint64 {
	switch value := data[key].(type) {
	case float64:
		if value > 0 {
			id := uint64(value)
			return &id
		}
	case json.Number:
		if id, errParse := value.Int64(); errParse == nil && id > 0 {
			unsigned := uint64(id)
			return &unsigned
		}
	}
	return nil
}

// boolField extracts a boolean field, defaulting to false.
func boolField(data map[string]any, key string) bool {
	value, _ := data[key].(bool)
	return value
}

// stringFieldOr extracts a string field with a fallback.
func stringFieldOr(data map[string]any, key, fallback string) string {
	if value, ok := data[key].(string); ok && value != "" {
		return value
	}
	return fallback
}
