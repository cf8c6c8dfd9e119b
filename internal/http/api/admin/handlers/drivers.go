package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ecxia/fleet-safety/internal/linking"
	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DriversHandler manages an organization's drivers and their LINE linking.
type DriversHandler struct {
	db      *gorm.DB
	linking *linking.Service
}

// NewDriversHandler constructs a DriversHandler.
func NewDriversHandler(db *gorm.DB, linkSvc *linking.Service) *DriversHandler {
	return &DriversHandler{db: db, linking: linkSvc}
}

// driverResponse is the API shape of a driver.
func driverResponse(driver models.Driver) gin.H {
	return gin.H{
		"id":                 driver.ID,
		"name":               driver.Name,
		"phone":              driver.Phone,
		"status":             driver.Status,
		"default_vehicle_id": driver.DefaultVehicleID,
		"line_linked":        driver.LineUserID != nil,
		"has_pending_token":  driver.RegistrationToken != nil,
	}
}

// List returns the organization's drivers.
func (h *DriversHandler) List(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}

	var drivers []models.Driver
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("organization_id = ?", claims.OrganizationID).
		Order("id").
		Find(&drivers).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	entries := make([]gin.H, 0, len(drivers))
	for _, driver := range drivers {
		entries = append(entries, driverResponse(driver))
	}
	c.JSON(http.StatusOK, gin.H{"drivers": entries})
}

// driverRequest defines the create/update body for a driver.
type driverRequest struct {
	Name             string  `json:"name"`
	Phone            string  `json:"phone"`
	Status           string  `json:"status"`
	DefaultVehicleID *uint64 `json:"default_vehicle_id"`
}

// Create adds a driver to the caller's organization.
func (h *DriversHandler) Create(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}

	var body driverRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	status := body.Status
	if status == "" {
		status = models.DriverStatusActive
	}
	if status != models.DriverStatusActive && status != models.DriverStatusInactive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	driver := models.Driver{
		OrganizationID:   claims.OrganizationID,
		Name:             strings.TrimSpace(body.Name),
		Phone:            strings.TrimSpace(body.Phone),
		Status:           status,
		DefaultVehicleID: body.DefaultVehicleID,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&driver).Error; errCreate != nil {
		log.Errorf("admin: create driver: %v", errCreate)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"driver": driverResponse(driver)})
}

// Update modifies a driver in the caller's organization.
func (h *DriversHandler) Update(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}
	driverID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid driver id"})
		return
	}

	var body driverRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if strings.TrimSpace(body.Name) != "" {
		updates["name"] = strings.TrimSpace(body.Name)
	}
	if body.Phone != "" {
		updates["phone"] = strings.TrimSpace(body.Phone)
	}
	if body.Status != "" {
		if body.Status != models.DriverStatusActive && body.Status != models.DriverStatusInactive {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		updates["status"] = body.Status
	}
	if body.DefaultVehicleID != nil {
		updates["default_vehicle_id"] = *body.DefaultVehicleID
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Driver{}).
		Where("id = ? AND organization_id = ?", driverID, claims.OrganizationID).
		Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "driver not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// IssueToken generates a fresh registration token for a driver. Re-issuing
// rotates any prior unclaimed token.
func (h *DriversHandler) IssueToken(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}
	driverID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid driver id"})
		return
	}

	// Scope check before issuing: the token update itself is keyed by id only.
	var count int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Driver{}).
		Where("id = ? AND organization_id = ?", driverID, claims.OrganizationID).
		Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "driver not found"})
		return
	}

	token, errIssue := h.linking.IssueDriverToken(c.Request.Context(), driverID)
	if errIssue != nil {
		log.Errorf("admin: issue driver token: %v", errIssue)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"registration_token": token})
}

// Unlink removes a driver's LINE binding.
func (h *DriversHandler) Unlink(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}
	driverID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid driver id"})
		return
	}

	var count int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Driver{}).
		Where("id = ? AND organization_id = ?", driverID, claims.OrganizationID).
		Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "driver not found"})
		return
	}

	if errUnlink := h.linking.UnlinkDriver(c.Request.Context(), driverID); errUnlink != nil {
		if errors.Is(errUnlink, linking.ErrTokenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "driver not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unlink failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
