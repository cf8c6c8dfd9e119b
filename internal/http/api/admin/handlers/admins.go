package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ecxia/fleet-safety/internal/linking"
	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/ecxia/fleet-safety/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdminsHandler manages an organization's admin accounts.
type AdminsHandler struct {
	db      *gorm.DB
	linking *linking.Service
}

// NewAdminsHandler constructs an AdminsHandler.
func NewAdminsHandler(db *gorm.DB, linkSvc *linking.Service) *AdminsHandler {
	return &AdminsHandler{db: db, linking: linkSvc}
}

// adminResponse is the API shape of an admin account.
func adminResponse(admin models.AdminUser) gin.H {
	return gin.H{
		"id":                admin.ID,
		"email":             admin.Email,
		"name":              admin.Name,
		"role":              admin.Role,
		"active":            admin.Active,
		"line_linked":       admin.LineUserID != nil,
		"has_pending_token": admin.LineRegistrationToken != nil,
	}
}

// List returns the organization's admin accounts.
func (h *AdminsHandler) List(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}

	var admins []models.AdminUser
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("organization_id = ?", claims.OrganizationID).
		Order("id").
		Find(&admins).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	entries := make([]gin.H, 0, len(admins))
	for _, admin := range admins {
		entries = append(entries, adminResponse(admin))
	}
	c.JSON(http.StatusOK, gin.H{"admins": entries})
}

// createAdminRequest defines the body for creating an admin account.
type createAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// Create adds an admin account to the caller's organization. Restricted to
// org_admin callers by route middleware; duplicate emails conflict.
func (h *AdminsHandler) Create(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}

	var body createAdminRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	name := strings.TrimSpace(body.Name)
	if email == "" || body.Password == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email, password and name are required"})
		return
	}
	role := body.Role
	if role == "" {
		role = models.RoleManager
	}
	if role != models.RoleOrgAdmin && role != models.RoleManager {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	var existing int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.AdminUser{}).
		Where("email = ?", email).Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash failed"})
		return
	}

	admin := models.AdminUser{
		OrganizationID: claims.OrganizationID,
		Email:          email,
		Password:       hash,
		Name:           name,
		Role:           role,
		Active:         true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&admin).Error; errCreate != nil {
		log.Errorf("admin: create admin account: %v", errCreate)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"admin": adminResponse(admin)})
}

// IssueLineToken generates a LINE linking token for an admin account. The
// admin sends the token value to the bot chat to complete the link.
func (h *AdminsHandler) IssueLineToken(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}
	adminID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid admin id"})
		return
	}

	var count int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.AdminUser{}).
		Where("id = ? AND organization_id = ?", adminID, claims.OrganizationID).
		Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "admin not found"})
		return
	}

	token, errIssue := h.linking.IssueAdminToken(c.Request.Context(), adminID)
	if errIssue != nil {
		log.Errorf("admin: issue admin line token: %v", errIssue)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"line_registration_token": token})
}

// UnlinkLine removes an admin's LINE binding.
func (h *AdminsHandler) UnlinkLine(c *gin.Context) {
	claims := requireAdminClaims(c)
	if claims == nil {
		return
	}
	adminID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid admin id"})
		return
	}

	var count int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.AdminUser{}).
		Where("id = ? AND organization_id = ?", adminID, claims.OrganizationID).
		Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "admin not found"})
		return
	}

	if errUnlink := h.linking.UnlinkAdmin(c.Request.Context(), adminID); errUnlink != nil {
		if errors.Is(errUnlink, linking.ErrTokenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "admin not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unlink failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
