package handlers

import (
	"net/http"

	"github.com/ecxia/fleet-safety/internal/security"
	"github.com/gin-gonic/gin"
)

// readAdminClaims returns the authenticated caller's claims from the request
// context. The auth middleware stores them under "adminClaims".
func readAdminClaims(c *gin.Context) (*security.AdminClaims, bool) {
	value, ok := c.Get("adminClaims")
	if !ok {
		return nil, false
	}
	claims, ok := value.(*security.AdminClaims)
	return claims, ok
}

// requireAdminClaims reads the caller's claims or writes a 401.
func requireAdminClaims(c *gin.Context) *security.AdminClaims {
	claims, ok := readAdminClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return nil
	}
	return claims
}
