package http

import (
	"net/http"
	"strings"

	"github.com/ecxia/fleet-safety/internal/security"
	"github.com/gin-gonic/gin"
)

// Context keys set by AdminAuthMiddleware.
const (
	// ContextKeyAdminClaims holds the *security.AdminClaims of the caller.
	ContextKeyAdminClaims = "adminClaims"
)

// AdminAuthMiddleware authenticates dashboard requests with a bearer JWT
// and injects the parsed claims.
func AdminAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, errParse := security.ParseAdminToken(jwtSecret, strings.TrimPrefix(header, "Bearer "))
		if errParse != nil {
			status := http.StatusUnauthorized
			message := "invalid token"
			if errParse == security.ErrExpiredToken {
				message = "token expired"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}

		c.Set(ContextKeyAdminClaims, claims)
		c.Next()
	}
}

// AdminClaimsFrom extracts the authenticated admin claims from the request
// context. It returns nil when the middleware did not run.
func AdminClaimsFrom(c *gin.Context) *security.AdminClaims {
	value, ok := c.Get(ContextKeyAdminClaims)
	if !ok {
		return nil
	}
	claims, ok := value.(*security.AdminClaims)
	if !ok {
		return nil
	}
	return claims
}

// RequireRole rejects callers whose JWT role is not in the allowed set.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := AdminClaimsFrom(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}
