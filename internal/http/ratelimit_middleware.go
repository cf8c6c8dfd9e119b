// Package http provides the gin middleware shared by the public and admin
// HTTP surfaces.
package http

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/ecxia/fleet-safety/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware bounds request volume per client IP. Rejections carry
// a Retry-After header in whole seconds.
func RateLimitMiddleware(limiter *ratelimit.Limiter, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		result := limiter.Check(c.ClientIP(), maxRequests, window)
		if !result.Allowed {
			seconds := int(math.Ceil(result.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
			return
		}
		c.Next()
	}
}
