package http

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ecxia/fleet-safety/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

func performLimited(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddlewareRejectsWithRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := ratelimit.New()

	router := gin.New()
	router.POST("/api", RateLimitMiddleware(limiter, 3, time.Minute), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 3; i++ {
		if w := performLimited(router, "192.0.2.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, w.Code)
		}
	}

	w := performLimited(router, "192.0.2.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	retryAfter, errParse := strconv.Atoi(w.Header().Get("Retry-After"))
	if errParse != nil || retryAfter < 1 {
		t.Fatalf("Retry-After = %q, want positive whole seconds", w.Header().Get("Retry-After"))
	}

	// Other client IPs keep their own budget.
	if w := performLimited(router, "192.0.2.2"); w.Code != http.StatusOK {
		t.Fatalf("independent key status = %d, want 200", w.Code)
	}
}

func TestRateLimitMiddlewareNilLimiterPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api", RateLimitMiddleware(nil, 1, time.Minute), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 5; i++ {
		if w := performLimited(router, "192.0.2.1"); w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	}
}
