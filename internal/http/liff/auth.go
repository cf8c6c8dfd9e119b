// Package liff serves the driver-facing endpoints called from the LINE
// mini-app: account linking, report submission and shift requests. Every
// request authenticates with a LIFF ID token in the Authorization header.
package liff

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ecxia/fleet-safety/internal/linking"
	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/ecxia/fleet-safety/internal/notify"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the LIFF endpoints.
type Handler struct {
	db         *gorm.DB
	verify     VerifyFunc
	linking    *linking.Service
	dispatcher *notify.Dispatcher
	loc        *time.Location
	now        func() time.Time
}

// VerifyFunc verifies an ID token and returns the LINE user id subject.
// Production wires line.IDTokenVerifier.Verify; tests substitute a stub.
type VerifyFunc func(ctx context.Context, idToken string) (string, error)

// NewHandler constructs a Handler.
func NewHandler(db *gorm.DB, verify VerifyFunc, linkSvc *linking.Service, dispatcher *notify.Dispatcher, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	return &Handler{db: db, verify: verify, linking: linkSvc, dispatcher: dispatcher, loc: loc, now: time.Now}
}

// today returns the current civil date in the configured timezone.
func (h *Handler) today() string {
	return h.now().In(h.loc).Format("2006-01-02")
}

// verifiedLineUserID extracts and verifies the bearer ID token. On failure
// it writes the 401 response and returns empty.
func (h *Handler) verifiedLineUserID(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "認証が必要です"})
		return ""
	}

	lineUserID, errVerify := h.verify(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
	if errVerify != nil || lineUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "LINE認証に失敗しました"})
		return ""
	}
	return lineUserID
}

// authenticatedDriver resolves the calling driver. On failure it writes the
// 401/403 response and returns nil.
func (h *Handler) authenticatedDriver(c *gin.Context) *models.Driver {
	lineUserID := h.verifiedLineUserID(c)
	if lineUserID == "" {
		return nil
	}

	driver, errResolve := h.linking.ResolveDriver(c.Request.Context(), lineUserID)
	if errResolve != nil {
		if errors.Is(errResolve, linking.ErrNotRegistered) {
			c.JSON(http.StatusForbidden, gin.H{"message": "ドライバー登録がされていません。管理者から受け取った登録URLを開いて、LINE連携を完了してください。"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "内部エラーが発生しました"})
		return nil
	}
	return driver
}
