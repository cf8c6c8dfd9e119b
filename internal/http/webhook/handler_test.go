package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ecxia/fleet-safety/internal/linking"
	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testChannelSecret = "test-channel-secret"

// replyRecorder captures webhook replies keyed by reply token.
type replyRecorder struct {
	replies map[string][]string
}

func newReplyRecorder() *replyRecorder {
	return &replyRecorder{replies: map[string][]string{}}
}

func (r *replyRecorder) reply(_ context.Context, replyToken, text string) error {
	r.replies[replyToken] = append(r.replies[replyToken], text)
	return nil
}

func (r *replyRecorder) last(replyToken string) string {
	msgs := r.replies[replyToken]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

func setupWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:webhook_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Driver{}, &models.AdminUser{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func newTestHandler(db *gorm.DB, rec *replyRecorder) *Handler {
	return &Handler{
		channelSecret: testChannelSecret,
		linking:       linking.NewService(db),
		reply:         rec.reply,
	}
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testChannelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func performWebhook(h *Handler, body []byte, signature string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhook", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Line-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleFailsClosedWithoutSecret(t *testing.T) {
	db := setupWebhookTestDB(t)
	h := newTestHandler(db, newReplyRecorder())
	h.channelSecret = ""

	w := performWebhook(h, []byte(`{"events":[]}`), "anything")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestHandleRejectsInvalidSignature(t *testing.T) {
	db := setupWebhookTestDB(t)
	h := newTestHandler(db, newReplyRecorder())

	body := []byte(`{"events":[]}`)
	w := performWebhook(h, body, signBody([]byte("different body")))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestHandleFollowGreetsLinkedDriver(t *testing.T) {
	db := setupWebhookTestDB(t)
	rec := newReplyRecorder()
	h := newTestHandler(db, rec)

	lineID := "U-linked"
	db.Create(&models.Driver{OrganizationID: 1, Name: "山田太郎", Status: models.DriverStatusActive, LineUserID: &lineID})

	body := []byte(`{"events":[{"type":"follow","replyToken":"r1","source":{"userId":"U-linked"}}]}`)
	w := performWebhook(h, body, signBody(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(rec.last("r1"), "山田太郎 さん") {
		t.Fatalf("follow reply = %q, want personalized welcome", rec.last("r1"))
	}
}

func TestHandleFollowPromptsUnregisteredUser(t *testing.T) {
	db := setupWebhookTestDB(t)
	rec := newReplyRecorder()
	h := newTestHandler(db, rec)

	body := []byte(`{"events":[{"type":"follow","replyToken":"r1","source":{"userId":"U-unknown"}}]}`)
	w := performWebhook(h, body, signBody(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(rec.last("r1"), "登録URL") {
		t.Fatalf("follow reply = %q, want registration prompt", rec.last("r1"))
	}
}

func TestHandleMessageClaimsAdminToken(t *testing.T) {
	db := setupWebhookTestDB(t)
	rec := newReplyRecorder()
	h := newTestHandler(db, rec)

	admin := models.AdminUser{OrganizationID: 1, Email: "admin@example.com", Password: "x", Name: "管理者", Role: models.RoleOrgAdmin, Active: true}
	if errCreate := db.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	token, errIssue := linking.NewService(db).IssueAdminToken(context.Background(), admin.ID)
	if errIssue != nil {
		t.Fatalf("issue token: %v", errIssue)
	}

	body := []byte(fmt.Sprintf(`{"events":[{"type":"message","replyToken":"r1","source":{"userId":"U-admin"},"message":{"type":"text","text":"%s"}}]}`, token))
	w := performWebhook(h, body, signBody(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(rec.last("r1"), "LINE連携が完了しました") {
		t.Fatalf("claim reply = %q", rec.last("r1"))
	}

	var updated models.AdminUser
	if errFind := db.First(&updated, admin.ID).Error; errFind != nil {
		t.Fatalf("reload admin: %v", errFind)
	}
	if updated.LineUserID == nil || *updated.LineUserID != "U-admin" {
		t.Fatalf("admin not linked: %+v", updated.LineUserID)
	}
	if updated.LineRegistrationToken != nil {
		t.Fatalf("claimed token must be cleared")
	}
}

func TestHandleMessageUnknownTokenFallsThroughSilently(t *testing.T) {
	db := setupWebhookTestDB(t)
	rec := newReplyRecorder()
	h := newTestHandler(db, rec)

	body := []byte(`{"events":[{"type":"message","replyToken":"r1","source":{"userId":"U-1"},"message":{"type":"text","text":"01234567-89ab-cdef-0123-456789abcdef"}}]}`)
	w := performWebhook(h, body, signBody(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(rec.replies["r1"]) != 0 {
		t.Fatalf("unknown token must not trigger a reply, got %v", rec.replies["r1"])
	}
}

func TestHandleMessageHelpKeyword(t *testing.T) {
	db := setupWebhookTestDB(t)
	rec := newReplyRecorder()
	h := newTestHandler(db, rec)

	body := []byte(`{"events":[{"type":"message","replyToken":"r1","source":{"userId":"U-1"},"message":{"type":"text","text":"ヘルプ"}}]}`)
	w := performWebhook(h, body, signBody(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(rec.last("r1"), "業務前報告") {
		t.Fatalf("help reply = %q", rec.last("r1"))
	}
}

func TestHandleAcknowledgesUnhandledEvents(t *testing.T) {
	db := setupWebhookTestDB(t)
	rec := newReplyRecorder()
	h := newTestHandler(db, rec)

	body := []byte(`{"events":[{"type":"unfollow","source":{"userId":"U-1"}},{"type":"message","replyToken":"r2","source":{"userId":"U-1"},"message":{"type":"text","text":"help"}}]}`)
	w := performWebhook(h, body, signBody(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	// The unhandled first event must not block the second.
	if len(rec.replies["r2"]) != 1 {
		t.Fatalf("second event must still be processed")
	}
}
