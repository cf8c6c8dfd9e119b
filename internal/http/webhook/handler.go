// Package webhook receives LINE platform events: signature verification,
// follow greetings and chat-message command routing (admin token claim,
// help text).
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ecxia/fleet-safety/internal/config"
	"github.com/ecxia/fleet-safety/internal/line"
	"github.com/ecxia/fleet-safety/internal/linking"
	"github.com/ecxia/fleet-safety/internal/security"
	"github.com/ecxia/fleet-safety/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ReplyFunc answers one webhook event. Tests substitute a recorder.
type ReplyFunc func(ctx context.Context, replyToken, text string) error

// Handler processes webhook deliveries. The endpoint fails closed when the
// channel secret is not configured.
type Handler struct {
	channelSecret string
	linking       *linking.Service
	reply         ReplyFunc
}

// NewHandler constructs a Handler replying through the given LINE client.
func NewHandler(cfg config.LineConfig, linkSvc *linking.Service, client *line.Client) *Handler {
	reply := func(ctx context.Context, replyToken, text string) error {
		if cfg.ChannelAccessToken == "" {
			return nil
		}
		return client.Reply(ctx, cfg.ChannelAccessToken, replyToken, line.NewTextMessage(text))
	}
	return &Handler{channelSecret: cfg.ChannelSecret, linking: linkSvc, reply: reply}
}

// Handle is the POST webhook endpoint. Request-level failures (unconfigured
// secret, bad signature) get non-200; per-event failures are swallowed so
// the provider never retries a partially processed delivery.
func (h *Handler) Handle(c *gin.Context) {
	if h.channelSecret == "" {
		c.String(http.StatusServiceUnavailable, "Service Unavailable: LINE not configured")
		return
	}

	body, errRead := io.ReadAll(c.Request.Body)
	if errRead != nil {
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}

	signature := c.GetHeader("X-Line-Signature")
	if !security.VerifyLineSignature(body, signature, h.channelSecret) {
		c.String(http.StatusForbidden, "Invalid signature")
		return
	}

	var req line.WebhookRequest
	if errParse := json.Unmarshal(body, &req); errParse != nil {
		log.Warnf("webhook: malformed delivery body: %v", errParse)
		c.String(http.StatusOK, "OK")
		return
	}

	for _, event := range req.Events {
		if errEvent := h.handleEvent(c.Request.Context(), event); errEvent != nil {
			log.Errorf("webhook: %s event: %v", event.Type, errEvent)
		}
	}
	c.String(http.StatusOK, "OK")
}

// handleEvent dispatches one event. Returned errors are logged by the caller
// and never affect the delivery's 200 acknowledgment.
func (h *Handler) handleEvent(ctx context.Context, event line.WebhookEvent) error {
	switch {
	case event.Type == line.EventTypeFollow:
		return h.handleFollow(ctx, event)
	case event.Type == line.EventTypeMessage && event.Message != nil && event.Message.Type == line.MessageTypeText:
		return h.handleTextMessage(ctx, event)
	}
	return nil
}

// handleFollow greets a new friend: personalized for linked drivers,
// a registration prompt otherwise.
func (h *Handler) handleFollow(ctx context.Context, event line.WebhookEvent) error {
	lineUserID := event.UserID()
	if lineUserID == "" {
		return nil
	}

	driver, errResolve := h.linking.ResolveDriver(ctx, lineUserID)
	if errResolve != nil && !errors.Is(errResolve, linking.ErrNotRegistered) {
		return errResolve
	}

	if driver != nil {
		return h.reply(ctx, event.ReplyToken,
			fmt.Sprintf("%s さん、ECXIA安全管理システムへようこそ！\n\n画面下部のメニューから日報の提出ができます。", driver.Name))
	}
	return h.reply(ctx, event.ReplyToken,
		"ECXIA安全管理システムです。\n\n管理者から受け取った登録URLを開いて、LINE連携を完了してください。")
}

// handleTextMessage routes a chat message: token-shaped text attempts an
// admin link claim, help keywords get usage text, everything else is ignored.
func (h *Handler) handleTextMessage(ctx context.Context, event line.WebhookEvent) error {
	text := strings.TrimSpace(event.Message.Text)
	lineUserID := event.UserID()

	if lineUserID != "" && security.LinkTokenPattern.MatchString(text) {
		handled, errClaim := h.claimAdminToken(ctx, event.ReplyToken, text, lineUserID)
		if errClaim != nil {
			return errClaim
		}
		if handled {
			return nil
		}
		// Unknown token value: fall through. Driver tokens are claimed over
		// the LIFF channel, so a structural match alone is not an error.
	}

	lower := strings.ToLower(text)
	if strings.Contains(text, "ヘルプ") || lower == "help" {
		return h.reply(ctx, event.ReplyToken,
			"ECXIA安全管理システム\n\n画面下部のメニューから以下の操作ができます：\n・出勤 → 業務前報告\n・点検 → 日常点検\n・退勤 → 業務後報告\n・事故 → 事故報告")
	}
	return nil
}

// claimAdminToken attempts the admin link claim for token-shaped text.
// It reports whether the message was consumed; a lookup miss leaves the
// message unconsumed so the router can fall through.
func (h *Handler) claimAdminToken(ctx context.Context, replyToken, token, lineUserID string) (bool, error) {
	result, errClaim := h.linking.ClaimAdminToken(ctx, token, lineUserID)
	switch {
	case errClaim == nil:
		log.Infof("webhook: admin %d linked to %s", result.ActorID, util.MaskLineUserID(lineUserID))
		return true, h.reply(ctx, replyToken,
			fmt.Sprintf("%sさん、LINE連携が完了しました！\n\n今後、提出状況のサマリー通知がこのLINEに届きます。", result.Name))
	case errors.Is(errClaim, linking.ErrTokenNotFound):
		return false, nil
	case errors.Is(errClaim, linking.ErrTokenExpired):
		return true, h.reply(ctx, replyToken,
			"連携トークンの有効期限が切れています。管理画面から再発行してください。")
	case errors.Is(errClaim, linking.ErrAlreadyBound), errors.Is(errClaim, linking.ErrTokenAlreadyUsed):
		return true, h.reply(ctx, replyToken,
			"LINE連携の処理中にエラーが発生しました。管理画面から再度お試しください。")
	default:
		return true, errClaim
	}
}
