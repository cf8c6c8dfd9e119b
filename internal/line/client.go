// Package line wraps the LINE Messaging API surface this application uses:
// pushing and replying to messages with per-organization channel tokens, and
// verifying LIFF ID tokens against the LINE OAuth endpoint.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Default LINE API endpoints.
const (
	DefaultAPIBaseURL = "https://api.line.me"

	pushPath  = "/v2/bot/message/push"
	replyPath = "/v2/bot/message/reply"
)

// TextMessage is a plain text message payload.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextMessage builds a text message.
func NewTextMessage(text string) TextMessage {
	return TextMessage{Type: "text", Text: text}
}

// Client calls the LINE Messaging API. The zero value is not usable;
// construct with NewClient. Base URL and HTTP client are injectable for
// tests.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client against the production LINE API.
func NewClient() *Client {
	return &Client{
		baseURL:    DefaultAPIBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithBaseURL constructs a Client against a custom endpoint.
func NewClientWithBaseURL(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// Push sends a push message to one recipient using the organization's
// channel access token.
func (c *Client) Push(ctx context.Context, accessToken, to string, messages ...TextMessage) error {
	payload := map[string]any{"to": to, "messages": messages}
	return c.post(ctx, pushPath, accessToken, payload)
}

// PushText sends a single text message. It matches the notification
// dispatcher's push signature.
func (c *Client) PushText(ctx context.Context, accessToken, to, text string) error {
	return c.Push(ctx, accessToken, to, NewTextMessage(text))
}

// Reply answers a webhook event using its reply token.
func (c *Client) Reply(ctx context.Context, accessToken, replyToken string, messages ...TextMessage) error {
	payload := map[string]any{"replyToken": replyToken, "messages": messages}
	return c.post(ctx, replyPath, accessToken, payload)
}

// post executes one JSON POST against the messaging API.
func (c *Client) post(ctx context.Context, path, accessToken string, payload any) error {
	if accessToken == "" {
		return fmt.Errorf("line: missing channel access token")
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return fmt.Errorf("line: marshal payload: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if errReq != nil {
		return fmt.Errorf("line: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("line: %s: %w", path, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("line: %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}
