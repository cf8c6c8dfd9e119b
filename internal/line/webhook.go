package line

// Webhook event types this application handles.
const (
	// EventTypeFollow fires when a user adds the bot as a friend.
	EventTypeFollow = "follow"
	// EventTypeMessage fires for inbound messages.
	EventTypeMessage = "message"

	// MessageTypeText marks a plain text message.
	MessageTypeText = "text"
)

// WebhookRequest is the envelope LINE delivers to the webhook endpoint.
type WebhookRequest struct {
	Events []WebhookEvent `json:"events"`
}

// WebhookEvent is one event in a webhook delivery.
type WebhookEvent struct {
	Type       string          `json:"type"`
	ReplyToken string          `json:"replyToken"`
	Source     *WebhookSource  `json:"source"`
	Message    *WebhookMessage `json:"message"`
}

// WebhookSource identifies the sender of an event.
type WebhookSource struct {
	UserID string `json:"userId"`
}

// WebhookMessage is the message payload of a message event.
type WebhookMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// UserID returns the sending user's id, or empty when absent.
func (e WebhookEvent) UserID() string {
	if e.Source == nil {
		return ""
	}
	return e.Source.UserID
}
