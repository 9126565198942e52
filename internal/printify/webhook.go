package printify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SignatureHeader carries the HMAC of a webhook body
const SignatureHeader = "X-Pfy-Signature"

// Product webhook events
const (
	EventProductPublishStarted = "product:publish:started"
	EventProductUpdated        = "product:updated"
	EventProductDeleted        = "product:deleted"
)

// WebhookEvent accepts both the compact {event, product:{id}} shape and
// Printify's native {type, resource:{id, type}} envelope.
type WebhookEvent struct {
	Event   string `json:"event"`
	Type    string `json:"type"`
	Product *struct {
		ID ID `json:"id"`
	} `json:"product"`
	Resource *struct {
		ID   ID     `json:"id"`
		Type string `json:"type"`
	} `json:"resource"`
}

// Name returns the event name, whichever field carried it
func (e *WebhookEvent) Name() string {
	if e.Event != "" {
		return e.Event
	}
	return e.Type
}

// ProductID returns the referenced product id, or "" when the event is not about a product
func (e *WebhookEvent) ProductID() string {
	if e.Product != nil && e.Product.ID != "" {
		return string(e.Product.ID)
	}
	if e.Resource != nil && (e.Resource.Type == "" || e.Resource.Type == "product") {
		return string(e.Resource.ID)
	}
	return ""
}

// ParseWebhook decodes an inbound webhook body
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook: %w", err)
	}
	if event.Name() == "" {
		return nil, &ValidationError{Fields: []string{"event"}}
	}
	return &event, nil
}

// IsProductEvent reports whether the event belongs to the product family
func IsProductEvent(name string) bool {
	return strings.HasPrefix(name, "product:")
}

// Sign returns the X-Pfy-Signature header value for body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an X-Pfy-Signature header in constant time
func VerifySignature(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}
	if !strings.HasPrefix(header, "sha256=") {
		header = "sha256=" + header
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(header))
}
