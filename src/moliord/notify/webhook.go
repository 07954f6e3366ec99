package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/slack-go/slack"
)

// WebhookSink posts a build's hook payload to a single project-configured
// outbound URL. slack-go/slack's webhook poster is generic enough to drive
// any endpoint that accepts a JSON body over HTTP POST; its Slack-specific
// message fields are unused here beyond Text, which carries the serialized
// payload, since the pack carries no dedicated generic-webhook library.
type WebhookSink struct {
	URL     string
	Timeout time.Duration
}

// NewWebhookSink creates a WebhookSink posting to url.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{URL: url, Timeout: 10 * time.Second}
}

// Fire posts buildID and payload as a JSON body to the configured URL.
// deliveryID is carried along so a receiver can de-duplicate at-least-once
// retries of the same hook fire.
func (s *WebhookSink) Fire(buildID int64, deliveryID string, payload map[string]interface{}) error {
	body := map[string]interface{}{
		"build_id":    buildID,
		"delivery_id": deliveryID,
		"payload":     payload,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode hook payload for build %d: %w", buildID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	msg := &slack.WebhookMessage{Text: string(raw)}
	if err := slack.PostWebhookContext(ctx, s.URL, msg); err != nil {
		return fmt.Errorf("failed to post hook for build %d to %s: %w", buildID, s.URL, err)
	}
	return nil
}
