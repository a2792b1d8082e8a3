package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ppiankov/legiswatch/internal/model"
)

// WebhookSink POSTs each alert as JSON. The payload carries a "text" field
// so chat webhooks (Slack, Mattermost) render it without a relay.
type WebhookSink struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	Text  string                `json:"text"`
	Alert model.ComplianceAlert `json:"alert"`
}

// NewWebhookSink creates a webhook sink for target
func NewWebhookSink(target string, client *http.Client) (*WebhookSink, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: webhook target must be an http(s) URL: %q", model.ErrValidation, target)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSink{url: target, client: client}, nil
}

// Emit posts the alert
func (s *WebhookSink) Emit(ctx context.Context, alert model.ComplianceAlert) error {
	body, err := json.Marshal(webhookPayload{Text: messageText(alert), Alert: alert})
	if err != nil {
		return fmt.Errorf("%w: marshal webhook payload: %w", model.ErrSink, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", model.ErrSink, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send webhook: %w", model.ErrSink, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: webhook returned %s", model.ErrSink, resp.Status)
	}
	return nil
}

// Close is a no-op
func (s *WebhookSink) Close() error { return nil }

func messageText(a model.ComplianceAlert) string {
	text := fmt.Sprintf("[%s] %s %s\n%s\nAction: %s", a.Severity, a.BillKey, a.Title, a.Summary, a.ActionRequired)
	if a.Deadline != model.Unspecified {
		text += "\nDeadline: " + a.Deadline
	}
	if a.SourceURL != "" {
		text += "\n" + a.SourceURL
	}
	return text
}
