package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogTransport mirrors every event into the process log, matching the
// teacher's practice of always having at least one transport that
// cannot fail silently end-to-end.
type LogTransport struct {
	log *logrus.Entry
}

func NewLogTransport(log *logrus.Entry) *LogTransport { return &LogTransport{log: log} }

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(_ context.Context, ev Event) error {
	entry := t.log.WithFields(logrus.Fields{"event": ev.Name, "severity": ev.Severity})
	for k, v := range ev.Fields {
		entry = entry.WithField(k, v)
	}
	switch ev.Severity {
	case SeverityCritical:
		entry.Error("notify: event")
	case SeverityWarning:
		entry.Warn("notify: event")
	default:
		entry.Info("notify: event")
	}
	return nil
}

// WebhookTransport posts ev as JSON to a configured URL (Slack/Discord
// incoming-webhook style, or any operator-chosen endpoint).
type WebhookTransport struct {
	httpClient *http.Client
	url        string
	name       string
}

// NewWebhookTransport returns a transport named name, posting to url.
func NewWebhookTransport(name, url string) *WebhookTransport {
	return &WebhookTransport{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        url,
		name:       name,
	}
}

func (t *WebhookTransport) Name() string { return t.name }

type webhookPayload struct {
	Event    string         `json:"event"`
	Severity Severity       `json:"severity"`
	Fields   map[string]any `json:"fields,omitempty"`
	At       time.Time      `json:"at"`
}

func (t *WebhookTransport) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(webhookPayload{Event: ev.Name, Severity: ev.Severity, Fields: ev.Fields, At: ev.At})
	if err != nil {
		return fmt.Errorf("notify: marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook %s returned status %d", t.name, resp.StatusCode)
	}
	return nil
}
