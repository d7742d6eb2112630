package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (r *recordingTransport) Name() string { return "recording" }

func (r *recordingTransport) Send(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	r.events = append(r.events, ev)
	return nil
}

func TestPublishDeliversToEveryTransport(t *testing.T) {
	rec := &recordingTransport{}
	sink := NewSink(logrus.NewEntry(logrus.New()), time.Second, rec)

	sink.Publish(context.Background(), Event{Name: "run_complete", Severity: SeverityInfo, Fields: map[string]any{"account": "a@example.com"}})

	require.Len(t, rec.events, 1)
	require.Equal(t, "run_complete", rec.events[0].Name)
}

func TestPublishSwallowsTransportFailure(t *testing.T) {
	rec := &recordingTransport{fail: true}
	sink := NewSink(logrus.NewEntry(logrus.New()), time.Second, rec)

	require.NotPanics(t, func() {
		sink.Publish(context.Background(), Event{Name: "ban_detected", Severity: SeverityCritical})
	})
}

func TestMaskFieldsRedactsSensitiveKeysAndURLs(t *testing.T) {
	out := maskFields(map[string]any{
		"password":   "hunter2",
		"webhookURL": "https://hooks.slack.com/services/x?token=abcdef123",
		"account":    "a@example.com",
	})
	require.Equal(t, "***", out["password"])
	require.Contains(t, out["webhookURL"], "***")
	require.NotContains(t, out["webhookURL"], "abcdef123")
	require.Equal(t, "a@example.com", out["account"])
}

func TestLogTransportNeverErrors(t *testing.T) {
	tr := NewLogTransport(logrus.NewEntry(logrus.New()))
	err := tr.Send(context.Background(), Event{Name: "x", Severity: SeverityWarning})
	require.NoError(t, err)
}
