// Package notify implements the Notification Sink (spec.md §4.15):
// best-effort delivery of run summaries and security incidents to
// configured transports, with sensitive fields masked before logging.
package notify

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Severity classifies an event for transport-side filtering/formatting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is the payload handed to every transport.
type Event struct {
	Name     string
	Severity Severity
	Fields   map[string]any
	At       time.Time
}

// Transport delivers one Event. Implementations should respect ctx's
// deadline; the Sink itself also enforces a per-transport timeout.
type Transport interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Sink fans an Event out to every registered Transport. Delivery never
// propagates a failure to the caller: each transport failure is logged
// and swallowed (spec.md §4.15, §7 NotificationError).
type Sink struct {
	transports []Transport
	timeout    time.Duration
	log        *logrus.Entry
}

// NewSink returns a Sink with a default 5s per-transport timeout.
func NewSink(log *logrus.Entry, timeout time.Duration, transports ...Transport) *Sink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sink{transports: transports, timeout: timeout, log: log}
}

// Publish masks sensitive fields in ev, then dispatches it to every
// transport concurrently, waiting for all of them before returning.
func (s *Sink) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	ev.Fields = maskFields(ev.Fields)

	var wg sync.WaitGroup
	for _, t := range s.transports {
		wg.Add(1)
		go func(t Transport) {
			defer wg.Done()
			tctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			if err := t.Send(tctx, ev); err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{
					"transport": t.Name(),
					"event":     ev.Name,
				}).Warn("notify: delivery failed, continuing")
			}
		}(t)
	}
	wg.Wait()
}

// maskedKeyPattern matches field keys whose value should never reach a
// log line or transport payload unredacted.
var maskedKeyPattern = regexp.MustCompile(`(?i)(token|secret|password|webhook|totp|authorization)`)

// webhookSecretInURL matches a query-string token/key/secret parameter
// embedded in a webhook URL, e.g. Slack/Discord incoming-webhook links.
var webhookSecretInURL = regexp.MustCompile(`(?i)([?&](?:token|key|secret)=)[^&\s]+`)

func maskFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if maskedKeyPattern.MatchString(k) {
			out[k] = "***"
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = webhookSecretInURL.ReplaceAllString(s, "${1}***")
			continue
		}
		out[k] = v
	}
	return out
}
