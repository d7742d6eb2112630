// Package logring implements the capacity-bounded, concurrency-safe log
// buffer that backs the dashboard's GET /api/logs and GET /api/logs/stream
// (spec.md §4.14, §5 "Ring-buffered log for the dashboard").
package logring

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time         `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Buffer is a fixed-capacity ring of Entry that overwrites the oldest entry
// once full. Safe for many concurrent producers (logrus hook callbacks) and
// readers (dashboard HTTP handlers, websocket subscribers).
type Buffer struct {
	mu       sync.Mutex
	entries  []Entry
	next     int
	size     int
	capacity int

	subMu sync.Mutex
	subs  map[int]chan Entry
	subID int
}

// New returns a Buffer with the given fixed capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &Buffer{
		entries:  make([]Entry, capacity),
		capacity: capacity,
		subs:     make(map[int]chan Entry),
	}
}

// Push appends an entry, overwriting the oldest if the buffer is full, and
// fans it out to any active subscribers (non-blocking: a slow subscriber
// drops entries rather than stalling producers).
func (b *Buffer) Push(e Entry) {
	b.mu.Lock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
	b.mu.Unlock()

	b.subMu.Lock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	b.subMu.Unlock()
}

// Recent returns up to limit of the most recently pushed entries, oldest
// first. limit<=0 returns everything currently buffered.
func (b *Buffer) Recent(limit int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 || limit > b.size {
		limit = b.size
	}
	out := make([]Entry, 0, limit)
	start := (b.next - b.size + b.capacity) % b.capacity
	for i := b.size - limit; i < b.size; i++ {
		out = append(out, b.entries[(start+i)%b.capacity])
	}
	return out
}

// Clear empties the buffer (DELETE /api/logs).
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make([]Entry, b.capacity)
	b.next = 0
	b.size = 0
}

// Subscribe registers a channel that receives every entry pushed after this
// call, for the dashboard's live log stream. The returned func unsubscribes.
func (b *Buffer) Subscribe(buf int) (<-chan Entry, func()) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	id := b.subID
	b.subID++
	ch := make(chan Entry, buf)
	b.subs[id] = ch
	return ch, func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
}

// Hook adapts a Buffer into a logrus.Hook so every log record written
// through pkg/logger is mirrored here automatically.
type Hook struct {
	Buffer *Buffer
}

func (h *Hook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *Hook) Fire(e *logrus.Entry) error {
	fields := make(map[string]string, len(e.Data))
	for k, v := range e.Data {
		fields[k] = toString(v)
	}
	h.Buffer.Push(Entry{
		Time:    e.Time,
		Level:   e.Level.String(),
		Message: e.Message,
		Fields:  fields,
	})
	return nil
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if stringer, ok := v.(interface{ String() string }); ok {
		return stringer.String()
	}
	return fmt.Sprint(v)
}
