package audit

import (
	"context"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
)

const (
	EventSwapInitiated    = "swap_initiated"
	EventSwapParticipated = "swap_participated"
	EventSwapClaimed      = "swap_claimed"
	EventSwapCompleted    = "swap_completed"
	EventSwapRefunded     = "swap_refunded"
	EventSwapFailed       = "swap_failed"
	EventManualReview     = "manual_review"
	EventSignatureAdded   = "signature_added"
	EventSecurityVerified = "security_verified"
	EventRefundAvailable  = "refund_available"
	EventTxUnconfirmed    = "tx_unconfirmed"
	EventGeolocation      = "geolocation_verified"
	EventBackupActivated  = "backup_recovery_activated"
)

// Event records something that happened to a swap. Fields never carry
// secrets.
type Event struct {
	Type   string         `json:"type"`
	SwapID string         `json:"swap_id"`
	Time   time.Time      `json:"time"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Sink receives events. Emit must not block.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// LogSink writes events to the standard logger.
type LogSink struct{}

func (LogSink) Emit(_ context.Context, ev Event) {
	fields := logger.Fields{
		"event":  ev.Type,
		"swapId": ev.SwapID,
	}
	for k, v := range ev.Fields {
		fields[k] = v
	}
	entry := logger.WithFields(fields)
	switch ev.Type {
	case EventSwapFailed, EventManualReview:
		entry.Error("audit")
	case EventRefundAvailable, EventTxUnconfirmed:
		entry.Warn("audit")
	default:
		entry.Info("audit")
	}
}

// MultiSink fans an event out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// MemorySink keeps every event, for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemorySink) Emit(_ context.Context, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// OfType returns the events of type typ for swap id, all swaps if id is empty.
func (m *MemorySink) OfType(typ, id string) []Event {
	var out []Event
	for _, ev := range m.Events() {
		if ev.Type == typ && (id == "" || ev.SwapID == id) {
			out = append(out, ev)
		}
	}
	return out
}
