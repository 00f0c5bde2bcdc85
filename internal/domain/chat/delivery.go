package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chactivo/chactivo-api/internal/pkg/metrics"
)

// ReceiptUpdate carries the current acknowledgement sets for a message
type ReceiptUpdate struct {
	MessageID   uuid.UUID
	DeliveredTo []uuid.UUID
	ReadBy      []uuid.UUID
}

// TrackerHooks are invoked by the tracker outside its lock. Either hook
// may be nil.
type TrackerHooks struct {
	// OnStatusChange fires when a message advances to a new status,
	// with the time elapsed since the send
	OnStatusChange func(messageID uuid.UUID, status DeliveryStatus, elapsed time.Duration)
	// OnSuspended fires once when a message times out without any
	// delivery acknowledgement
	OnSuspended func(messageID uuid.UUID)
}

type trackedMessage struct {
	status DeliveryStatus
	sentAt time.Time
	timer  *time.Timer
}

// Tracker follows outgoing messages from sent to read. A message that
// receives no delivery acknowledgement within the timeout is suspended;
// suspension is terminal and fires its hook exactly once.
type Tracker struct {
	mu       sync.Mutex
	timeout  time.Duration
	messages map[uuid.UUID]*trackedMessage
	hooks    TrackerHooks
	closed   bool

	now      func() time.Time
	newTimer func(d time.Duration, f func()) *time.Timer
}

// NewTracker creates a delivery tracker with the given suspension timeout
func NewTracker(timeout time.Duration, hooks TrackerHooks) *Tracker {
	return &Tracker{
		timeout:  timeout,
		messages: make(map[uuid.UUID]*trackedMessage),
		hooks:    hooks,
		now:      time.Now,
		newTimer: time.AfterFunc,
	}
}

// RegisterOutgoing starts tracking a freshly sent message
func (t *Tracker) RegisterOutgoing(messageID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	if _, ok := t.messages[messageID]; ok {
		return
	}

	m := &trackedMessage{status: StatusSent, sentAt: t.now()}
	m.timer = t.newTimer(t.timeout, func() { t.suspend(messageID) })
	t.messages[messageID] = m
}

// ProcessUpdate applies an acknowledgement snapshot. Status only moves
// forward: a delivered update arriving after read is ignored, and a
// suspended message stays suspended.
func (t *Tracker) ProcessUpdate(upd ReceiptUpdate) {
	next := StatusSent
	if len(upd.DeliveredTo) > 0 {
		next = StatusDelivered
	}
	if len(upd.ReadBy) > 0 {
		next = StatusRead
	}
	if next == StatusSent {
		return
	}

	t.mu.Lock()
	m, ok := t.messages[upd.MessageID]
	if !ok || m.status == StatusSuspended || next.rank() <= m.status.rank() {
		t.mu.Unlock()
		return
	}

	prev := m.status
	m.status = next
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	elapsed := t.now().Sub(m.sentAt)
	if next == StatusRead {
		// Terminal: nothing further to track
		delete(t.messages, upd.MessageID)
	}
	t.mu.Unlock()

	if prev == StatusSent {
		metrics.DeliveryLatency.Observe(elapsed.Seconds())
	}
	if next == StatusRead {
		metrics.ReadLatency.Observe(elapsed.Seconds())
	}
	if t.hooks.OnStatusChange != nil {
		t.hooks.OnStatusChange(upd.MessageID, next, elapsed)
	}
}

// Status reports the tracked status of a message. The second return is
// false once a message is no longer tracked (read, or never registered).
func (t *Tracker) Status(messageID uuid.UUID) (DeliveryStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.messages[messageID]
	if !ok {
		return "", false
	}
	return m.status, true
}

// Close stops all pending timers and drops tracked state
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for _, m := range t.messages {
		if m.timer != nil {
			m.timer.Stop()
		}
	}
	t.messages = make(map[uuid.UUID]*trackedMessage)
}

func (t *Tracker) suspend(messageID uuid.UUID) {
	t.mu.Lock()
	m, ok := t.messages[messageID]
	if !ok || m.status != StatusSent || t.closed {
		t.mu.Unlock()
		return
	}
	m.status = StatusSuspended
	m.timer = nil
	t.mu.Unlock()

	metrics.MessagesSuspended.Inc()
	if t.hooks.OnSuspended != nil {
		t.hooks.OnSuspended(messageID)
	}
}
