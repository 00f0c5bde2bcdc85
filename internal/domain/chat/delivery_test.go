package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// trackerHarness captures timer callbacks so suspension can be triggered
// deterministically
type trackerHarness struct {
	tracker  *Tracker
	clock    *fakeClock
	register func(id uuid.UUID)

	mu        sync.Mutex
	timers    map[uuid.UUID]func()
	changes   []DeliveryStatus
	suspended int
}

func newTrackerHarness(t *testing.T) *trackerHarness {
	t.Helper()
	h := &trackerHarness{
		clock:  newFakeClock(),
		timers: map[uuid.UUID]func(){},
	}
	var nextID uuid.UUID
	h.tracker = NewTracker(30*time.Second, TrackerHooks{
		OnStatusChange: func(_ uuid.UUID, status DeliveryStatus, _ time.Duration) {
			h.mu.Lock()
			h.changes = append(h.changes, status)
			h.mu.Unlock()
		},
		OnSuspended: func(_ uuid.UUID) {
			h.mu.Lock()
			h.suspended++
			h.mu.Unlock()
		},
	})
	h.tracker.now = h.clock.Now
	h.tracker.newTimer = func(_ time.Duration, f func()) *time.Timer {
		h.mu.Lock()
		h.timers[nextID] = f
		h.mu.Unlock()
		return time.AfterFunc(time.Hour, func() {})
	}
	h.register = func(id uuid.UUID) {
		nextID = id
		h.tracker.RegisterOutgoing(id)
	}
	return h
}

func (h *trackerHarness) fireTimeout(id uuid.UUID) {
	h.mu.Lock()
	f := h.timers[id]
	h.mu.Unlock()
	f()
}

func (h *trackerHarness) statusChanges() []DeliveryStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]DeliveryStatus, len(h.changes))
	copy(out, h.changes)
	return out
}

func (h *trackerHarness) suspensions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.suspended
}

func TestTrackerDeliveredThenRead(t *testing.T) {
	h := newTrackerHarness(t)
	defer h.tracker.Close()
	msgID := uuid.New()
	receiver := uuid.New()

	h.register(msgID)
	if status, ok := h.tracker.Status(msgID); !ok || status != StatusSent {
		t.Fatalf("status = %v %v, want sent", status, ok)
	}

	h.clock.Advance(time.Second)
	h.tracker.ProcessUpdate(ReceiptUpdate{MessageID: msgID, DeliveredTo: []uuid.UUID{receiver}})
	if status, _ := h.tracker.Status(msgID); status != StatusDelivered {
		t.Fatalf("status = %v, want delivered", status)
	}

	h.tracker.ProcessUpdate(ReceiptUpdate{
		MessageID:   msgID,
		DeliveredTo: []uuid.UUID{receiver},
		ReadBy:      []uuid.UUID{receiver},
	})
	// Read is terminal, the message is no longer tracked
	if _, ok := h.tracker.Status(msgID); ok {
		t.Fatal("read message should no longer be tracked")
	}

	want := []DeliveryStatus{StatusDelivered, StatusRead}
	got := h.statusChanges()
	if len(got) != len(want) {
		t.Fatalf("status changes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status changes = %v, want %v", got, want)
		}
	}
}

func TestTrackerStatusNeverRegresses(t *testing.T) {
	h := newTrackerHarness(t)
	defer h.tracker.Close()
	msgID := uuid.New()
	receiver := uuid.New()

	h.register(msgID)
	h.tracker.ProcessUpdate(ReceiptUpdate{MessageID: msgID, DeliveredTo: []uuid.UUID{receiver}})
	// A replayed delivered update changes nothing
	h.tracker.ProcessUpdate(ReceiptUpdate{MessageID: msgID, DeliveredTo: []uuid.UUID{receiver}})

	if got := h.statusChanges(); len(got) != 1 {
		t.Fatalf("status changes = %v, want one delivered", got)
	}
}

func TestTrackerSuspension(t *testing.T) {
	h := newTrackerHarness(t)
	defer h.tracker.Close()
	msgID := uuid.New()

	h.register(msgID)
	h.fireTimeout(msgID)

	if status, _ := h.tracker.Status(msgID); status != StatusSuspended {
		t.Fatalf("status = %v, want suspended", status)
	}
	if n := h.suspensions(); n != 1 {
		t.Fatalf("suspensions = %d, want 1", n)
	}

	// Suspension is one-shot and terminal
	h.fireTimeout(msgID)
	if n := h.suspensions(); n != 1 {
		t.Fatalf("suspensions after repeat = %d, want 1", n)
	}

	h.tracker.ProcessUpdate(ReceiptUpdate{MessageID: msgID, DeliveredTo: []uuid.UUID{uuid.New()}})
	if status, _ := h.tracker.Status(msgID); status != StatusSuspended {
		t.Fatalf("late delivery should not revive a suspended message, got %v", status)
	}
}

func TestTrackerDeliveryCancelsSuspension(t *testing.T) {
	h := newTrackerHarness(t)
	defer h.tracker.Close()
	msgID := uuid.New()

	h.register(msgID)
	h.tracker.ProcessUpdate(ReceiptUpdate{MessageID: msgID, DeliveredTo: []uuid.UUID{uuid.New()}})

	// A stale timeout callback after delivery must not suspend
	h.fireTimeout(msgID)
	if status, _ := h.tracker.Status(msgID); status != StatusDelivered {
		t.Fatalf("status = %v, want delivered", status)
	}
	if n := h.suspensions(); n != 0 {
		t.Fatalf("suspensions = %d, want 0", n)
	}
}

func TestTrackerCloseStopsTracking(t *testing.T) {
	h := newTrackerHarness(t)
	msgID := uuid.New()

	h.register(msgID)
	h.tracker.Close()

	if _, ok := h.tracker.Status(msgID); ok {
		t.Fatal("closed tracker should drop state")
	}

	h.fireTimeout(msgID)
	if n := h.suspensions(); n != 0 {
		t.Fatalf("suspensions after close = %d, want 0", n)
	}

	// Registrations after close are ignored
	h.register(uuid.New())
	if len(h.tracker.messages) != 0 {
		t.Fatal("closed tracker should not accept registrations")
	}
}
