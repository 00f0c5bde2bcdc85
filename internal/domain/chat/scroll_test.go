package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type scrollHarness struct {
	tracker *ScrollTracker

	mu       sync.Mutex
	scrolls  int
	unreads  []int
	restores []uuid.UUID
	rejoin   func()
}

func newScrollHarness() *scrollHarness {
	h := &scrollHarness{}
	h.tracker = NewScrollTracker(ScrollCallbacks{
		ScrollToBottom: func() {
			h.mu.Lock()
			h.scrolls++
			h.mu.Unlock()
		},
		UnreadChanged: func(count int) {
			h.mu.Lock()
			h.unreads = append(h.unreads, count)
			h.mu.Unlock()
		},
		RestoreAnchor: func(messageID uuid.UUID) {
			h.mu.Lock()
			h.restores = append(h.restores, messageID)
			h.mu.Unlock()
		},
	})
	h.tracker.newTimer = func(_ time.Duration, f func()) *time.Timer {
		h.mu.Lock()
		h.rejoin = f
		h.mu.Unlock()
		return time.AfterFunc(time.Hour, func() {})
	}
	return h
}

func (h *scrollHarness) scrollCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrolls
}

func (h *scrollHarness) restoredAnchors() []uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]uuid.UUID(nil), h.restores...)
}

func (h *scrollHarness) fireRejoin(t *testing.T) {
	t.Helper()
	h.mu.Lock()
	f := h.rejoin
	h.mu.Unlock()
	if f == nil {
		t.Fatal("no rejoin timer scheduled")
	}
	f()
}

func TestScrollAutoFollowsNewMessages(t *testing.T) {
	h := newScrollHarness()
	defer h.tracker.Close()

	h.tracker.HandleIncoming(false)
	if h.scrollCount() != 1 {
		t.Fatalf("scrolls = %d, want 1", h.scrollCount())
	}
	if got := h.tracker.State(); got != ScrollAutoFollow {
		t.Fatalf("state = %v, want auto_follow", got)
	}
}

func TestScrollUserPauseAccumulatesUnread(t *testing.T) {
	h := newScrollHarness()
	defer h.tracker.Close()
	anchor := uuid.New()

	h.tracker.HandleScroll(300, true, anchor)
	if got := h.tracker.State(); got != ScrollPausedUser {
		t.Fatalf("state = %v, want paused_user", got)
	}
	if got := h.tracker.Anchor(); got != anchor {
		t.Fatalf("anchor = %v, want %v", got, anchor)
	}

	h.tracker.HandleIncoming(false)
	h.tracker.HandleIncoming(false)
	if h.scrollCount() != 0 {
		t.Fatal("paused viewport must not auto-scroll")
	}
	if got := h.tracker.Unread(); got != 2 {
		t.Fatalf("unread = %d, want 2", got)
	}

	// Scrolling back to the bottom rejoins and clears the counter
	h.tracker.HandleScroll(10, true, uuid.Nil)
	if got := h.tracker.State(); got != ScrollAutoFollow {
		t.Fatalf("state = %v, want auto_follow", got)
	}
	if got := h.tracker.Unread(); got != 0 {
		t.Fatalf("unread = %d, want 0", got)
	}
	if got := h.tracker.Anchor(); got != uuid.Nil {
		t.Fatalf("anchor = %v, want nil", got)
	}
}

func TestScrollSmallDistanceDoesNotPause(t *testing.T) {
	h := newScrollHarness()
	defer h.tracker.Close()

	// Within the bottom threshold still counts as following
	h.tracker.HandleScroll(30, true, uuid.Nil)
	if got := h.tracker.State(); got != ScrollAutoFollow {
		t.Fatalf("state = %v, want auto_follow", got)
	}
}

func TestScrollOwnMessageForcesFollow(t *testing.T) {
	h := newScrollHarness()
	defer h.tracker.Close()

	h.tracker.HandleScroll(300, true, uuid.New())
	h.tracker.HandleIncoming(false)

	h.tracker.HandleIncoming(true)
	if h.scrollCount() != 1 {
		t.Fatalf("scrolls = %d, want 1", h.scrollCount())
	}
	if got := h.tracker.State(); got != ScrollAutoFollow {
		t.Fatalf("state = %v, want auto_follow", got)
	}
	if got := h.tracker.Unread(); got != 0 {
		t.Fatalf("unread = %d, want 0", got)
	}
}

func TestScrollInputPauseRejoinsAfterBlur(t *testing.T) {
	h := newScrollHarness()
	defer h.tracker.Close()

	h.tracker.HandleInputFocus()
	if got := h.tracker.State(); got != ScrollPausedInput {
		t.Fatalf("state = %v, want paused_input", got)
	}

	// Typing does not block new messages from scrolling into view
	h.tracker.HandleIncoming(false)
	if h.scrollCount() != 1 {
		t.Fatalf("scrolls = %d, want 1", h.scrollCount())
	}

	h.tracker.HandleInputBlur()
	h.fireRejoin(t)
	if got := h.tracker.State(); got != ScrollAutoFollow {
		t.Fatalf("state = %v, want auto_follow", got)
	}
}

func TestScrollRejoinSkippedWhenScrolledAway(t *testing.T) {
	h := newScrollHarness()
	defer h.tracker.Close()

	h.tracker.HandleInputFocus()
	h.tracker.HandleScroll(400, false, uuid.Nil) // programmatic reposition
	h.tracker.HandleInputBlur()
	h.fireRejoin(t)

	// Still far from the bottom, so the rejoin timer backs off
	if got := h.tracker.State(); got != ScrollPausedInput {
		t.Fatalf("state = %v, want paused_input", got)
	}
}

func TestScrollSelectionPause(t *testing.T) {
	h := newScrollHarness()
	defer h.tracker.Close()

	h.tracker.HandleSelectionStart()
	if got := h.tracker.State(); got != ScrollPausedSelection {
		t.Fatalf("state = %v, want paused_selection", got)
	}

	h.tracker.HandleIncoming(false)
	if h.scrollCount() != 0 {
		t.Fatal("selection must not be disturbed by auto-scroll")
	}
	if got := h.tracker.Unread(); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}

	h.tracker.HandleSelectionEnd()
	h.fireRejoin(t)
	if got := h.tracker.State(); got != ScrollAutoFollow {
		t.Fatalf("state = %v, want auto_follow", got)
	}
	if got := h.tracker.Unread(); got != 0 {
		t.Fatalf("unread = %d, want 0", got)
	}
}

func TestScrollResizeThreshold(t *testing.T) {
	h := newScrollHarness()
	defer h.tracker.Close()

	// Below the threshold: keyboard animations, scrollbar churn
	h.tracker.HandleResize(30)
	if h.scrollCount() != 0 {
		t.Fatal("small resize should be ignored")
	}

	h.tracker.HandleResize(-120)
	if h.scrollCount() != 1 {
		t.Fatalf("scrolls = %d, want 1 after real resize", h.scrollCount())
	}

	// A paused viewport stays put whatever the resize
	h.tracker.HandleScroll(300, true, uuid.Nil)
	h.tracker.HandleResize(200)
	if h.scrollCount() != 1 {
		t.Fatal("paused viewport must not re-pin on resize")
	}
}

func TestScrollResizeFarFromBottomStaysPut(t *testing.T) {
	h := newScrollHarness()
	defer h.tracker.Close()

	// Programmatic reposition keeps auto-follow but moves the viewport
	h.tracker.HandleScroll(400, false, uuid.Nil)
	if got := h.tracker.State(); got != ScrollAutoFollow {
		t.Fatalf("state = %v, want auto_follow", got)
	}

	h.tracker.HandleResize(200)
	if h.scrollCount() != 0 {
		t.Fatalf("scrolls = %d, want 0: resize must not re-pin a viewport far from the bottom", h.scrollCount())
	}

	// Back near the bottom the resize re-pin applies again
	h.tracker.HandleScroll(10, false, uuid.Nil)
	h.tracker.HandleResize(200)
	if h.scrollCount() != 1 {
		t.Fatalf("scrolls = %d, want 1", h.scrollCount())
	}
}

func TestScrollPausedArrivalRestoresAnchor(t *testing.T) {
	h := newScrollHarness()
	defer h.tracker.Close()
	anchor := uuid.New()

	h.tracker.HandleScroll(300, true, anchor)

	h.tracker.HandleIncoming(false)
	h.tracker.HandleIncoming(false)
	if h.scrollCount() != 0 {
		t.Fatal("paused viewport must not auto-scroll")
	}

	restores := h.restoredAnchors()
	if len(restores) != 2 {
		t.Fatalf("restores = %d, want 2", len(restores))
	}
	for _, got := range restores {
		if got != anchor {
			t.Fatalf("restored anchor = %v, want %v", got, anchor)
		}
	}

	// Rejoining clears the anchor; arrivals in auto-follow never restore
	h.tracker.HandleScroll(10, true, uuid.Nil)
	h.tracker.HandleIncoming(false)
	if got := h.restoredAnchors(); len(got) != 2 {
		t.Fatalf("restores = %d after rejoin, want 2", len(got))
	}
}
