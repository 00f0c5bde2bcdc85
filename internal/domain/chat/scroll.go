package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScrollState is the follow mode of a chat viewport
type ScrollState string

const (
	// ScrollAutoFollow pins the viewport to the newest message
	ScrollAutoFollow ScrollState = "auto_follow"
	// ScrollPausedUser means the user scrolled up to read history
	ScrollPausedUser ScrollState = "paused_user"
	// ScrollPausedInput means the message input has focus
	ScrollPausedInput ScrollState = "paused_input"
	// ScrollPausedSelection means the user is selecting text
	ScrollPausedSelection ScrollState = "paused_selection"
)

// ScrollCallbacks are invoked by the tracker outside its lock. Any
// callback may be nil.
type ScrollCallbacks struct {
	// ScrollToBottom asks the viewport to snap to the newest message
	ScrollToBottom func()
	// UnreadChanged reports the number of messages that arrived while
	// auto-follow was off
	UnreadChanged func(count int)
	// RestoreAnchor asks the viewport to keep the anchored message in
	// place after new content shifted the scroll height
	RestoreAnchor func(messageID uuid.UUID)
}

// ScrollTracker decides when a chat viewport follows new messages and when
// it stays put. It reacts to viewport events (scroll, focus, selection,
// resize) and to message arrivals; it never reads the viewport itself.
type ScrollTracker struct {
	mu sync.Mutex

	state    ScrollState
	unread   int
	anchor   uuid.UUID // topmost visible message while paused
	distance float64   // current distance from the bottom, in pixels

	bottomThreshold float64 // within this distance counts as "at bottom"
	resizeThreshold float64 // viewport height deltas below this are ignored
	rejoinDelay     time.Duration

	cb          ScrollCallbacks
	rejoinTimer *time.Timer
	closed      bool

	newTimer func(d time.Duration, f func()) *time.Timer
}

// NewScrollTracker creates a tracker in auto-follow mode
func NewScrollTracker(cb ScrollCallbacks) *ScrollTracker {
	return &ScrollTracker{
		state:           ScrollAutoFollow,
		bottomThreshold: 50,
		resizeThreshold: 50,
		rejoinDelay:     5 * time.Second,
		cb:              cb,
		newTimer:        time.AfterFunc,
	}
}

// State returns the current follow mode
func (s *ScrollTracker) State() ScrollState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Unread returns how many messages arrived while not following
func (s *ScrollTracker) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Anchor returns the message pinned at the top of a paused viewport
func (s *ScrollTracker) Anchor() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchor
}

// HandleScroll processes a viewport scroll. byUser distinguishes a user
// gesture from a programmatic scroll; only user gestures can pause
// following, and only returning to the bottom can resume it.
func (s *ScrollTracker) HandleScroll(distanceFromBottom float64, byUser bool, topMessageID uuid.UUID) {
	s.mu.Lock()
	s.distance = distanceFromBottom

	if byUser && distanceFromBottom > s.bottomThreshold && s.state == ScrollAutoFollow {
		s.state = ScrollPausedUser
		s.anchor = topMessageID
		s.mu.Unlock()
		return
	}

	if distanceFromBottom <= s.bottomThreshold && s.state == ScrollPausedUser {
		s.rejoinLocked()
		cb, n := s.cb.UnreadChanged, s.unread
		s.mu.Unlock()
		if cb != nil {
			cb(n)
		}
		return
	}
	s.mu.Unlock()
}

// HandleInputFocus pauses following while the user is composing
func (s *ScrollTracker) HandleInputFocus() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelRejoinLocked()
	if s.state == ScrollAutoFollow {
		s.state = ScrollPausedInput
	}
}

// HandleInputBlur schedules a return to auto-follow. The delay keeps the
// viewport stable while the user clicks around after typing.
func (s *ScrollTracker) HandleInputBlur() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ScrollPausedInput {
		return
	}
	s.scheduleRejoinLocked(ScrollPausedInput)
}

// HandleSelectionStart pauses following while text is selected
func (s *ScrollTracker) HandleSelectionStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelRejoinLocked()
	if s.state == ScrollAutoFollow || s.state == ScrollPausedInput {
		s.state = ScrollPausedSelection
	}
}

// HandleSelectionEnd schedules a return to auto-follow once the selection
// is cleared
func (s *ScrollTracker) HandleSelectionEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ScrollPausedSelection {
		return
	}
	s.scheduleRejoinLocked(ScrollPausedSelection)
}

// HandleResize processes a viewport height change. Small deltas (on-screen
// keyboards animating, scrollbars appearing) are ignored; a real resize
// re-pins the viewport only while following and already near the bottom.
func (s *ScrollTracker) HandleResize(heightDelta float64) {
	s.mu.Lock()
	if heightDelta < 0 {
		heightDelta = -heightDelta
	}
	if heightDelta < s.resizeThreshold || s.state != ScrollAutoFollow || s.distance > s.bottomThreshold {
		s.mu.Unlock()
		return
	}
	cb := s.cb.ScrollToBottom
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// HandleIncoming processes a new message in the room. The user's own
// message always snaps the viewport down, whatever the state; other
// people's messages never move a viewport paused by a user gesture or a
// selection, they only grow the unread count.
func (s *ScrollTracker) HandleIncoming(own bool) {
	s.mu.Lock()

	if own {
		s.rejoinLocked()
		scroll, unreadCb, n := s.cb.ScrollToBottom, s.cb.UnreadChanged, s.unread
		s.mu.Unlock()
		if scroll != nil {
			scroll()
		}
		if unreadCb != nil {
			unreadCb(n)
		}
		return
	}

	switch s.state {
	case ScrollPausedUser, ScrollPausedSelection:
		s.unread++
		cb, n := s.cb.UnreadChanged, s.unread
		restore, anchor := s.cb.RestoreAnchor, s.anchor
		s.mu.Unlock()
		if cb != nil {
			cb(n)
		}
		if restore != nil && anchor != uuid.Nil {
			restore(anchor)
		}
	default:
		cb := s.cb.ScrollToBottom
		s.mu.Unlock()
		if cb != nil {
			cb()
		}
	}
}

// Close cancels the pending rejoin timer
func (s *ScrollTracker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelRejoinLocked()
}

func (s *ScrollTracker) scheduleRejoinLocked(from ScrollState) {
	s.cancelRejoinLocked()
	s.rejoinTimer = s.newTimer(s.rejoinDelay, func() {
		s.mu.Lock()
		if s.closed || s.state != from || s.distance > s.bottomThreshold {
			s.mu.Unlock()
			return
		}
		s.rejoinLocked()
		scroll, unreadCb, n := s.cb.ScrollToBottom, s.cb.UnreadChanged, s.unread
		s.mu.Unlock()
		if scroll != nil {
			scroll()
		}
		if unreadCb != nil {
			unreadCb(n)
		}
	})
}

func (s *ScrollTracker) cancelRejoinLocked() {
	if s.rejoinTimer != nil {
		s.rejoinTimer.Stop()
		s.rejoinTimer = nil
	}
}

func (s *ScrollTracker) rejoinLocked() {
	s.cancelRejoinLocked()
	s.state = ScrollAutoFollow
	s.unread = 0
	s.anchor = uuid.Nil
}
