package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Deny reasons returned by RateLimiter.Check
const (
	ReasonMuted        = "muted"
	ReasonTooFast      = "too_fast"
	ReasonLimitReached = "limit_reached"
)

// Decision is the outcome of a rate limit check
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// MuteStore persists mutes imposed by the rate limiter so they survive a
// process restart. Writes are asynchronous and fail-open: a failed mirror
// write never blocks or reverses the local decision.
type MuteStore interface {
	ImposeMute(ctx context.Context, userID uuid.UUID, until time.Time, reason string, messageCount int) error
}

// RateLimitConfig tunes the per-user send gate. The shipped defaults are
// deliberately permissive: only the minimum-interval check bites until the
// volume/duplicate thresholds are lowered from their near-unlimited values.
type RateLimitConfig struct {
	MinInterval   time.Duration // minimum gap between two sends (anti double-submit)
	Window        time.Duration // rolling window for volume counting
	MaxPerWindow  int           // max sends inside Window before a mute
	MaxDuplicates int           // max identical contents in history before a mute
	HistorySize   int           // how many recent contents to remember per user
	MuteDuration  time.Duration // length of an imposed mute
}

// DefaultRateLimitConfig returns the production defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MinInterval:   time.Second,
		Window:        time.Minute,
		MaxPerWindow:  1000,
		MaxDuplicates: 50,
		HistorySize:   5,
		MuteDuration:  5 * time.Minute,
	}
}

type userHistory struct {
	timestamps []time.Time
	recent     []string // normalized contents, newest last
	lastSend   time.Time
	muteUntil  time.Time
}

// RateLimiter decides whether a user may send a message right now. All
// checks run against in-memory state; nothing here blocks on the network.
type RateLimiter struct {
	mu    sync.Mutex
	cfg   RateLimitConfig
	users map[uuid.UUID]*userHistory
	mutes MuteStore // nil disables persistence
	now   func() time.Time
}

// NewRateLimiter creates a rate limiter. mutes may be nil.
func NewRateLimiter(cfg RateLimitConfig, mutes MuteStore) *RateLimiter {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 5
	}
	return &RateLimiter{
		cfg:   cfg,
		users: make(map[uuid.UUID]*userHistory),
		mutes: mutes,
		now:   time.Now,
	}
}

// Check decides whether userID may send content now. Callers must invoke
// Record after every allowed send that was actually performed.
func (l *RateLimiter) Check(ctx context.Context, userID uuid.UUID, content string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	h := l.users[userID]
	if h == nil {
		h = &userHistory{}
		l.users[userID] = h
	}

	// Active mute: deny with remaining time
	if h.muteUntil.After(now) {
		return Decision{Reason: ReasonMuted, RetryAfter: h.muteUntil.Sub(now)}
	}

	// Anti double-submit: minimum gap between sends
	if !h.lastSend.IsZero() {
		if elapsed := now.Sub(h.lastSend); elapsed < l.cfg.MinInterval {
			return Decision{Reason: ReasonTooFast, RetryAfter: l.cfg.MinInterval - elapsed}
		}
	}

	// Volume threshold over the rolling window
	cutoff := now.Add(-l.cfg.Window)
	kept := h.timestamps[:0]
	for _, ts := range h.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	h.timestamps = kept

	if len(h.timestamps) >= l.cfg.MaxPerWindow {
		l.imposeMuteLocked(ctx, userID, h, now, len(h.timestamps))
		return Decision{Reason: ReasonLimitReached, RetryAfter: l.cfg.MuteDuration}
	}

	// Duplicate threshold over recent contents
	if normalized := normalizeContent(content); normalized != "" {
		dupes := 0
		for _, prev := range h.recent {
			if prev == normalized {
				dupes++
			}
		}
		if dupes >= l.cfg.MaxDuplicates {
			l.imposeMuteLocked(ctx, userID, h, now, len(h.timestamps))
			return Decision{Reason: ReasonLimitReached, RetryAfter: l.cfg.MuteDuration}
		}
	}

	return Decision{Allowed: true}
}

// Record updates the rolling history after an allowed send
func (l *RateLimiter) Record(userID uuid.UUID, content string) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	h := l.users[userID]
	if h == nil {
		h = &userHistory{}
		l.users[userID] = h
	}

	h.lastSend = now
	h.timestamps = append(h.timestamps, now)
	h.recent = append(h.recent, normalizeContent(content))
	if len(h.recent) > l.cfg.HistorySize {
		h.recent = h.recent[len(h.recent)-l.cfg.HistorySize:]
	}
}

// CacheMute records an externally imposed mute (moderator action or a mute
// loaded from the store at session start) so checks deny without a lookup.
func (l *RateLimiter) CacheMute(userID uuid.UUID, until time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := l.users[userID]
	if h == nil {
		h = &userHistory{}
		l.users[userID] = h
	}
	if until.After(h.muteUntil) {
		h.muteUntil = until
	}
}

// ClearMute drops a cached mute (moderator unmute)
func (l *RateLimiter) ClearMute(userID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h := l.users[userID]; h != nil {
		h.muteUntil = time.Time{}
	}
}

// Close releases per-user state
func (l *RateLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = make(map[uuid.UUID]*userHistory)
}

// imposeMuteLocked caches the mute and mirrors it to the store without
// holding up the deny. Mirror failures are logged and swallowed: the local
// decision holds for this session.
func (l *RateLimiter) imposeMuteLocked(ctx context.Context, userID uuid.UUID, h *userHistory, now time.Time, messageCount int) {
	until := now.Add(l.cfg.MuteDuration)
	h.muteUntil = until

	if l.mutes == nil {
		return
	}
	go func() {
		if err := l.mutes.ImposeMute(context.WithoutCancel(ctx), userID, until, "rate_limit", messageCount); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to persist rate-limit mute")
		}
	}()
}

// normalizeContent lowercases and collapses whitespace for duplicate
// comparison
func normalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
