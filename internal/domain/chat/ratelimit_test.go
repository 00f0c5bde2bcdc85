package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeMuteStore struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
	done  chan struct{}
}

func newFakeMuteStore() *fakeMuteStore {
	return &fakeMuteStore{done: make(chan struct{}, 8)}
}

func (s *fakeMuteStore) ImposeMute(_ context.Context, _ uuid.UUID, until time.Time, _ string, _ int) error {
	s.mu.Lock()
	s.calls = append(s.calls, until)
	err := s.err
	s.mu.Unlock()
	s.done <- struct{}{}
	return err
}

func testLimiterConfig() RateLimitConfig {
	return RateLimitConfig{
		MinInterval:   time.Second,
		Window:        time.Minute,
		MaxPerWindow:  5,
		MaxDuplicates: 2,
		HistorySize:   5,
		MuteDuration:  5 * time.Minute,
	}
}

func TestRateLimiterMinInterval(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(testLimiterConfig(), nil)
	l.now = clock.Now
	userID := uuid.New()

	d := l.Check(context.Background(), userID, "hello")
	if !d.Allowed {
		t.Fatalf("first send should be allowed, got reason %q", d.Reason)
	}
	l.Record(userID, "hello")

	clock.Advance(300 * time.Millisecond)
	d = l.Check(context.Background(), userID, "again")
	if d.Allowed {
		t.Fatal("send inside min interval should be denied")
	}
	if d.Reason != ReasonTooFast {
		t.Fatalf("reason = %q, want %q", d.Reason, ReasonTooFast)
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("retry after = %v, want positive", d.RetryAfter)
	}

	clock.Advance(time.Second)
	if d := l.Check(context.Background(), userID, "again"); !d.Allowed {
		t.Fatalf("send after interval should be allowed, got %q", d.Reason)
	}
}

func TestRateLimiterVolumeMute(t *testing.T) {
	clock := newFakeClock()
	cfg := testLimiterConfig()
	cfg.MinInterval = 0
	cfg.MaxDuplicates = 100
	l := NewRateLimiter(cfg, nil)
	l.now = clock.Now
	userID := uuid.New()

	for i := 0; i < cfg.MaxPerWindow; i++ {
		if d := l.Check(context.Background(), userID, "msg"); !d.Allowed {
			t.Fatalf("send %d should be allowed, got %q", i, d.Reason)
		}
		l.Record(userID, "msg")
		clock.Advance(time.Millisecond)
	}

	d := l.Check(context.Background(), userID, "msg")
	if d.Allowed || d.Reason != ReasonLimitReached {
		t.Fatalf("over-limit send: allowed=%v reason=%q, want limit_reached", d.Allowed, d.Reason)
	}

	// The imposed mute now answers for subsequent checks
	d = l.Check(context.Background(), userID, "msg")
	if d.Allowed || d.Reason != ReasonMuted {
		t.Fatalf("muted send: allowed=%v reason=%q, want muted", d.Allowed, d.Reason)
	}

	clock.Advance(cfg.MuteDuration + time.Second)
	if d := l.Check(context.Background(), userID, "msg"); !d.Allowed {
		t.Fatalf("send after mute expiry should be allowed, got %q", d.Reason)
	}
}

func TestRateLimiterDuplicateMute(t *testing.T) {
	clock := newFakeClock()
	cfg := testLimiterConfig()
	cfg.MinInterval = 0
	cfg.MaxPerWindow = 100
	l := NewRateLimiter(cfg, nil)
	l.now = clock.Now
	userID := uuid.New()

	for i := 0; i < cfg.MaxDuplicates; i++ {
		l.Record(userID, "  Buy  GOLD now ")
		clock.Advance(time.Millisecond)
	}

	// Same content modulo case and whitespace
	d := l.Check(context.Background(), userID, "buy gold NOW")
	if d.Allowed || d.Reason != ReasonLimitReached {
		t.Fatalf("duplicate flood: allowed=%v reason=%q, want limit_reached", d.Allowed, d.Reason)
	}

	// A different user is unaffected
	if d := l.Check(context.Background(), uuid.New(), "buy gold now"); !d.Allowed {
		t.Fatalf("other user should be allowed, got %q", d.Reason)
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	clock := newFakeClock()
	cfg := testLimiterConfig()
	cfg.MinInterval = 0
	cfg.MaxDuplicates = 100
	l := NewRateLimiter(cfg, nil)
	l.now = clock.Now
	userID := uuid.New()

	for i := 0; i < cfg.MaxPerWindow; i++ {
		l.Record(userID, "msg")
	}

	clock.Advance(cfg.Window + time.Second)
	if d := l.Check(context.Background(), userID, "msg"); !d.Allowed {
		t.Fatalf("sends outside window should not count, got %q", d.Reason)
	}
}

func TestRateLimiterPersistsMute(t *testing.T) {
	clock := newFakeClock()
	cfg := testLimiterConfig()
	cfg.MinInterval = 0
	cfg.MaxDuplicates = 100
	cfg.MaxPerWindow = 1
	store := newFakeMuteStore()
	l := NewRateLimiter(cfg, store)
	l.now = clock.Now
	userID := uuid.New()

	l.Record(userID, "msg")
	if d := l.Check(context.Background(), userID, "msg"); d.Allowed {
		t.Fatal("over-limit send should be denied")
	}

	select {
	case <-store.done:
	case <-time.After(2 * time.Second):
		t.Fatal("mute was not mirrored to the store")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.calls) != 1 {
		t.Fatalf("store calls = %d, want 1", len(store.calls))
	}
	want := clock.Now().Add(cfg.MuteDuration)
	if !store.calls[0].Equal(want) {
		t.Fatalf("mute until = %v, want %v", store.calls[0], want)
	}
}

func TestRateLimiterMuteStoreFailureFailsOpen(t *testing.T) {
	clock := newFakeClock()
	cfg := testLimiterConfig()
	cfg.MinInterval = 0
	cfg.MaxDuplicates = 100
	cfg.MaxPerWindow = 1
	store := newFakeMuteStore()
	store.err = errors.New("redis down")
	l := NewRateLimiter(cfg, store)
	l.now = clock.Now
	userID := uuid.New()

	l.Record(userID, "msg")
	if d := l.Check(context.Background(), userID, "msg"); d.Allowed {
		t.Fatal("over-limit send should be denied")
	}
	<-store.done

	// The local mute still holds despite the failed mirror write
	if d := l.Check(context.Background(), userID, "msg"); d.Allowed || d.Reason != ReasonMuted {
		t.Fatalf("local mute should hold, allowed=%v reason=%q", d.Allowed, d.Reason)
	}
}

func TestRateLimiterCacheAndClearMute(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(testLimiterConfig(), nil)
	l.now = clock.Now
	userID := uuid.New()

	l.CacheMute(userID, clock.Now().Add(time.Hour))
	if d := l.Check(context.Background(), userID, "msg"); d.Allowed || d.Reason != ReasonMuted {
		t.Fatalf("cached mute should deny, allowed=%v reason=%q", d.Allowed, d.Reason)
	}

	l.ClearMute(userID)
	if d := l.Check(context.Background(), userID, "msg"); !d.Allowed {
		t.Fatalf("cleared mute should allow, got %q", d.Reason)
	}
}

func TestNormalizeContent(t *testing.T) {
	if got := normalizeContent("  Hello   WORLD  "); got != "hello world" {
		t.Fatalf("normalizeContent = %q, want %q", got, "hello world")
	}
	if got := normalizeContent("\t\n"); got != "" {
		t.Fatalf("normalizeContent = %q, want empty", got)
	}
}
