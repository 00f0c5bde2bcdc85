package moderation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chactivo/chactivo-api/internal/domain/user"
)

type fakeRepo struct {
	mu      sync.Mutex
	mutes   []*Mute
	reports map[uuid.UUID]*Report
	blocks  map[[2]uuid.UUID]*Block
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		reports: map[uuid.UUID]*Report{},
		blocks:  map[[2]uuid.UUID]*Block{},
	}
}

func (f *fakeRepo) CreateMute(_ context.Context, mute *Mute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutes = append(f.mutes, mute)
	return nil
}

func (f *fakeRepo) GetActiveMute(_ context.Context, userID uuid.UUID, at time.Time) (*Mute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *Mute
	for _, m := range f.mutes {
		if m.UserID == userID && m.Active(at) {
			if best == nil || m.MuteEnd.After(best.MuteEnd) {
				best = m
			}
		}
	}
	return best, nil
}

func (f *fakeRepo) EndMute(_ context.Context, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mutes {
		if m.UserID == userID && m.MuteEnd.After(at) {
			m.MuteEnd = at
		}
	}
	return nil
}

func (f *fakeRepo) ListMutes(_ context.Context, activeOnly bool, limit, offset int) ([]*Mute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Mute, 0)
	now := time.Now()
	for _, m := range f.mutes {
		if !activeOnly || m.Active(now) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountActiveMutes(_ context.Context, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.mutes {
		if m.Active(at) {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) DeleteExpiredMutes(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.mutes[:0]
	var n int64
	for _, m := range f.mutes {
		if m.MuteEnd.Before(olderThan) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	f.mutes = kept
	return n, nil
}

func (f *fakeRepo) CreateReport(_ context.Context, report *Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[report.ID] = report
	return nil
}

func (f *fakeRepo) GetReportByID(_ context.Context, id uuid.UUID) (*Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reports[id], nil
}

func (f *fakeRepo) ListReports(_ context.Context, status ReportStatus, limit, offset int) ([]*Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Report, 0)
	for _, r := range f.reports {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountPendingReports(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, r := range f.reports {
		if r.Status == ReportPending {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) ResolveReport(_ context.Context, id, resolvedBy uuid.UUID, status ReportStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.reports[id]; ok {
		r.Status = status
		r.ResolvedBy = uuid.NullUUID{UUID: resolvedBy, Valid: true}
	}
	return nil
}

func (f *fakeRepo) CreateBlock(_ context.Context, block *Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[[2]uuid.UUID{block.BlockerID, block.BlockedID}] = block
	return nil
}

func (f *fakeRepo) DeleteBlock(_ context.Context, blockerID, blockedID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blocks, [2]uuid.UUID{blockerID, blockedID})
	return nil
}

func (f *fakeRepo) GetBlock(_ context.Context, blockerID, blockedID uuid.UUID) (*Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocks[[2]uuid.UUID{blockerID, blockedID}], nil
}

func (f *fakeRepo) ListBlocksByUser(_ context.Context, blockerID uuid.UUID) ([]*Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Block, 0)
	for key, b := range f.blocks {
		if key[0] == blockerID {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	user.Repository
	users map[uuid.UUID]*user.User
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	return f.users[id], nil
}

func newTestService(t *testing.T, knownUsers ...uuid.UUID) (*Service, *fakeRepo) {
	t.Helper()
	users := map[uuid.UUID]*user.User{}
	for _, id := range knownUsers {
		users[id] = &user.User{ID: id}
	}
	repo := newFakeRepo()
	return NewService(repo, &fakeUserRepo{users: users}, nil), repo
}

func TestImposeMuteIsQueryable(t *testing.T) {
	userID := uuid.New()
	svc, _ := newTestService(t, userID)
	until := time.Now().Add(5 * time.Minute)

	if err := svc.ImposeMute(context.Background(), userID, until, "rate_limit", 42); err != nil {
		t.Fatalf("ImposeMute: %v", err)
	}

	got, err := svc.ActiveMuteUntil(context.Background(), userID)
	if err != nil {
		t.Fatalf("ActiveMuteUntil: %v", err)
	}
	if !got.Equal(until) {
		t.Fatalf("mute until = %v, want %v", got, until)
	}
}

func TestActiveMuteUntilNoMute(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.ActiveMuteUntil(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ActiveMuteUntil: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("mute until = %v, want zero", got)
	}
}

func TestMuteUserValidation(t *testing.T) {
	moderator := uuid.New()
	svc, _ := newTestService(t, moderator)

	_, err := svc.MuteUser(context.Background(), moderator, &MuteUserRequest{
		UserID:          moderator,
		DurationMinutes: 10,
		Reason:          "spam",
	})
	if err != ErrCannotMuteSelf {
		t.Fatalf("err = %v, want ErrCannotMuteSelf", err)
	}

	_, err = svc.MuteUser(context.Background(), moderator, &MuteUserRequest{
		UserID:          uuid.New(),
		DurationMinutes: 10,
		Reason:          "spam",
	})
	if err != ErrUserNotFound {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestUnmuteEndsActiveMute(t *testing.T) {
	moderator := uuid.New()
	target := uuid.New()
	svc, _ := newTestService(t, moderator, target)

	if _, err := svc.MuteUser(context.Background(), moderator, &MuteUserRequest{
		UserID:          target,
		DurationMinutes: 60,
		Reason:          "flooding",
	}); err != nil {
		t.Fatalf("MuteUser: %v", err)
	}

	if err := svc.UnmuteUser(context.Background(), target); err != nil {
		t.Fatalf("UnmuteUser: %v", err)
	}

	got, err := svc.ActiveMuteUntil(context.Background(), target)
	if err != nil {
		t.Fatalf("ActiveMuteUntil: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("mute until = %v, want zero after unmute", got)
	}
}

func TestReportLifecycle(t *testing.T) {
	reporter := uuid.New()
	target := uuid.New()
	moderator := uuid.New()
	svc, _ := newTestService(t, reporter, target, moderator)

	report, err := svc.CreateReport(context.Background(), reporter, &CreateReportRequest{
		TargetID: target,
		Reason:   "spam",
		Details:  "posting the same link repeatedly",
	})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if report.Status != ReportPending {
		t.Fatalf("status = %v, want pending", report.Status)
	}

	if err := svc.ResolveReport(context.Background(), report.ID, moderator, ReportResolved); err != nil {
		t.Fatalf("ResolveReport: %v", err)
	}

	// Resolving twice is refused
	if err := svc.ResolveReport(context.Background(), report.ID, moderator, ReportDismissed); err != ErrReportResolved {
		t.Fatalf("err = %v, want ErrReportResolved", err)
	}
}

func TestSelfReportRejected(t *testing.T) {
	reporter := uuid.New()
	svc, _ := newTestService(t, reporter)

	_, err := svc.CreateReport(context.Background(), reporter, &CreateReportRequest{
		TargetID: reporter,
		Reason:   "spam",
	})
	if err != ErrCannotReportSelf {
		t.Fatalf("err = %v, want ErrCannotReportSelf", err)
	}
}

func TestBlockUnblock(t *testing.T) {
	blocker := uuid.New()
	blocked := uuid.New()
	svc, _ := newTestService(t, blocker, blocked)

	if err := svc.BlockUser(context.Background(), blocker, &BlockUserRequest{UserID: blocked}); err != nil {
		t.Fatalf("BlockUser: %v", err)
	}
	if err := svc.BlockUser(context.Background(), blocker, &BlockUserRequest{UserID: blocked}); err != ErrAlreadyBlocked {
		t.Fatalf("err = %v, want ErrAlreadyBlocked", err)
	}

	blocks, err := svc.ListBlocks(context.Background(), blocker)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(blocks))
	}

	if err := svc.UnblockUser(context.Background(), blocker, blocked); err != nil {
		t.Fatalf("UnblockUser: %v", err)
	}
	blocks, _ = svc.ListBlocks(context.Background(), blocker)
	if len(blocks) != 0 {
		t.Fatalf("blocks = %d, want 0 after unblock", len(blocks))
	}
}
