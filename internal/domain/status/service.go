package status

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chactivo/chactivo-api/internal/domain/chat"
)

var (
	ErrEmptyStatus    = errors.New("status content is empty")
	ErrStatusNotFound = errors.New("status not found")
)

// Service handles ephemeral status posts. Every new status is pushed to
// all connected clients; expired rows are swept by the janitor.
type Service struct {
	repo Repository
	hub  *chat.Hub
	ttl  time.Duration
}

// NewService creates status service
func NewService(repo Repository, hub *chat.Hub, ttl time.Duration) *Service {
	return &Service{repo: repo, hub: hub, ttl: ttl}
}

// Post publishes a status visible until its TTL runs out
func (s *Service) Post(ctx context.Context, userID uuid.UUID, username, content string) (*Status, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyStatus
	}

	now := time.Now()
	st := &Status{
		ID:        uuid.New(),
		UserID:    userID,
		Username:  username,
		Content:   content,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}

	s.hub.BroadcastGlobal(&chat.WSEvent{
		Type:     chat.EventStatusNew,
		SenderID: userID,
		Data:     st,
	})
	return st, nil
}

// ListActive returns statuses that have not expired yet
func (s *Service) ListActive(ctx context.Context, limit int) ([]*Status, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListActive(ctx, time.Now(), limit)
}

// Delete removes the caller's own status
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrStatusNotFound
	}
	return nil
}

// SweepExpired removes expired statuses, called by the janitor
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, time.Now())
}
