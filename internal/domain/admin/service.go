package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chactivo/chactivo-api/internal/domain/chat"
	"github.com/chactivo/chactivo-api/internal/domain/moderation"
	"github.com/chactivo/chactivo-api/internal/domain/user"
)

// Stats is the operator dashboard snapshot
type Stats struct {
	TotalUsers        int                 `json:"total_users"`
	ConnectedClients  int                 `json:"connected_clients"`
	MessagesLastDay   int                 `json:"messages_last_day"`
	ActiveMutes       int                 `json:"active_mutes"`
	PendingReports    int                 `json:"pending_reports"`
	DeliveryLatency   chat.LatencySummary `json:"delivery_latency"`
	ReadLatency       chat.LatencySummary `json:"read_latency"`
	SuspendedMessages int                 `json:"suspended_messages"`
}

// Service handles administration operations
type Service struct {
	userRepo      user.Repository
	chatRepo      chat.Repository
	chatSvc       *chat.Service
	moderationSvc *moderation.Service
	hub           *chat.Hub
}

// NewService creates admin service
func NewService(userRepo user.Repository, chatRepo chat.Repository, chatSvc *chat.Service, moderationSvc *moderation.Service, hub *chat.Hub) *Service {
	return &Service{
		userRepo:      userRepo,
		chatRepo:      chatRepo,
		chatSvc:       chatSvc,
		moderationSvc: moderationSvc,
		hub:           hub,
	}
}

// GetStats assembles the dashboard snapshot. Individual count failures
// are logged and reported as zero.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	messages, err := s.chatRepo.CountMessagesSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count recent messages")
	}
	mutes, err := s.moderationSvc.CountActiveMutes(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count active mutes")
	}
	reports, err := s.moderationSvc.CountPendingReports(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count pending reports")
	}

	delivery, read, suspended := s.chatSvc.Perf().Snapshot()
	return &Stats{
		TotalUsers:        total,
		ConnectedClients:  s.hub.GetConnectionCount(),
		MessagesLastDay:   messages,
		ActiveMutes:       mutes,
		PendingReports:    reports,
		DeliveryLatency:   delivery,
		ReadLatency:       read,
		SuspendedMessages: suspended,
	}, nil
}

// SetBanned bans or unbans a user
func (s *Service) SetBanned(ctx context.Context, userID uuid.UUID, banned bool) error {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}
	return s.userRepo.SetBanned(ctx, userID, banned)
}

// ListUsersByRole returns users holding a role
func (s *Service) ListUsersByRole(ctx context.Context, role user.Role) ([]*user.User, error) {
	return s.userRepo.ListByRole(ctx, role)
}

// SearchUsers finds users by username fragment
func (s *Service) SearchUsers(ctx context.Context, query string, limit int) ([]*user.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.userRepo.Search(ctx, query, limit, 0)
}
