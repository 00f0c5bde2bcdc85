package moderation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/chactivo/chactivo-api/internal/domain/user"
)

const muteKeyPrefix = "chat:mute:"

// Service handles moderation business logic. Active mutes are mirrored to
// Redis with a TTL so the hot-path lookup in the chat send gate avoids
// Postgres; the table stays authoritative.
type Service struct {
	repo     Repository
	userRepo user.Repository
	redis    *redis.Client // nil degrades to Postgres-only lookups
}

// NewService creates moderation service
func NewService(repo Repository, userRepo user.Repository, redisClient *redis.Client) *Service {
	return &Service{
		repo:     repo,
		userRepo: userRepo,
		redis:    redisClient,
	}
}

// ImposeMute records a mute triggered by the chat rate limiter
func (s *Service) ImposeMute(ctx context.Context, userID uuid.UUID, until time.Time, reason string, messageCount int) error {
	now := time.Now()
	mute := &Mute{
		ID:           uuid.New(),
		UserID:       userID,
		Reason:       reason,
		MessageCount: messageCount,
		MuteStart:    now,
		MuteEnd:      until,
		CreatedAt:    now,
	}
	if err := s.repo.CreateMute(ctx, mute); err != nil {
		return err
	}
	s.mirrorMute(ctx, userID, until)
	return nil
}

// MuteUser applies a moderator-issued mute
func (s *Service) MuteUser(ctx context.Context, moderatorID uuid.UUID, req *MuteUserRequest) (*Mute, error) {
	if moderatorID == req.UserID {
		return nil, ErrCannotMuteSelf
	}
	target, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	now := time.Now()
	mute := &Mute{
		ID:        uuid.New(),
		UserID:    req.UserID,
		MutedBy:   uuid.NullUUID{UUID: moderatorID, Valid: true},
		Reason:    req.Reason,
		MuteStart: now,
		MuteEnd:   now.Add(time.Duration(req.DurationMinutes) * time.Minute),
		CreatedAt: now,
	}
	if err := s.repo.CreateMute(ctx, mute); err != nil {
		return nil, err
	}
	s.mirrorMute(ctx, req.UserID, mute.MuteEnd)
	return mute, nil
}

// UnmuteUser ends all active mutes for a user
func (s *Service) UnmuteUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.EndMute(ctx, userID, time.Now()); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.Del(ctx, muteKeyPrefix+userID.String()).Err(); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to clear mute mirror")
		}
	}
	return nil
}

// ActiveMuteUntil returns when a user's current mute ends, or the zero
// time if they are not muted. The Redis mirror answers first; a miss
// falls through to Postgres and refreshes the mirror.
func (s *Service) ActiveMuteUntil(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, muteKeyPrefix+userID.String()).Result()
		if err == nil {
			until, perr := time.Parse(time.RFC3339Nano, val)
			if perr == nil && until.After(time.Now()) {
				return until, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("Mute mirror lookup failed")
		}
	}

	mute, err := s.repo.GetActiveMute(ctx, userID, time.Now())
	if err != nil {
		return time.Time{}, err
	}
	if mute == nil {
		return time.Time{}, nil
	}
	s.mirrorMute(ctx, userID, mute.MuteEnd)
	return mute.MuteEnd, nil
}

// ListMutes returns mutes for the moderation panel
func (s *Service) ListMutes(ctx context.Context, activeOnly bool, limit, offset int) ([]*Mute, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListMutes(ctx, activeOnly, limit, offset)
}

// CreateReport files a complaint
func (s *Service) CreateReport(ctx context.Context, reporterID uuid.UUID, req *CreateReportRequest) (*Report, error) {
	if reporterID == req.TargetID {
		return nil, ErrCannotReportSelf
	}
	target, err := s.userRepo.GetByID(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	report := &Report{
		ID:         uuid.New(),
		ReporterID: reporterID,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
		Details:    req.Details,
		Status:     ReportPending,
		CreatedAt:  time.Now(),
	}
	if req.MessageID != nil {
		report.MessageID = uuid.NullUUID{UUID: *req.MessageID, Valid: true}
	}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListReports returns the moderation queue
func (s *Service) ListReports(ctx context.Context, status ReportStatus, limit, offset int) ([]*Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListReports(ctx, status, limit, offset)
}

// ResolveReport closes a pending report
func (s *Service) ResolveReport(ctx context.Context, reportID, moderatorID uuid.UUID, status ReportStatus) error {
	report, err := s.repo.GetReportByID(ctx, reportID)
	if err != nil {
		return err
	}
	if report == nil {
		return ErrReportNotFound
	}
	if report.Status != ReportPending {
		return ErrReportResolved
	}
	return s.repo.ResolveReport(ctx, reportID, moderatorID, status)
}

// BlockUser hides another user's messages from the caller
func (s *Service) BlockUser(ctx context.Context, blockerID uuid.UUID, req *BlockUserRequest) error {
	if blockerID == req.UserID {
		return ErrCannotBlockSelf
	}
	target, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrUserNotFound
	}

	existing, err := s.repo.GetBlock(ctx, blockerID, req.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyBlocked
	}

	return s.repo.CreateBlock(ctx, &Block{
		BlockerID: blockerID,
		BlockedID: req.UserID,
		CreatedAt: time.Now(),
	})
}

// UnblockUser removes a block
func (s *Service) UnblockUser(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	return s.repo.DeleteBlock(ctx, blockerID, blockedID)
}

// ListBlocks returns the caller's blocks
func (s *Service) ListBlocks(ctx context.Context, blockerID uuid.UUID) ([]*Block, error) {
	return s.repo.ListBlocksByUser(ctx, blockerID)
}

// BlockedIDs returns the IDs of users blockerID has blocked
func (s *Service) BlockedIDs(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error) {
	blocks, err := s.repo.ListBlocksByUser(ctx, blockerID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.BlockedID)
	}
	return ids, nil
}

// CountActiveMutes returns how many mutes are currently in effect
func (s *Service) CountActiveMutes(ctx context.Context) (int, error) {
	return s.repo.CountActiveMutes(ctx, time.Now())
}

// CountPendingReports returns the size of the unresolved report queue
func (s *Service) CountPendingReports(ctx context.Context) (int, error) {
	return s.repo.CountPendingReports(ctx)
}

// ExpireMutes removes long-expired mute rows, called by the janitor
func (s *Service) ExpireMutes(ctx context.Context, olderThan time.Time) (int64, error) {
	return s.repo.DeleteExpiredMutes(ctx, olderThan)
}

func (s *Service) mirrorMute(ctx context.Context, userID uuid.UUID, until time.Time) {
	if s.redis == nil {
		return
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return
	}
	if err := s.redis.Set(ctx, muteKeyPrefix+userID.String(), until.Format(time.RFC3339Nano), ttl).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to mirror mute to Redis")
	}
}
