package moderation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines moderation data access interface
type Repository interface {
	// Mute operations
	CreateMute(ctx context.Context, mute *Mute) error
	GetActiveMute(ctx context.Context, userID uuid.UUID, at time.Time) (*Mute, error)
	EndMute(ctx context.Context, userID uuid.UUID, at time.Time) error
	ListMutes(ctx context.Context, activeOnly bool, limit, offset int) ([]*Mute, error)
	CountActiveMutes(ctx context.Context, at time.Time) (int, error)
	DeleteExpiredMutes(ctx context.Context, olderThan time.Time) (int64, error)

	// Report operations
	CreateReport(ctx context.Context, report *Report) error
	GetReportByID(ctx context.Context, id uuid.UUID) (*Report, error)
	ListReports(ctx context.Context, status ReportStatus, limit, offset int) ([]*Report, error)
	CountPendingReports(ctx context.Context) (int, error)
	ResolveReport(ctx context.Context, id, resolvedBy uuid.UUID, status ReportStatus) error

	// Block operations
	CreateBlock(ctx context.Context, block *Block) error
	DeleteBlock(ctx context.Context, blockerID, blockedID uuid.UUID) error
	GetBlock(ctx context.Context, blockerID, blockedID uuid.UUID) (*Block, error)
	ListBlocksByUser(ctx context.Context, blockerID uuid.UUID) ([]*Block, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new moderation repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Mute operations

func (r *repository) CreateMute(ctx context.Context, mute *Mute) error {
	query := `
		INSERT INTO moderation_mutes (id, user_id, muted_by, reason, message_count, mute_start, mute_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		mute.ID,
		mute.UserID,
		mute.MutedBy,
		mute.Reason,
		mute.MessageCount,
		mute.MuteStart,
		mute.MuteEnd,
		mute.CreatedAt,
	)
	return err
}

func (r *repository) GetActiveMute(ctx context.Context, userID uuid.UUID, at time.Time) (*Mute, error) {
	query := `
		SELECT * FROM moderation_mutes
		WHERE user_id = $1 AND mute_start <= $2 AND mute_end > $2
		ORDER BY mute_end DESC
		LIMIT 1
	`
	var mute Mute
	err := r.db.GetContext(ctx, &mute, query, userID, at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &mute, nil
}

func (r *repository) EndMute(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `UPDATE moderation_mutes SET mute_end = $2 WHERE user_id = $1 AND mute_end > $2`
	_, err := r.db.ExecContext(ctx, query, userID, at)
	return err
}

func (r *repository) ListMutes(ctx context.Context, activeOnly bool, limit, offset int) ([]*Mute, error) {
	query := `
		SELECT * FROM moderation_mutes
		WHERE ($1 = false OR mute_end > NOW())
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var mutes []*Mute
	err := r.db.SelectContext(ctx, &mutes, query, activeOnly, limit, offset)
	return mutes, err
}

func (r *repository) CountActiveMutes(ctx context.Context, at time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM moderation_mutes WHERE mute_end > $1`
	var count int
	err := r.db.GetContext(ctx, &count, query, at)
	return count, err
}

func (r *repository) DeleteExpiredMutes(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM moderation_mutes WHERE mute_end < $1`
	res, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Report operations

func (r *repository) CreateReport(ctx context.Context, report *Report) error {
	query := `
		INSERT INTO moderation_reports (id, reporter_id, target_id, message_id, reason, details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.ReporterID,
		report.TargetID,
		report.MessageID,
		report.Reason,
		report.Details,
		report.Status,
		report.CreatedAt,
	)
	return err
}

func (r *repository) GetReportByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	query := `SELECT * FROM moderation_reports WHERE id = $1`
	var report Report
	err := r.db.GetContext(ctx, &report, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

func (r *repository) ListReports(ctx context.Context, status ReportStatus, limit, offset int) ([]*Report, error) {
	query := `
		SELECT * FROM moderation_reports
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var reports []*Report
	err := r.db.SelectContext(ctx, &reports, query, status, limit, offset)
	return reports, err
}

func (r *repository) CountPendingReports(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM moderation_reports WHERE status = $1`
	var count int
	err := r.db.GetContext(ctx, &count, query, ReportPending)
	return count, err
}

func (r *repository) ResolveReport(ctx context.Context, id, resolvedBy uuid.UUID, status ReportStatus) error {
	query := `
		UPDATE moderation_reports
		SET status = $3, resolved_by = $2, resolved_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, resolvedBy, status)
	return err
}

// Block operations

func (r *repository) CreateBlock(ctx context.Context, block *Block) error {
	query := `
		INSERT INTO moderation_blocks (blocker_id, blocked_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, block.BlockerID, block.BlockedID, block.CreatedAt)
	return err
}

func (r *repository) DeleteBlock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	query := `DELETE FROM moderation_blocks WHERE blocker_id = $1 AND blocked_id = $2`
	_, err := r.db.ExecContext(ctx, query, blockerID, blockedID)
	return err
}

func (r *repository) GetBlock(ctx context.Context, blockerID, blockedID uuid.UUID) (*Block, error) {
	query := `SELECT * FROM moderation_blocks WHERE blocker_id = $1 AND blocked_id = $2`
	var block Block
	err := r.db.GetContext(ctx, &block, query, blockerID, blockedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &block, nil
}

func (r *repository) ListBlocksByUser(ctx context.Context, blockerID uuid.UUID) ([]*Block, error) {
	query := `SELECT * FROM moderation_blocks WHERE blocker_id = $1 ORDER BY created_at DESC`
	var blocks []*Block
	err := r.db.SelectContext(ctx, &blocks, query, blockerID)
	return blocks, err
}
