package status

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines status data access interface
type Repository interface {
	Create(ctx context.Context, s *Status) error
	ListActive(ctx context.Context, at time.Time, limit int) ([]*Status, error)
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
	DeleteExpired(ctx context.Context, at time.Time) (int64, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new status repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, s *Status) error {
	query := `
		INSERT INTO statuses (id, user_id, username, content, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.Username, s.Content, s.CreatedAt, s.ExpiresAt)
	return err
}

func (r *repository) ListActive(ctx context.Context, at time.Time, limit int) ([]*Status, error) {
	query := `
		SELECT * FROM statuses
		WHERE expires_at > $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	var statuses []*Status
	err := r.db.SelectContext(ctx, &statuses, query, at, limit)
	return statuses, err
}

func (r *repository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `DELETE FROM statuses WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *repository) DeleteExpired(ctx context.Context, at time.Time) (int64, error) {
	query := `DELETE FROM statuses WHERE expires_at <= $1`
	res, err := r.db.ExecContext(ctx, query, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
