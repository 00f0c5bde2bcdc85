package profile

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines profile data access interface
type Repository interface {
	Upsert(ctx context.Context, p *Profile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL, thumbURL string) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new profile repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (user_id, display_name, bio, gender, country, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			bio = EXCLUDED.bio,
			gender = EXCLUDED.gender,
			country = EXCLUDED.country,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		p.UserID,
		p.DisplayName,
		p.Bio,
		p.Gender,
		p.Country,
	)
	return err
}

func (r *repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	query := `SELECT * FROM profiles WHERE user_id = $1`
	var p Profile
	err := r.db.GetContext(ctx, &p, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL, thumbURL string) error {
	query := `
		UPDATE profiles
		SET avatar_url = $2, avatar_thumb_url = $3, updated_at = NOW()
		WHERE user_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID, avatarURL, thumbURL)
	return err
}

func (r *repository) Delete(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM profiles WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
