package profile

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Profile is a user's public chat identity
type Profile struct {
	UserID         uuid.UUID      `db:"user_id" json:"user_id"`
	DisplayName    string         `db:"display_name" json:"display_name"`
	Bio            sql.NullString `db:"bio" json:"bio,omitempty"`
	Gender         sql.NullString `db:"gender" json:"gender,omitempty"`
	Country        sql.NullString `db:"country" json:"country,omitempty"`
	AvatarURL      sql.NullString `db:"avatar_url" json:"avatar_url,omitempty"`
	AvatarThumbURL sql.NullString `db:"avatar_thumb_url" json:"avatar_thumb_url,omitempty"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
