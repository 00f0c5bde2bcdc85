package forum

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Thread is a forum discussion topic
type Thread struct {
	ID         uuid.UUID    `db:"id" json:"id"`
	AuthorID   uuid.UUID    `db:"author_id" json:"author_id"`
	Username   string       `db:"username" json:"username"`
	Title      string       `db:"title" json:"title"`
	Body       string       `db:"body" json:"body"`
	Pinned     bool         `db:"pinned" json:"pinned"`
	Locked     bool         `db:"locked" json:"locked"`
	PostCount  int          `db:"post_count" json:"post_count"`
	LastPostAt sql.NullTime `db:"last_post_at" json:"last_post_at,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	DeletedAt  sql.NullTime `db:"deleted_at" json:"-"`
}

// Post is a reply inside a thread
type Post struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	ThreadID  uuid.UUID    `db:"thread_id" json:"thread_id"`
	AuthorID  uuid.UUID    `db:"author_id" json:"author_id"`
	Username  string       `db:"username" json:"username"`
	Body      string       `db:"body" json:"body"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	DeletedAt sql.NullTime `db:"deleted_at" json:"-"`
}
