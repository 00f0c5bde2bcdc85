package forum

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines forum data access interface
type Repository interface {
	CreateThread(ctx context.Context, t *Thread) error
	GetThreadByID(ctx context.Context, id uuid.UUID) (*Thread, error)
	ListThreads(ctx context.Context, limit, offset int) ([]*Thread, error)
	SetThreadPinned(ctx context.Context, id uuid.UUID, pinned bool) error
	SetThreadLocked(ctx context.Context, id uuid.UUID, locked bool) error
	SoftDeleteThread(ctx context.Context, id uuid.UUID) error

	CreatePost(ctx context.Context, p *Post) error
	GetPostByID(ctx context.Context, id uuid.UUID) (*Post, error)
	ListPostsByThread(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]*Post, error)
	SoftDeletePost(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new forum repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateThread(ctx context.Context, t *Thread) error {
	query := `
		INSERT INTO forum_threads (id, author_id, username, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.AuthorID, t.Username, t.Title, t.Body, t.CreatedAt)
	return err
}

func (r *repository) GetThreadByID(ctx context.Context, id uuid.UUID) (*Thread, error) {
	query := `
		SELECT t.*,
			(SELECT COUNT(*) FROM forum_posts p WHERE p.thread_id = t.id AND p.deleted_at IS NULL) AS post_count
		FROM forum_threads t
		WHERE t.id = $1 AND t.deleted_at IS NULL
	`
	var t Thread
	err := r.db.GetContext(ctx, &t, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *repository) ListThreads(ctx context.Context, limit, offset int) ([]*Thread, error) {
	query := `
		SELECT t.*,
			(SELECT COUNT(*) FROM forum_posts p WHERE p.thread_id = t.id AND p.deleted_at IS NULL) AS post_count
		FROM forum_threads t
		WHERE t.deleted_at IS NULL
		ORDER BY t.pinned DESC, t.last_post_at DESC NULLS LAST, t.created_at DESC
		LIMIT $1 OFFSET $2
	`
	var threads []*Thread
	err := r.db.SelectContext(ctx, &threads, query, limit, offset)
	return threads, err
}

func (r *repository) SetThreadPinned(ctx context.Context, id uuid.UUID, pinned bool) error {
	query := `UPDATE forum_threads SET pinned = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, pinned)
	return err
}

func (r *repository) SetThreadLocked(ctx context.Context, id uuid.UUID, locked bool) error {
	query := `UPDATE forum_threads SET locked = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, locked)
	return err
}

func (r *repository) SoftDeleteThread(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE forum_threads SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *repository) CreatePost(ctx context.Context, p *Post) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO forum_posts (id, thread_id, author_id, username, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, insert, p.ID, p.ThreadID, p.AuthorID, p.Username, p.Body, p.CreatedAt); err != nil {
		return err
	}

	bump := `UPDATE forum_threads SET last_post_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, p.ThreadID, p.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) GetPostByID(ctx context.Context, id uuid.UUID) (*Post, error) {
	query := `SELECT * FROM forum_posts WHERE id = $1 AND deleted_at IS NULL`
	var p Post
	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListPostsByThread(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]*Post, error) {
	query := `
		SELECT * FROM forum_posts
		WHERE thread_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	var posts []*Post
	err := r.db.SelectContext(ctx, &posts, query, threadID, limit, offset)
	return posts, err
}

func (r *repository) SoftDeletePost(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE forum_posts SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
