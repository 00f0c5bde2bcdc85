package forum

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service handles forum business logic
type Service struct {
	repo Repository
}

// NewService creates forum service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateThread opens a new discussion
func (s *Service) CreateThread(ctx context.Context, authorID uuid.UUID, username string, req *CreateThreadRequest) (*Thread, error) {
	t := &Thread{
		ID:        uuid.New(),
		AuthorID:  authorID,
		Username:  username,
		Title:     req.Title,
		Body:      req.Body,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateThread(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetThread returns a thread with its post count
func (s *Service) GetThread(ctx context.Context, id uuid.UUID) (*Thread, error) {
	t, err := s.repo.GetThreadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrThreadNotFound
	}
	return t, nil
}

// ListThreads returns the thread index, pinned first
func (s *Service) ListThreads(ctx context.Context, limit, offset int) ([]*Thread, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.repo.ListThreads(ctx, limit, offset)
}

// CreatePost replies to a thread. Locked threads refuse new posts.
func (s *Service) CreatePost(ctx context.Context, threadID, authorID uuid.UUID, username string, req *CreatePostRequest) (*Post, error) {
	t, err := s.repo.GetThreadByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrThreadNotFound
	}
	if t.Locked {
		return nil, ErrThreadLocked
	}

	p := &Post{
		ID:        uuid.New(),
		ThreadID:  threadID,
		AuthorID:  authorID,
		Username:  username,
		Body:      req.Body,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreatePost(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPosts returns a thread's replies in posting order
func (s *Service) ListPosts(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]*Post, error) {
	t, err := s.repo.GetThreadByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrThreadNotFound
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListPostsByThread(ctx, threadID, limit, offset)
}

// DeleteThread soft-deletes a thread. Authors may delete their own,
// moderators anyone's.
func (s *Service) DeleteThread(ctx context.Context, threadID, userID uuid.UUID, isModerator bool) error {
	t, err := s.repo.GetThreadByID(ctx, threadID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrThreadNotFound
	}
	if t.AuthorID != userID && !isModerator {
		return ErrNotAuthor
	}
	return s.repo.SoftDeleteThread(ctx, threadID)
}

// DeletePost soft-deletes a post with the same ownership rules
func (s *Service) DeletePost(ctx context.Context, postID, userID uuid.UUID, isModerator bool) error {
	p, err := s.repo.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrPostNotFound
	}
	if p.AuthorID != userID && !isModerator {
		return ErrNotAuthor
	}
	return s.repo.SoftDeletePost(ctx, postID)
}

// PinThread marks a thread as pinned (moderator action)
func (s *Service) PinThread(ctx context.Context, threadID uuid.UUID, pinned bool) error {
	t, err := s.repo.GetThreadByID(ctx, threadID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrThreadNotFound
	}
	return s.repo.SetThreadPinned(ctx, threadID, pinned)
}

// LockThread closes a thread to new replies (moderator action)
func (s *Service) LockThread(ctx context.Context, threadID uuid.UUID, locked bool) error {
	t, err := s.repo.GetThreadByID(ctx, threadID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrThreadNotFound
	}
	return s.repo.SetThreadLocked(ctx, threadID, locked)
}
