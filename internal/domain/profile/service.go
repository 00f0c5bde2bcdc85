package profile

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chactivo/chactivo-api/internal/pkg/imaging"
	"github.com/chactivo/chactivo-api/internal/pkg/storage"
)

// Service handles profile business logic
type Service struct {
	repo      Repository
	storage   storage.Storage
	processor *imaging.Processor
}

// NewService creates profile service
func NewService(repo Repository, st storage.Storage) *Service {
	return &Service{
		repo:      repo,
		storage:   st,
		processor: imaging.NewProcessor(imaging.DefaultConfig()),
	}
}

// GetProfile returns a user's profile
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// UpdateProfile creates or updates the caller's profile
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*Profile, error) {
	p := &Profile{
		UserID:      userID,
		DisplayName: req.DisplayName,
		UpdatedAt:   time.Now(),
	}
	if req.Bio != "" {
		p.Bio = sql.NullString{String: req.Bio, Valid: true}
	}
	if req.Gender != "" {
		p.Gender = sql.NullString{String: req.Gender, Valid: true}
	}
	if req.Country != "" {
		p.Country = sql.NullString{String: req.Country, Valid: true}
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return s.repo.GetByUserID(ctx, userID)
}

// UploadAvatar processes and stores an avatar image, replacing any
// previous one at the same keys
func (s *Service) UploadAvatar(ctx context.Context, userID uuid.UUID, filename string, file io.Reader, size int64) (*AvatarResponse, error) {
	if !imaging.ValidateType(filename) {
		return nil, ErrInvalidImage
	}
	if size > imaging.MaxFileSize {
		return nil, ErrImageTooLarge
	}

	processed, err := s.processor.Process(io.LimitReader(file, imaging.MaxFileSize))
	if err != nil {
		return nil, ErrInvalidImage
	}

	originalKey, thumbKey := imaging.AvatarPaths(userID.String(), filename)

	if err := s.storage.Put(ctx, originalKey, bytes.NewReader(processed.Original), processed.ContentType); err != nil {
		return nil, err
	}
	if err := s.storage.Put(ctx, thumbKey, bytes.NewReader(processed.Thumbnail), processed.ContentType); err != nil {
		// Keep the original usable even if the thumbnail write failed
		log.Warn().Err(err).Str("key", thumbKey).Msg("Failed to store avatar thumbnail")
		thumbKey = originalKey
	}

	avatarURL := s.storage.GetURL(originalKey)
	thumbURL := s.storage.GetURL(thumbKey)
	if err := s.repo.UpdateAvatar(ctx, userID, avatarURL, thumbURL); err != nil {
		return nil, err
	}

	return &AvatarResponse{AvatarURL: avatarURL, ThumbURL: thumbURL}, nil
}

// DeleteAvatar removes the stored avatar files and clears the URLs
func (s *Service) DeleteAvatar(ctx context.Context, userID uuid.UUID, filename string) error {
	originalKey, thumbKey := imaging.AvatarPaths(userID.String(), filename)
	if err := s.storage.Delete(ctx, originalKey); err != nil {
		log.Warn().Err(err).Str("key", originalKey).Msg("Failed to delete avatar")
	}
	if err := s.storage.Delete(ctx, thumbKey); err != nil {
		log.Warn().Err(err).Str("key", thumbKey).Msg("Failed to delete avatar thumbnail")
	}
	return s.repo.UpdateAvatar(ctx, userID, "", "")
}
