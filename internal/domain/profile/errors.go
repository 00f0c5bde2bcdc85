package profile

import "errors"

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidImage    = errors.New("invalid image file")
	ErrImageTooLarge   = errors.New("image file too large")
)
