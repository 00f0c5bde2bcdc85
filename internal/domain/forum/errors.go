package forum

import "errors"

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrThreadLocked   = errors.New("thread is locked")
	ErrPostNotFound   = errors.New("post not found")
	ErrNotAuthor      = errors.New("not the author")
)
