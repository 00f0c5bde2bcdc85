package moderation

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrCannotMuteSelf   = errors.New("cannot mute yourself")
	ErrCannotBlockSelf  = errors.New("cannot block yourself")
	ErrCannotReportSelf = errors.New("cannot report yourself")
	ErrAlreadyBlocked   = errors.New("user already blocked")
	ErrReportNotFound   = errors.New("report not found")
	ErrReportResolved   = errors.New("report already resolved")
)
