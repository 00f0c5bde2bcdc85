package chat

import "errors"

var (
	ErrRoomNotFound      = errors.New("chat room not found")
	ErrRoomAlreadyExists = errors.New("room slug already in use")
	ErrNotRoomMember     = errors.New("you are not a member of this room")
	ErrMessageNotFound   = errors.New("message not found")
	ErrNotMessageOwner   = errors.New("you can only delete your own messages")
	ErrEmptyMessage      = errors.New("message content is empty")
)
