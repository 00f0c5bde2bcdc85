package chat

import (
	"time"

	"github.com/google/uuid"
)

// CreateRoomRequest creates a public room
type CreateRoomRequest struct {
	Slug  string `json:"slug" validate:"required,slug,max=50"`
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Topic string `json:"topic" validate:"max=200"`
}

// SendMessageRequest posts a message to a room. ClientID is the sender's
// local identifier, echoed back so the client can match the acknowledged
// message to its optimistic copy.
type SendMessageRequest struct {
	Content  string `json:"content" validate:"required,min=1,max=2000"`
	ClientID string `json:"client_id" validate:"max=64"`
}

// AckRequest acknowledges delivery or read of a batch of messages
type AckRequest struct {
	MessageIDs []uuid.UUID `json:"message_ids" validate:"required,min=1,max=200"`
}

// RoomResponse is a room with the caller's unread count
type RoomResponse struct {
	ID            uuid.UUID  `json:"id"`
	Slug          string     `json:"slug"`
	Name          string     `json:"name"`
	Topic         string     `json:"topic,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	OnlineCount   int        `json:"online_count"`
}

// MessageResponse is a message with its derived delivery status
type MessageResponse struct {
	ID          uuid.UUID      `json:"id"`
	RoomID      uuid.UUID      `json:"room_id"`
	SenderID    uuid.UUID      `json:"sender_id"`
	Username    string         `json:"username"`
	Content     string         `json:"content"`
	ClientID    string         `json:"client_id,omitempty"`
	Status      DeliveryStatus `json:"status"`
	DeliveredTo []uuid.UUID    `json:"delivered_to,omitempty"`
	ReadBy      []uuid.UUID    `json:"read_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// RejectionResponse explains a refused send
type RejectionResponse struct {
	Reason       string `json:"reason"`
	RetryAfterMs int64  `json:"retry_after_ms"`
}

func toRoomResponse(room *Room, unread, online int) *RoomResponse {
	resp := &RoomResponse{
		ID:          room.ID,
		Slug:        room.Slug,
		Name:        room.Name,
		CreatedAt:   room.CreatedAt,
		UnreadCount: unread,
		OnlineCount: online,
	}
	if room.Topic.Valid {
		resp.Topic = room.Topic.String
	}
	if room.LastMessage.Valid {
		resp.LastMessageAt = &room.LastMessage.Time
	}
	return resp
}

func toMessageResponse(msg *Message) *MessageResponse {
	return &MessageResponse{
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		SenderID:    msg.SenderID,
		Username:    msg.Username,
		Content:     msg.Content,
		ClientID:    msg.ClientID,
		Status:      msg.Status(),
		DeliveredTo: msg.DeliveredTo,
		ReadBy:      msg.ReadBy,
		CreatedAt:   msg.CreatedAt,
	}
}
