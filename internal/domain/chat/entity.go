package chat

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus represents how far a message has progressed toward its
// receivers. Transitions are strictly monotonic: sent -> delivered -> read.
// Suspended is a terminal state for messages that never got a delivery
// receipt within the tracking timeout.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusSuspended DeliveryStatus = "suspended"
)

// rank orders delivery statuses for monotonic comparison
func (s DeliveryStatus) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	case StatusSuspended:
		return 3
	}
	return -1
}

// Room represents a public chat room
type Room struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	Slug        string         `db:"slug" json:"slug"`
	Name        string         `db:"name" json:"name"`
	Topic       sql.NullString `db:"topic" json:"topic,omitempty"`
	CreatedBy   uuid.UUID      `db:"created_by" json:"created_by"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	LastMessage sql.NullTime   `db:"last_message_at" json:"last_message_at,omitempty"`
}

// RoomMember represents room membership
type RoomMember struct {
	RoomID   uuid.UUID `db:"room_id" json:"room_id"`
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// Message represents a chat message
type Message struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	RoomID    uuid.UUID    `db:"room_id" json:"room_id"`
	SenderID  uuid.UUID    `db:"sender_id" json:"sender_id"`
	Username  string       `db:"username" json:"username"`
	Content   string       `db:"content" json:"content"`
	ClientID  string       `db:"client_id" json:"client_id"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	DeletedAt sql.NullTime `db:"deleted_at" json:"-"`

	// Populated from receipt rows, not columns on messages
	DeliveredTo []uuid.UUID `db:"-" json:"delivered_to"`
	ReadBy      []uuid.UUID `db:"-" json:"read_by"`
}

// Status derives the message delivery status from its receipts
func (m *Message) Status() DeliveryStatus {
	if len(m.ReadBy) > 0 {
		return StatusRead
	}
	if len(m.DeliveredTo) > 0 {
		return StatusDelivered
	}
	return StatusSent
}

// Receipt represents one receiver's delivery/read acknowledgement for a
// message. The composite (message_id, user_id) key plus upsert semantics
// make concurrent receivers idempotent and commutative.
type Receipt struct {
	MessageID   uuid.UUID    `db:"message_id" json:"message_id"`
	UserID      uuid.UUID    `db:"user_id" json:"user_id"`
	DeliveredAt time.Time    `db:"delivered_at" json:"delivered_at"`
	ReadAt      sql.NullTime `db:"read_at" json:"read_at,omitempty"`
}

// NewRoom creates a room with a fresh ID
func NewRoom(slug, name, topic string, createdBy uuid.UUID) *Room {
	room := &Room{
		ID:        uuid.New(),
		Slug:      slug,
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}
	if topic != "" {
		room.Topic = sql.NullString{String: topic, Valid: true}
	}
	return room
}

// NewRoomMember creates a membership record
func NewRoomMember(roomID, userID uuid.UUID) *RoomMember {
	return &RoomMember{
		RoomID:   roomID,
		UserID:   userID,
		JoinedAt: time.Now(),
	}
}

// NewMessage creates a message with a fresh ID
func NewMessage(roomID, senderID uuid.UUID, username, content, clientID string) *Message {
	return &Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		SenderID:  senderID,
		Username:  username,
		Content:   content,
		ClientID:  clientID,
		CreatedAt: time.Now(),
	}
}
