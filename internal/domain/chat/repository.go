package chat

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines chat data access interface
type Repository interface {
	// Room operations
	CreateRoom(ctx context.Context, room *Room) error
	GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error)
	GetRoomBySlug(ctx context.Context, slug string) (*Room, error)
	ListRooms(ctx context.Context) ([]*Room, error)
	UpdateRoomLastMessage(ctx context.Context, roomID uuid.UUID, at time.Time) error
	DeleteRoom(ctx context.Context, id uuid.UUID) error

	// Member operations
	AddMember(ctx context.Context, member *RoomMember) error
	RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error
	GetMembers(ctx context.Context, roomID uuid.UUID) ([]*RoomMember, error)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)

	// Message operations
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessageByID(ctx context.Context, id uuid.UUID) (*Message, error)
	ListMessagesByRoom(ctx context.Context, roomID uuid.UUID, before time.Time, limit int) ([]*Message, error)
	SoftDeleteMessage(ctx context.Context, id uuid.UUID) error
	PurgeDeletedMessages(ctx context.Context, olderThan time.Time) (int64, error)
	CountMessagesSince(ctx context.Context, since time.Time) (int, error)

	// Receipt operations
	MarkDelivered(ctx context.Context, messageIDs []uuid.UUID, userID uuid.UUID) error
	MarkRead(ctx context.Context, messageIDs []uuid.UUID, userID uuid.UUID) error
	GetReceipts(ctx context.Context, messageID uuid.UUID) ([]*Receipt, error)
	CountUnreadByRoom(ctx context.Context, roomID, userID uuid.UUID) (int, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new chat repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Room operations

func (r *repository) CreateRoom(ctx context.Context, room *Room) error {
	query := `
		INSERT INTO chat_rooms (id, slug, name, topic, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		room.ID,
		room.Slug,
		room.Name,
		room.Topic,
		room.CreatedBy,
		room.CreatedAt,
	)
	return err
}

func (r *repository) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	query := `SELECT * FROM chat_rooms WHERE id = $1`
	var room Room
	err := r.db.GetContext(ctx, &room, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *repository) GetRoomBySlug(ctx context.Context, slug string) (*Room, error) {
	query := `SELECT * FROM chat_rooms WHERE slug = $1`
	var room Room
	err := r.db.GetContext(ctx, &room, query, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *repository) ListRooms(ctx context.Context) ([]*Room, error) {
	query := `
		SELECT * FROM chat_rooms
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC
	`
	var rooms []*Room
	err := r.db.SelectContext(ctx, &rooms, query)
	return rooms, err
}

func (r *repository) UpdateRoomLastMessage(ctx context.Context, roomID uuid.UUID, at time.Time) error {
	query := `UPDATE chat_rooms SET last_message_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, roomID, at)
	return err
}

func (r *repository) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM chat_rooms WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// Member operations

func (r *repository) AddMember(ctx context.Context, member *RoomMember) error {
	query := `
		INSERT INTO chat_room_members (room_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, member.RoomID, member.UserID, member.JoinedAt)
	return err
}

func (r *repository) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error {
	query := `DELETE FROM chat_room_members WHERE room_id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, roomID, userID)
	return err
}

func (r *repository) GetMembers(ctx context.Context, roomID uuid.UUID) ([]*RoomMember, error) {
	query := `SELECT * FROM chat_room_members WHERE room_id = $1 ORDER BY joined_at`
	var members []*RoomMember
	err := r.db.SelectContext(ctx, &members, query, roomID)
	return members, err
}

func (r *repository) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM chat_room_members WHERE room_id = $1 AND user_id = $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, roomID, userID)
	return exists, err
}

// Message operations

func (r *repository) CreateMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO chat_messages (id, room_id, sender_id, username, content, client_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.RoomID,
		msg.SenderID,
		msg.Username,
		msg.Content,
		msg.ClientID,
		msg.CreatedAt,
	)
	return err
}

func (r *repository) GetMessageByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	query := `SELECT * FROM chat_messages WHERE id = $1 AND deleted_at IS NULL`
	var msg Message
	err := r.db.GetContext(ctx, &msg, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *repository) ListMessagesByRoom(ctx context.Context, roomID uuid.UUID, before time.Time, limit int) ([]*Message, error) {
	query := `
		SELECT * FROM chat_messages
		WHERE room_id = $1 AND created_at < $2 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $3
	`
	var messages []*Message
	err := r.db.SelectContext(ctx, &messages, query, roomID, before, limit)
	return messages, err
}

func (r *repository) SoftDeleteMessage(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE chat_messages SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *repository) CountMessagesSince(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM chat_messages WHERE created_at >= $1 AND deleted_at IS NULL`
	var count int
	err := r.db.GetContext(ctx, &count, query, since)
	return count, err
}

func (r *repository) PurgeDeletedMessages(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM chat_messages WHERE deleted_at IS NOT NULL AND deleted_at < $1`
	res, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Receipt operations

func (r *repository) MarkDelivered(ctx context.Context, messageIDs []uuid.UUID, userID uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	// ON CONFLICT DO NOTHING keeps the operation idempotent: replayed or
	// duplicate acknowledgements never clobber an earlier timestamp
	query := `
		INSERT INTO chat_receipts (message_id, user_id, delivered_at)
		SELECT unnest($1::uuid[]), $2, NOW()
		ON CONFLICT (message_id, user_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, idArray(messageIDs), userID)
	return err
}

func (r *repository) MarkRead(ctx context.Context, messageIDs []uuid.UUID, userID uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	// A read implies delivery; the upsert fills both timestamps but never
	// overwrites an existing read_at
	query := `
		INSERT INTO chat_receipts (message_id, user_id, delivered_at, read_at)
		SELECT unnest($1::uuid[]), $2, NOW(), NOW()
		ON CONFLICT (message_id, user_id)
		DO UPDATE SET read_at = NOW() WHERE chat_receipts.read_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, idArray(messageIDs), userID)
	return err
}

func (r *repository) GetReceipts(ctx context.Context, messageID uuid.UUID) ([]*Receipt, error) {
	query := `SELECT * FROM chat_receipts WHERE message_id = $1`
	var receipts []*Receipt
	err := r.db.SelectContext(ctx, &receipts, query, messageID)
	return receipts, err
}

func (r *repository) CountUnreadByRoom(ctx context.Context, roomID, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM chat_messages m
		WHERE m.room_id = $1
		AND m.sender_id != $2
		AND m.deleted_at IS NULL
		AND NOT EXISTS (
			SELECT 1 FROM chat_receipts r
			WHERE r.message_id = m.id AND r.user_id = $2 AND r.read_at IS NOT NULL
		)
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, roomID, userID)
	return count, err
}

// idArray renders UUIDs as a Postgres array literal for unnest
func idArray(ids []uuid.UUID) string {
	out := "{"
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id.String()
	}
	return out + "}"
}
