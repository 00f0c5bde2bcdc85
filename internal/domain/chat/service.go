package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chactivo/chactivo-api/internal/pkg/metrics"
)

// MuteChecker reports an active moderation mute for a user. A zero time
// means no active mute.
type MuteChecker interface {
	ActiveMuteUntil(ctx context.Context, userID uuid.UUID) (time.Time, error)
}

const defaultMessagePageSize = 50

// Service orchestrates the chat domain: rooms, the send path with its
// rate gate, acknowledgements, and fan-out.
type Service struct {
	repo    Repository
	hub     *Hub
	limiter *RateLimiter
	tracker *Tracker
	perf    *PerfMonitor
	mutes   MuteChecker // nil disables the moderation gate
}

// NewService creates the chat service and wires the delivery tracker's
// hooks into the performance monitor.
func NewService(repo Repository, hub *Hub, limiter *RateLimiter, deliveryTimeout time.Duration, mutes MuteChecker) *Service {
	s := &Service{
		repo:    repo,
		hub:     hub,
		limiter: limiter,
		perf:    NewPerfMonitor(),
		mutes:   mutes,
	}
	s.tracker = NewTracker(deliveryTimeout, TrackerHooks{
		OnStatusChange: func(messageID uuid.UUID, status DeliveryStatus, elapsed time.Duration) {
			switch status {
			case StatusDelivered:
				s.perf.RecordDelivery(elapsed)
			case StatusRead:
				s.perf.RecordRead(elapsed)
			}
		},
		OnSuspended: func(messageID uuid.UUID) {
			s.perf.RecordSuspension()
			log.Warn().Str("message_id", messageID.String()).Msg("Message suspended, no delivery acknowledgement")
		},
	})
	return s
}

// Perf exposes the latency monitor for the admin stats endpoint
func (s *Service) Perf() *PerfMonitor {
	return s.perf
}

// Close stops the limiter and tracker
func (s *Service) Close() {
	s.limiter.Close()
	s.tracker.Close()
}

// CreateRoom creates a public room with a unique slug
func (s *Service) CreateRoom(ctx context.Context, creatorID uuid.UUID, req *CreateRoomRequest) (*RoomResponse, error) {
	existing, err := s.repo.GetRoomBySlug(ctx, req.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrRoomAlreadyExists
	}

	room := NewRoom(req.Slug, req.Name, req.Topic, creatorID)
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	return toRoomResponse(room, 0, 0), nil
}

// ListRooms returns all public rooms with the caller's unread counts
func (s *Service) ListRooms(ctx context.Context, userID uuid.UUID) ([]*RoomResponse, error) {
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		unread, err := s.repo.CountUnreadByRoom(ctx, room.ID, userID)
		if err != nil {
			return nil, err
		}
		members, err := s.repo.GetMembers(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, len(members))
		for i, m := range members {
			ids[i] = m.UserID
		}
		out = append(out, toRoomResponse(room, unread, len(s.hub.GetOnlineUsers(ids))))
	}
	return out, nil
}

// GetRoom returns a single room by slug
func (s *Service) GetRoom(ctx context.Context, slug string, userID uuid.UUID) (*RoomResponse, error) {
	room, err := s.repo.GetRoomBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	unread, err := s.repo.CountUnreadByRoom(ctx, room.ID, userID)
	if err != nil {
		return nil, err
	}
	return toRoomResponse(room, unread, 0), nil
}

// JoinRoom adds the user as a member and subscribes their sockets
func (s *Service) JoinRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	room, err := s.repo.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room == nil {
		return ErrRoomNotFound
	}

	if err := s.repo.AddMember(ctx, NewRoomMember(roomID, userID)); err != nil {
		return err
	}
	s.hub.SubscribeToRoom(roomID, userID)
	s.hub.BroadcastToRoom(roomID, &WSEvent{Type: EventOnline, RoomID: roomID, SenderID: userID})
	return nil
}

// LeaveRoom removes the user's membership and subscription
func (s *Service) LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	if err := s.repo.RemoveMember(ctx, roomID, userID); err != nil {
		return err
	}
	s.hub.UnsubscribeFromRoom(roomID, userID)
	s.hub.BroadcastToRoom(roomID, &WSEvent{Type: EventOffline, RoomID: roomID, SenderID: userID})
	return nil
}

// SendMessage runs the full send path: membership, the moderation mute
// gate, the rate limiter, persistence, tracking, and fan-out. A refused
// send returns a rejection, not an error.
func (s *Service) SendMessage(ctx context.Context, roomID, userID uuid.UUID, username string, req *SendMessageRequest) (*MessageResponse, *RejectionResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, nil, ErrEmptyMessage
	}

	member, err := s.repo.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !member {
		return nil, nil, ErrNotRoomMember
	}

	// A moderation mute outranks the limiter's own state. Lookup failures
	// fail open so Redis trouble never silences the room.
	if s.mutes != nil {
		until, err := s.mutes.ActiveMuteUntil(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Mute lookup failed, allowing send")
		} else if !until.IsZero() {
			s.limiter.CacheMute(userID, until)
		}
	}

	if d := s.limiter.Check(ctx, userID, content); !d.Allowed {
		metrics.MessagesRejected.WithLabelValues(d.Reason).Inc()
		return nil, &RejectionResponse{Reason: d.Reason, RetryAfterMs: d.RetryAfter.Milliseconds()}, nil
	}

	msg := NewMessage(roomID, userID, username, content, req.ClientID)
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, nil, err
	}
	s.limiter.Record(userID, content)
	s.tracker.RegisterOutgoing(msg.ID)
	metrics.MessagesSent.Inc()

	if err := s.repo.UpdateRoomLastMessage(ctx, roomID, msg.CreatedAt); err != nil {
		log.Warn().Err(err).Str("room_id", roomID.String()).Msg("Failed to bump room last message")
	}

	s.hub.BroadcastToRoom(roomID, &WSEvent{
		Type:      EventNewMessage,
		RoomID:    roomID,
		SenderID:  userID,
		MessageID: msg.ID,
		Message:   msg,
	})
	return toMessageResponse(msg), nil, nil
}

// ListMessages returns a page of room history, newest first. The caller's
// own messages carry their acknowledgement sets.
func (s *Service) ListMessages(ctx context.Context, roomID, userID uuid.UUID, before time.Time, limit int) ([]*MessageResponse, error) {
	member, err := s.repo.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotRoomMember
	}

	if limit <= 0 || limit > 200 {
		limit = defaultMessagePageSize
	}
	if before.IsZero() {
		before = time.Now()
	}

	messages, err := s.repo.ListMessagesByRoom(ctx, roomID, before, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*MessageResponse, 0, len(messages))
	for _, msg := range messages {
		if msg.SenderID == userID {
			if err := s.attachReceipts(ctx, msg); err != nil {
				return nil, err
			}
		}
		out = append(out, toMessageResponse(msg))
	}
	return out, nil
}

// MarkDelivered records delivery acknowledgements from a user and pushes
// the updated status to the room
func (s *Service) MarkDelivered(ctx context.Context, roomID, userID uuid.UUID, messageIDs []uuid.UUID) error {
	if err := s.repo.MarkDelivered(ctx, messageIDs, userID); err != nil {
		return err
	}
	s.fanOutReceipts(ctx, roomID, userID, messageIDs, EventDelivered)
	return nil
}

// MarkRead records read acknowledgements and pushes the updated status
func (s *Service) MarkRead(ctx context.Context, roomID, userID uuid.UUID, messageIDs []uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, messageIDs, userID); err != nil {
		return err
	}
	s.fanOutReceipts(ctx, roomID, userID, messageIDs, EventRead)
	return nil
}

// DeleteMessage soft-deletes a message. Owners may delete their own,
// moderators anyone's.
func (s *Service) DeleteMessage(ctx context.Context, messageID, userID uuid.UUID, isModerator bool) error {
	msg, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderID != userID && !isModerator {
		return ErrNotMessageOwner
	}

	if err := s.repo.SoftDeleteMessage(ctx, messageID); err != nil {
		return err
	}
	s.hub.BroadcastToRoom(msg.RoomID, &WSEvent{
		Type:      EventDeleteMessage,
		RoomID:    msg.RoomID,
		MessageID: messageID,
	})
	return nil
}

// Typing broadcasts a typing indicator to the room
func (s *Service) Typing(ctx context.Context, roomID, userID uuid.UUID, username string) error {
	member, err := s.repo.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotRoomMember
	}
	s.hub.BroadcastToRoom(roomID, &WSEvent{
		Type:     EventTyping,
		RoomID:   roomID,
		SenderID: userID,
		Data:     map[string]string{"username": username},
	})
	return nil
}

func (s *Service) fanOutReceipts(ctx context.Context, roomID, ackUserID uuid.UUID, messageIDs []uuid.UUID, event EventType) {
	for _, id := range messageIDs {
		receipts, err := s.repo.GetReceipts(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("message_id", id.String()).Msg("Failed to load receipts")
			continue
		}

		upd := ReceiptUpdate{MessageID: id}
		for _, rec := range receipts {
			upd.DeliveredTo = append(upd.DeliveredTo, rec.UserID)
			if rec.ReadAt.Valid {
				upd.ReadBy = append(upd.ReadBy, rec.UserID)
			}
		}
		s.tracker.ProcessUpdate(upd)

		s.hub.BroadcastToRoom(roomID, &WSEvent{
			Type:      event,
			RoomID:    roomID,
			SenderID:  ackUserID,
			MessageID: id,
			Data: map[string]interface{}{
				"delivered_to": upd.DeliveredTo,
				"read_by":      upd.ReadBy,
			},
		})
	}
}

func (s *Service) attachReceipts(ctx context.Context, msg *Message) error {
	receipts, err := s.repo.GetReceipts(ctx, msg.ID)
	if err != nil {
		return err
	}
	for _, rec := range receipts {
		msg.DeliveredTo = append(msg.DeliveredTo, rec.UserID)
		if rec.ReadAt.Valid {
			msg.ReadBy = append(msg.ReadBy, rec.UserID)
		}
	}
	return nil
}
