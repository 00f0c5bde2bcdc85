package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]*Room
	members  map[uuid.UUID]map[uuid.UUID]bool
	messages map[uuid.UUID]*Message
	receipts map[uuid.UUID]map[uuid.UUID]*Receipt
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rooms:    map[uuid.UUID]*Room{},
		members:  map[uuid.UUID]map[uuid.UUID]bool{},
		messages: map[uuid.UUID]*Message{},
		receipts: map[uuid.UUID]map[uuid.UUID]*Receipt{},
	}
}

func (f *fakeRepo) CreateRoom(_ context.Context, room *Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room.ID] = room
	return nil
}

func (f *fakeRepo) GetRoomByID(_ context.Context, id uuid.UUID) (*Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[id], nil
}

func (f *fakeRepo) GetRoomBySlug(_ context.Context, slug string) (*Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, room := range f.rooms {
		if room.Slug == slug {
			return room, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListRooms(_ context.Context) ([]*Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Room, 0, len(f.rooms))
	for _, room := range f.rooms {
		out = append(out, room)
	}
	return out, nil
}

func (f *fakeRepo) UpdateRoomLastMessage(_ context.Context, roomID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[roomID]; ok {
		room.LastMessage.Time = at
		room.LastMessage.Valid = true
	}
	return nil
}

func (f *fakeRepo) DeleteRoom(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	return nil
}

func (f *fakeRepo) AddMember(_ context.Context, m *RoomMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[m.RoomID] == nil {
		f.members[m.RoomID] = map[uuid.UUID]bool{}
	}
	f.members[m.RoomID][m.UserID] = true
	return nil
}

func (f *fakeRepo) RemoveMember(_ context.Context, roomID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[roomID], userID)
	return nil
}

func (f *fakeRepo) GetMembers(_ context.Context, roomID uuid.UUID) ([]*RoomMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*RoomMember, 0)
	for id := range f.members[roomID] {
		out = append(out, &RoomMember{RoomID: roomID, UserID: id})
	}
	return out, nil
}

func (f *fakeRepo) IsMember(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[roomID][userID], nil
}

func (f *fakeRepo) CreateMessage(_ context.Context, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.ID] = msg
	return nil
}

func (f *fakeRepo) GetMessageByID(_ context.Context, id uuid.UUID) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok || msg.DeletedAt.Valid {
		return nil, nil
	}
	return msg, nil
}

func (f *fakeRepo) ListMessagesByRoom(_ context.Context, roomID uuid.UUID, before time.Time, limit int) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Message, 0)
	for _, msg := range f.messages {
		if msg.RoomID == roomID && !msg.DeletedAt.Valid && msg.CreatedAt.Before(before) {
			out = append(out, msg)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) SoftDeleteMessage(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := f.messages[id]; ok {
		msg.DeletedAt.Time = time.Now()
		msg.DeletedAt.Valid = true
	}
	return nil
}

func (f *fakeRepo) CountMessagesSince(_ context.Context, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, msg := range f.messages {
		if !msg.CreatedAt.Before(since) && !msg.DeletedAt.Valid {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) PurgeDeletedMessages(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, msg := range f.messages {
		if msg.DeletedAt.Valid && msg.DeletedAt.Time.Before(olderThan) {
			delete(f.messages, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) MarkDelivered(_ context.Context, messageIDs []uuid.UUID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range messageIDs {
		if f.receipts[id] == nil {
			f.receipts[id] = map[uuid.UUID]*Receipt{}
		}
		if _, ok := f.receipts[id][userID]; !ok {
			f.receipts[id][userID] = &Receipt{MessageID: id, UserID: userID, DeliveredAt: time.Now()}
		}
	}
	return nil
}

func (f *fakeRepo) MarkRead(_ context.Context, messageIDs []uuid.UUID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range messageIDs {
		if f.receipts[id] == nil {
			f.receipts[id] = map[uuid.UUID]*Receipt{}
		}
		rec, ok := f.receipts[id][userID]
		if !ok {
			rec = &Receipt{MessageID: id, UserID: userID, DeliveredAt: time.Now()}
			f.receipts[id][userID] = rec
		}
		if !rec.ReadAt.Valid {
			rec.ReadAt.Time = time.Now()
			rec.ReadAt.Valid = true
		}
	}
	return nil
}

func (f *fakeRepo) GetReceipts(_ context.Context, messageID uuid.UUID) ([]*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Receipt, 0)
	for _, rec := range f.receipts[messageID] {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRepo) CountUnreadByRoom(_ context.Context, roomID, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, msg := range f.messages {
		if msg.RoomID != roomID || msg.SenderID == userID || msg.DeletedAt.Valid {
			continue
		}
		if rec, ok := f.receipts[id][userID]; !ok || !rec.ReadAt.Valid {
			count++
		}
	}
	return count, nil
}

type fakeMuteChecker struct {
	mu    sync.Mutex
	until map[uuid.UUID]time.Time
}

func (f *fakeMuteChecker) ActiveMuteUntil(_ context.Context, userID uuid.UUID) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.until[userID], nil
}

func newTestService(repo Repository, mutes MuteChecker) *Service {
	cfg := DefaultRateLimitConfig()
	cfg.MinInterval = 0
	limiter := NewRateLimiter(cfg, nil)
	return NewService(repo, NewHub(nil), limiter, 30*time.Second, mutes)
}

func seedRoom(t *testing.T, repo *fakeRepo, members ...uuid.UUID) *Room {
	t.Helper()
	room := NewRoom("general", "General", "", uuid.New())
	if err := repo.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	for _, id := range members {
		if err := repo.AddMember(context.Background(), NewRoomMember(room.ID, id)); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	return room
}

func TestSendMessagePersistsAndTracks(t *testing.T) {
	repo := newFakeRepo()
	sender := uuid.New()
	room := seedRoom(t, repo, sender)
	svc := newTestService(repo, nil)
	defer svc.Close()

	msg, rejection, err := svc.SendMessage(context.Background(), room.ID, sender, "alice", &SendMessageRequest{
		Content:  "hola a todos",
		ClientID: "c-1",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if rejection != nil {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}
	if msg.Status != StatusSent {
		t.Fatalf("status = %v, want sent", msg.Status)
	}
	if msg.ClientID != "c-1" {
		t.Fatalf("client id = %q, want c-1", msg.ClientID)
	}

	if stored, _ := repo.GetMessageByID(context.Background(), msg.ID); stored == nil {
		t.Fatal("message was not persisted")
	}
	if status, ok := svc.tracker.Status(msg.ID); !ok || status != StatusSent {
		t.Fatalf("tracker status = %v %v, want sent", status, ok)
	}
	if !room.LastMessage.Valid {
		t.Fatal("room last message was not bumped")
	}
}

func TestSendMessageRequiresMembership(t *testing.T) {
	repo := newFakeRepo()
	room := seedRoom(t, repo)
	svc := newTestService(repo, nil)
	defer svc.Close()

	_, _, err := svc.SendMessage(context.Background(), room.ID, uuid.New(), "bob", &SendMessageRequest{Content: "hi"})
	if err != ErrNotRoomMember {
		t.Fatalf("err = %v, want ErrNotRoomMember", err)
	}
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	repo := newFakeRepo()
	sender := uuid.New()
	room := seedRoom(t, repo, sender)
	svc := newTestService(repo, nil)
	defer svc.Close()

	_, _, err := svc.SendMessage(context.Background(), room.ID, sender, "bob", &SendMessageRequest{Content: "   "})
	if err != ErrEmptyMessage {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestSendMessageHonorsModerationMute(t *testing.T) {
	repo := newFakeRepo()
	sender := uuid.New()
	room := seedRoom(t, repo, sender)
	mutes := &fakeMuteChecker{until: map[uuid.UUID]time.Time{
		sender: time.Now().Add(time.Hour),
	}}
	svc := newTestService(repo, mutes)
	defer svc.Close()

	_, rejection, err := svc.SendMessage(context.Background(), room.ID, sender, "bob", &SendMessageRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if rejection == nil || rejection.Reason != ReasonMuted {
		t.Fatalf("rejection = %+v, want muted", rejection)
	}
	if rejection.RetryAfterMs <= 0 {
		t.Fatalf("retry after = %d, want positive", rejection.RetryAfterMs)
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	repo := newFakeRepo()
	sender := uuid.New()
	room := seedRoom(t, repo, sender)

	cfg := DefaultRateLimitConfig()
	limiter := NewRateLimiter(cfg, nil)
	svc := NewService(repo, NewHub(nil), limiter, 30*time.Second, nil)
	defer svc.Close()

	if _, rejection, err := svc.SendMessage(context.Background(), room.ID, sender, "bob", &SendMessageRequest{Content: "one"}); err != nil || rejection != nil {
		t.Fatalf("first send: err=%v rejection=%+v", err, rejection)
	}

	// Immediate second send trips the minimum interval
	_, rejection, err := svc.SendMessage(context.Background(), room.ID, sender, "bob", &SendMessageRequest{Content: "two"})
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if rejection == nil || rejection.Reason != ReasonTooFast {
		t.Fatalf("rejection = %+v, want too_fast", rejection)
	}
}

func TestAcknowledgementsAdvanceStatus(t *testing.T) {
	repo := newFakeRepo()
	sender := uuid.New()
	receiver := uuid.New()
	room := seedRoom(t, repo, sender, receiver)
	svc := newTestService(repo, nil)
	defer svc.Close()

	msg, _, err := svc.SendMessage(context.Background(), room.ID, sender, "alice", &SendMessageRequest{Content: "hola"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := svc.MarkDelivered(context.Background(), room.ID, receiver, []uuid.UUID{msg.ID}); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if status, _ := svc.tracker.Status(msg.ID); status != StatusDelivered {
		t.Fatalf("tracker status = %v, want delivered", status)
	}

	if err := svc.MarkRead(context.Background(), room.ID, receiver, []uuid.UUID{msg.ID}); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if _, ok := svc.tracker.Status(msg.ID); ok {
		t.Fatal("read message should leave the tracker")
	}

	delivery, read, _ := svc.Perf().Snapshot()
	if delivery.Count != 1 || read.Count != 1 {
		t.Fatalf("perf counts = %d/%d, want 1/1", delivery.Count, read.Count)
	}

	// Unread for the receiver drops to zero
	unread, err := repo.CountUnreadByRoom(context.Background(), room.ID, receiver)
	if err != nil {
		t.Fatalf("CountUnreadByRoom: %v", err)
	}
	if unread != 0 {
		t.Fatalf("unread = %d, want 0", unread)
	}
}

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	sender := uuid.New()
	receiver := uuid.New()
	room := seedRoom(t, repo, sender, receiver)
	svc := newTestService(repo, nil)
	defer svc.Close()

	msg, _, err := svc.SendMessage(context.Background(), room.ID, sender, "alice", &SendMessageRequest{Content: "hola"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.MarkDelivered(context.Background(), room.ID, receiver, []uuid.UUID{msg.ID}); err != nil {
			t.Fatalf("MarkDelivered %d: %v", i, err)
		}
	}

	receipts, err := repo.GetReceipts(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetReceipts: %v", err)
	}
	if len(receipts) != 1 {
		t.Fatalf("receipts = %d, want 1", len(receipts))
	}
}

func TestDeleteMessagePermissions(t *testing.T) {
	repo := newFakeRepo()
	sender := uuid.New()
	other := uuid.New()
	room := seedRoom(t, repo, sender, other)
	svc := newTestService(repo, nil)
	defer svc.Close()

	msg, _, err := svc.SendMessage(context.Background(), room.ID, sender, "alice", &SendMessageRequest{Content: "oops"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := svc.DeleteMessage(context.Background(), msg.ID, other, false); err != ErrNotMessageOwner {
		t.Fatalf("err = %v, want ErrNotMessageOwner", err)
	}

	// A moderator may delete anyone's message
	if err := svc.DeleteMessage(context.Background(), msg.ID, other, true); err != nil {
		t.Fatalf("moderator delete: %v", err)
	}
	if stored, _ := repo.GetMessageByID(context.Background(), msg.ID); stored != nil {
		t.Fatal("message should be soft-deleted")
	}

	if err := svc.DeleteMessage(context.Background(), msg.ID, sender, false); err != ErrMessageNotFound {
		t.Fatalf("err = %v, want ErrMessageNotFound", err)
	}
}

func TestCreateRoomRejectsDuplicateSlug(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	defer svc.Close()
	admin := uuid.New()

	if _, err := svc.CreateRoom(context.Background(), admin, &CreateRoomRequest{Slug: "general", Name: "General"}); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := svc.CreateRoom(context.Background(), admin, &CreateRoomRequest{Slug: "general", Name: "Other"}); err != ErrRoomAlreadyExists {
		t.Fatalf("err = %v, want ErrRoomAlreadyExists", err)
	}
}
