package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/chactivo/chactivo-api/internal/pkg/metrics"
)

// EventType for WebSocket messages
type EventType string

const (
	EventNewMessage    EventType = "new_message"
	EventDelivered     EventType = "delivered"
	EventRead          EventType = "read"
	EventTyping        EventType = "typing"
	EventOnline        EventType = "online"
	EventOffline       EventType = "offline"
	EventDeleteMessage EventType = "message_deleted"
	EventStatusNew     EventType = "status_new"
	EventMuted         EventType = "muted"
)

// Redis key prefixes
const (
	roomChannelPrefix = "chat:room:"
	presenceKey       = "chat:presence:online"
	presenceChannel   = "chat:presence"
	userEventsChannel = "ws:user_events"
	globalChannel     = "chat:global"
)

type userEventMessage struct {
	UserID           string          `json:"user_id"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// WSEvent represents a WebSocket event
type WSEvent struct {
	Type      EventType   `json:"type"`
	RoomID    uuid.UUID   `json:"room_id,omitempty"`
	SenderID  uuid.UUID   `json:"sender_id,omitempty"`
	MessageID uuid.UUID   `json:"message_id,omitempty"`
	Message   *Message    `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Connection represents a WebSocket connection
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte

	// Blocked holds user IDs this client has blocked; events from
	// those senders are not delivered. Loaded once at connect time.
	Blocked map[uuid.UUID]bool
}

// Hub fans WebSocket events out to connected clients. Redis Pub/Sub
// bridges instances: events published to a room channel reach every
// server, and each server forwards them to its own local sockets.
type Hub struct {
	// Local connections, this instance only
	connections map[uuid.UUID]map[*Connection]bool

	// Local room subscriptions: roomID -> set of userIDs on this instance
	localRooms map[uuid.UUID]map[uuid.UUID]bool

	redis  *redis.Client
	pubsub *redis.PubSub

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
	publishFn  func(ctx context.Context, channel string, payload []byte) error
}

// NewHub creates a hub. A nil Redis client degrades to single-instance
// local broadcast.
func NewHub(redisClient *redis.Client) *Hub {
	return NewHubWithInstanceID(redisClient, uuid.NewString())
}

// NewHubWithInstanceID creates a hub with an explicit instance identifier
func NewHubWithInstanceID(redisClient *redis.Client, instanceID string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		localRooms:  make(map[uuid.UUID]map[uuid.UUID]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  instanceID,
	}

	if redisClient != nil {
		h.pubsub = redisClient.PSubscribe(ctx, roomChannelPrefix+"*", presenceChannel, userEventsChannel, globalChannel)
		h.publishFn = func(ctx context.Context, channel string, payload []byte) error {
			return redisClient.Publish(ctx, channel, payload).Err()
		}
	}

	return h
}

// Run starts the hub (call in goroutine)
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.UserID] == nil {
				h.connections[conn.UserID] = make(map[*Connection]bool)
			}
			h.connections[conn.UserID][conn] = true
			h.mu.Unlock()
			metrics.WSConnections.Inc()

			h.publishPresence(conn.UserID, true)
			log.Debug().Str("user_id", conn.UserID.String()).Msg("User connected to WebSocket")

		case conn := <-h.unregister:
			wentOffline := false
			h.mu.Lock()
			if conns, ok := h.connections[conn.UserID]; ok {
				if _, exists := conns[conn]; exists {
					delete(conns, conn)
					close(conn.Send)
					metrics.WSConnections.Dec()
				}
				if len(conns) == 0 {
					delete(h.connections, conn.UserID)
					wentOffline = true
				}

				for roomID, users := range h.localRooms {
					delete(users, conn.UserID)
					if len(users) == 0 {
						delete(h.localRooms, roomID)
					}
				}
			}
			h.mu.Unlock()

			if wentOffline {
				h.publishPresence(conn.UserID, false)
			}
			log.Debug().Str("user_id", conn.UserID.String()).Msg("User disconnected from WebSocket")
		}
	}
}

func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			switch {
			case strings.HasPrefix(msg.Channel, roomChannelPrefix):
				roomID, err := uuid.Parse(msg.Channel[len(roomChannelPrefix):])
				if err != nil {
					continue
				}
				var event WSEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				h.broadcastLocal(roomID, &event)

			case msg.Channel == presenceChannel:
				log.Debug().Str("presence", msg.Payload).Msg("Presence update received")

			case msg.Channel == userEventsChannel:
				h.handleUserEventPayload(msg.Payload)

			case msg.Channel == globalChannel:
				h.sendAllLocal([]byte(msg.Payload))
			}
		}
	}
}

func (h *Hub) handleUserEventPayload(payload string) {
	var event userEventMessage
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return
	}
	if event.SenderInstanceID == h.instanceID {
		return
	}
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return
	}
	h.sendLocal(userID, []byte(event.Payload))
}

// broadcastLocal sends event to clients connected to THIS instance
func (h *Hub) broadcastLocal(roomID uuid.UUID, event *WSEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users, ok := h.localRooms[roomID]
	if !ok {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	for userID := range users {
		for conn := range h.connections[userID] {
			if event.SenderID != uuid.Nil && conn.Blocked[event.SenderID] {
				continue
			}
			select {
			case conn.Send <- data:
				metrics.WSEventsSent.Inc()
			default:
				// Buffer full, skip this message
				metrics.WSEventsDropped.Inc()
				log.Warn().Str("user_id", userID.String()).Msg("WebSocket send buffer full")
			}
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// SubscribeToRoom adds a user's local subscription to a room
func (h *Hub) SubscribeToRoom(roomID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.localRooms[roomID] == nil {
		h.localRooms[roomID] = make(map[uuid.UUID]bool)
	}
	h.localRooms[roomID][userID] = true
}

// UnsubscribeFromRoom removes a user's local subscription
func (h *Hub) UnsubscribeFromRoom(roomID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.localRooms[roomID] != nil {
		delete(h.localRooms[roomID], userID)
		if len(h.localRooms[roomID]) == 0 {
			delete(h.localRooms, roomID)
		}
	}
}

// BroadcastToRoom sends event to all users in a room across all instances
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, event *WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal WebSocket event")
		return
	}

	if h.redis == nil {
		h.broadcastLocal(roomID, event)
		return
	}

	channel := roomChannelPrefix + roomID.String()
	if err := h.redis.Publish(h.ctx, channel, data).Err(); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("Redis publish failed")
		// Fall back to local delivery so this instance's clients still see it
		h.broadcastLocal(roomID, event)
	}
}

// BroadcastGlobal sends an event to every connected client on every
// instance, regardless of room membership
func (h *Hub) BroadcastGlobal(event *WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal WebSocket event")
		return
	}

	if h.redis == nil {
		h.sendAllLocal(data)
		return
	}
	if err := h.redis.Publish(h.ctx, globalChannel, data).Err(); err != nil {
		log.Error().Err(err).Msg("Redis publish failed")
		h.sendAllLocal(data)
	}
}

func (h *Hub) sendAllLocal(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.connections {
		for conn := range conns {
			select {
			case conn.Send <- data:
				metrics.WSEventsSent.Inc()
			default:
				metrics.WSEventsDropped.Inc()
			}
		}
	}
}

// SendToUser sends an event to every connection of a user, on any instance
func (h *Hub) SendToUser(userID uuid.UUID, event *WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.sendLocal(userID, data)
	h.publishUserEvent(userID, data)
}

func (h *Hub) sendLocal(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	conns, ok := h.connections[userID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	for conn := range conns {
		select {
		case conn.Send <- data:
			metrics.WSEventsSent.Inc()
		default:
			metrics.WSEventsDropped.Inc()
		}
	}
}

func (h *Hub) publishUserEvent(userID uuid.UUID, data []byte) {
	if h.publishFn == nil {
		return
	}

	event := userEventMessage{
		UserID:           userID.String(),
		Payload:          data,
		SenderInstanceID: h.instanceID,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := h.publishFn(h.ctx, userEventsChannel, payload); err != nil {
		log.Warn().Err(err).Msg("Failed to publish user event")
	}
}

// publishPresence publishes user online/offline status to Redis
func (h *Hub) publishPresence(userID uuid.UUID, online bool) {
	if h.redis == nil {
		return
	}

	ctx := context.Background()

	if online {
		h.redis.SAdd(ctx, presenceKey, userID.String())
		// Expiry bounds staleness if an instance dies without cleanup
		h.redis.Expire(ctx, presenceKey, 5*time.Minute)
		h.redis.Publish(ctx, presenceChannel, fmt.Sprintf("%s:online", userID))
	} else {
		h.redis.SRem(ctx, presenceKey, userID.String())
		h.redis.Publish(ctx, presenceChannel, fmt.Sprintf("%s:offline", userID))
	}
}

// IsOnline checks if a user is online on any instance
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	if h.redis == nil {
		h.mu.RLock()
		conns, ok := h.connections[userID]
		h.mu.RUnlock()
		return ok && len(conns) > 0
	}

	return h.redis.SIsMember(context.Background(), presenceKey, userID.String()).Val()
}

// GetOnlineUsers filters the given list down to users currently online
func (h *Hub) GetOnlineUsers(userIDs []uuid.UUID) []uuid.UUID {
	if h.redis == nil {
		h.mu.RLock()
		defer h.mu.RUnlock()

		online := make([]uuid.UUID, 0)
		for _, id := range userIDs {
			if conns, ok := h.connections[id]; ok && len(conns) > 0 {
				online = append(online, id)
			}
		}
		return online
	}

	members := h.redis.SMembers(context.Background(), presenceKey).Val()
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	online := make([]uuid.UUID, 0)
	for _, id := range userIDs {
		if memberSet[id.String()] {
			online = append(online, id)
		}
	}
	return online
}

// GetConnectionCount returns the number of local connections
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.connections {
		total += len(conns)
	}
	return total
}

// IsUserSubscribedToRoom reports whether a user is subscribed locally
func (h *Hub) IsUserSubscribedToRoom(roomID, userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := h.localRooms[roomID]
	if users == nil {
		return false
	}
	return users[userID]
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}
