package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/chactivo/chactivo-api/internal/middleware"
	"github.com/chactivo/chactivo-api/internal/pkg/response"
	"github.com/chactivo/chactivo-api/internal/pkg/validator"
)

// WebSocket constants
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512KB
)

// BlockLister reports which users a given user has blocked.
type BlockLister interface {
	BlockedIDs(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error)
}

// Handler handles chat HTTP and WebSocket requests
type Handler struct {
	service  *Service
	hub      *Hub
	blocks   BlockLister // nil disables block filtering
	upgrader websocket.Upgrader
}

// NewHandler creates chat handler
func NewHandler(service *Service, hub *Hub, blocks BlockLister, allowedOrigins []string) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		blocks:  blocks,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")

				// Allow all in development
				if len(allowedOrigins) == 0 {
					return true
				}

				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}

				log.Warn().Str("origin", origin).Msg("WebSocket origin rejected")
				return false
			},
		},
	}
}

// CreateRoom handles POST /chat/rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	userID := middleware.GetUserID(r.Context())
	room, err := h.service.CreateRoom(r.Context(), userID, &req)
	if err != nil {
		switch err {
		case ErrRoomAlreadyExists:
			response.Conflict(w, "A room with this slug already exists")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, room)
}

// ListRooms handles GET /chat/rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rooms, err := h.service.ListRooms(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, rooms)
}

// GetRoom handles GET /chat/rooms/{slug}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	room, err := h.service.GetRoom(r.Context(), chi.URLParam(r, "slug"), userID)
	if err != nil {
		switch err {
		case ErrRoomNotFound:
			response.NotFound(w, "Room not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, room)
}

// JoinRoom handles POST /chat/rooms/{id}/join
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.service.JoinRoom(r.Context(), roomID, userID); err != nil {
		switch err {
		case ErrRoomNotFound:
			response.NotFound(w, "Room not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]string{"status": "joined"})
}

// LeaveRoom handles POST /chat/rooms/{id}/leave
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.service.LeaveRoom(r.Context(), roomID, userID); err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]string{"status": "left"})
}

// GetMessages handles GET /chat/rooms/{id}/messages
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	limit := defaultMessagePageSize
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	var before time.Time
	if b := r.URL.Query().Get("before"); b != "" {
		if v, err := time.Parse(time.RFC3339Nano, b); err == nil {
			before = v
		}
	}

	userID := middleware.GetUserID(r.Context())
	messages, err := h.service.ListMessages(r.Context(), roomID, userID, before, limit)
	if err != nil {
		switch err {
		case ErrNotRoomMember:
			response.Forbidden(w, "You are not a member of this room")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, messages)
}

// SendMessage handles POST /chat/rooms/{id}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	userID := middleware.GetUserID(r.Context())
	username := middleware.GetUsername(r.Context())

	msg, rejection, err := h.service.SendMessage(r.Context(), roomID, userID, username, &req)
	if err != nil {
		switch err {
		case ErrEmptyMessage:
			response.BadRequest(w, "Message content is empty")
		case ErrNotRoomMember:
			response.Forbidden(w, "You are not a member of this room")
		default:
			response.InternalError(w)
		}
		return
	}
	if rejection != nil {
		response.ErrorWithDetails(w, http.StatusTooManyRequests, rejection.Reason, "Message rejected", map[string]string{
			"retry_after_ms": strconv.FormatInt(rejection.RetryAfterMs, 10),
		})
		return
	}

	response.Created(w, msg)
}

// MarkDelivered handles POST /chat/rooms/{id}/delivered
func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.handleAck(w, r, h.service.MarkDelivered)
}

// MarkRead handles POST /chat/rooms/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.handleAck(w, r, h.service.MarkRead)
}

func (h *Handler) handleAck(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, roomID, userID uuid.UUID, messageIDs []uuid.UUID) error) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	var req AckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := fn(r.Context(), roomID, userID, req.MessageIDs); err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]string{"status": "ok"})
}

// DeleteMessage handles DELETE /chat/messages/{id}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid message ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())
	isModerator := role == "moderator" || role == "admin"

	if err := h.service.DeleteMessage(r.Context(), messageID, userID, isModerator); err != nil {
		switch err {
		case ErrMessageNotFound:
			response.NotFound(w, "Message not found")
		case ErrNotMessageOwner:
			response.Forbidden(w, "You can only delete your own messages")
		default:
			response.InternalError(w)
		}
		return
	}

	response.NoContent(w)
}

// WebSocket handles WS /ws
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Connection{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	if h.blocks != nil {
		ids, err := h.blocks.BlockedIDs(r.Context(), userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to load block list")
		} else if len(ids) > 0 {
			client.Blocked = make(map[uuid.UUID]bool, len(ids))
			for _, id := range ids {
				client.Blocked[id] = true
			}
		}
	}

	h.hub.Register(client)

	// Subscribe the socket to every room the user is a member of
	rooms, _ := h.service.ListRooms(r.Context(), userID)
	for _, room := range rooms {
		h.hub.SubscribeToRoom(room.ID, userID)
	}

	go h.wsReader(client)
	go h.wsWriter(client)
}

func (h *Handler) wsReader(client *Connection) {
	defer func() {
		h.hub.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", client.UserID.String()).Msg("WebSocket read error")
			}
			break
		}

		var event struct {
			Type       string      `json:"type"`
			RoomID     uuid.UUID   `json:"room_id"`
			Username   string      `json:"username"`
			MessageIDs []uuid.UUID `json:"message_ids"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}

		// Sends go through the HTTP endpoint; the socket only carries
		// lightweight signals
		switch event.Type {
		case "typing":
			_ = h.service.Typing(context.Background(), event.RoomID, client.UserID, event.Username)
		case "delivered":
			_ = h.service.MarkDelivered(context.Background(), event.RoomID, client.UserID, event.MessageIDs)
		case "read":
			_ = h.service.MarkRead(context.Background(), event.RoomID, client.UserID, event.MessageIDs)
		}
	}
}

func (h *Handler) wsWriter(client *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
