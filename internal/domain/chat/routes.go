package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chactivo/chactivo-api/internal/middleware"
)

// Routes returns chat router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	// All routes require authentication
	r.Use(authMiddleware)

	// Room operations
	r.Get("/rooms", h.ListRooms)
	r.Get("/rooms/{slug}", h.GetRoom)
	r.With(middleware.RequireModerator()).Post("/rooms", h.CreateRoom)
	r.Post("/rooms/{id}/join", h.JoinRoom)
	r.Post("/rooms/{id}/leave", h.LeaveRoom)

	// Messages
	r.Get("/rooms/{id}/messages", h.GetMessages)
	r.Post("/rooms/{id}/messages", h.SendMessage)
	r.Post("/rooms/{id}/delivered", h.MarkDelivered)
	r.Post("/rooms/{id}/read", h.MarkRead)
	r.Delete("/messages/{id}", h.DeleteMessage)

	return r
}
