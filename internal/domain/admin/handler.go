package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chactivo/chactivo-api/internal/domain/user"
	"github.com/chactivo/chactivo-api/internal/middleware"
	"github.com/chactivo/chactivo-api/internal/pkg/response"
)

// Handler handles admin HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates admin handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetStats handles GET /admin/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, stats)
}

// SetBanned handles POST /admin/users/{id}/ban
func (h *Handler) SetBanned(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req struct {
		Banned bool `json:"banned"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if err := h.service.SetBanned(r.Context(), userID, req.Banned); err != nil {
		switch err {
		case ErrUserNotFound:
			response.NotFound(w, "User not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]bool{"banned": req.Banned})
}

// ListUsers handles GET /admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		limit := 25
		if l := r.URL.Query().Get("limit"); l != "" {
			if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
				limit = v
			}
		}
		users, err := h.service.SearchUsers(r.Context(), q, limit)
		if err != nil {
			response.InternalError(w)
			return
		}
		response.OK(w, users)
		return
	}

	role := user.Role(r.URL.Query().Get("role"))
	if role == "" {
		response.BadRequest(w, "Provide a q or role query parameter")
		return
	}
	users, err := h.service.ListUsersByRole(r.Context(), role)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, users)
}

// Routes returns admin router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())

	r.Get("/stats", h.GetStats)
	r.Get("/users", h.ListUsers)
	r.Post("/users/{id}/ban", h.SetBanned)

	return r
}
