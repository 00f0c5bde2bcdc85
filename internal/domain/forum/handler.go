package forum

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chactivo/chactivo-api/internal/middleware"
	"github.com/chactivo/chactivo-api/internal/pkg/response"
	"github.com/chactivo/chactivo-api/internal/pkg/validator"
)

// Handler handles forum HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates forum handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateThread handles POST /forum/threads
func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	var req CreateThreadRequest
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
	thread, err := h.service.CreateThread(r.Context(), userID, username, &req)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, thread)
}

// ListThreads handles GET /forum/threads
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	threads, err := h.service.ListThreads(r.Context(), limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, threads)
}

// GetThread handles GET /forum/threads/{id}
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid thread ID")
		return
	}

	thread, err := h.service.GetThread(r.Context(), threadID)
	if err != nil {
		switch err {
		case ErrThreadNotFound:
			response.NotFound(w, "Thread not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, thread)
}

// CreatePost handles POST /forum/threads/{id}/posts
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid thread ID")
		return
	}

	var req CreatePostRequest
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
	post, err := h.service.CreatePost(r.Context(), threadID, userID, username, &req)
	if err != nil {
		switch err {
		case ErrThreadNotFound:
			response.NotFound(w, "Thread not found")
		case ErrThreadLocked:
			response.Forbidden(w, "Thread is locked")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, post)
}

// ListPosts handles GET /forum/threads/{id}/posts
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid thread ID")
		return
	}

	limit, offset := pagination(r)
	posts, err := h.service.ListPosts(r.Context(), threadID, limit, offset)
	if err != nil {
		switch err {
		case ErrThreadNotFound:
			response.NotFound(w, "Thread not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, posts)
}

// DeleteThread handles DELETE /forum/threads/{id}
func (h *Handler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid thread ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())
	isModerator := role == "moderator" || role == "admin"

	if err := h.service.DeleteThread(r.Context(), threadID, userID, isModerator); err != nil {
		switch err {
		case ErrThreadNotFound:
			response.NotFound(w, "Thread not found")
		case ErrNotAuthor:
			response.Forbidden(w, "You can only delete your own threads")
		default:
			response.InternalError(w)
		}
		return
	}

	response.NoContent(w)
}

// DeletePost handles DELETE /forum/posts/{id}
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid post ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())
	isModerator := role == "moderator" || role == "admin"

	if err := h.service.DeletePost(r.Context(), postID, userID, isModerator); err != nil {
		switch err {
		case ErrPostNotFound:
			response.NotFound(w, "Post not found")
		case ErrNotAuthor:
			response.Forbidden(w, "You can only delete your own posts")
		default:
			response.InternalError(w)
		}
		return
	}

	response.NoContent(w)
}

// PinThread handles POST /forum/threads/{id}/pin
func (h *Handler) PinThread(w http.ResponseWriter, r *http.Request) {
	h.moderateThread(w, r, h.service.PinThread)
}

// LockThread handles POST /forum/threads/{id}/lock
func (h *Handler) LockThread(w http.ResponseWriter, r *http.Request) {
	h.moderateThread(w, r, h.service.LockThread)
}

func (h *Handler) moderateThread(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, threadID uuid.UUID, on bool) error) {
	threadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid thread ID")
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if err := fn(r.Context(), threadID, req.Enabled); err != nil {
		switch err {
		case ErrThreadNotFound:
			response.NotFound(w, "Thread not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]string{"status": "ok"})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 25
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
