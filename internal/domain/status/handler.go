package status

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chactivo/chactivo-api/internal/middleware"
	"github.com/chactivo/chactivo-api/internal/pkg/response"
	"github.com/chactivo/chactivo-api/internal/pkg/validator"
)

// PostStatusRequest publishes a new status
type PostStatusRequest struct {
	Content string `json:"content" validate:"required,min=1,max=300"`
}

// Handler handles status HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates status handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Post handles POST /statuses
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	var req PostStatusRequest
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
	st, err := h.service.Post(r.Context(), userID, username, req.Content)
	if err != nil {
		switch err {
		case ErrEmptyStatus:
			response.BadRequest(w, "Status content is empty")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, st)
}

// List handles GET /statuses
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	statuses, err := h.service.ListActive(r.Context(), limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, statuses)
}

// Delete handles DELETE /statuses/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid status ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		switch err {
		case ErrStatusNotFound:
			response.NotFound(w, "Status not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.NoContent(w)
}

// Routes returns status router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	r.Get("/", h.List)
	r.Post("/", h.Post)
	r.Delete("/{id}", h.Delete)

	return r
}
