package profile

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chactivo/chactivo-api/internal/middleware"
	"github.com/chactivo/chactivo-api/internal/pkg/imaging"
	"github.com/chactivo/chactivo-api/internal/pkg/response"
	"github.com/chactivo/chactivo-api/internal/pkg/validator"
)

// Handler handles profile HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates profile handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetMyProfile handles GET /profiles/me
func (h *Handler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.writeProfile(w, r, userID)
}

// GetProfile handles GET /profiles/{userId}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}
	h.writeProfile(w, r, userID)
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	p, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		switch err {
		case ErrProfileNotFound:
			response.NotFound(w, "Profile not found")
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, p)
}

// UpdateProfile handles PUT /profiles/me
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	userID := middleware.GetUserID(r.Context())
	p, err := h.service.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, p)
}

// UploadAvatar handles POST /profiles/me/avatar
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(imaging.MaxFileSize); err != nil {
		response.BadRequest(w, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		response.BadRequest(w, "Missing avatar file")
		return
	}
	defer file.Close()

	userID := middleware.GetUserID(r.Context())
	result, err := h.service.UploadAvatar(r.Context(), userID, header.Filename, file, header.Size)
	if err != nil {
		switch err {
		case ErrInvalidImage:
			response.BadRequest(w, "File is not a supported image")
		case ErrImageTooLarge:
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Image exceeds the size limit")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, result)
}
