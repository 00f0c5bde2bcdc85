package moderation

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

// Handler handles moderation HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates moderation handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MuteUser handles POST /moderation/mutes
func (h *Handler) MuteUser(w http.ResponseWriter, r *http.Request) {
	var req MuteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	moderatorID := middleware.GetUserID(r.Context())
	mute, err := h.service.MuteUser(r.Context(), moderatorID, &req)
	if err != nil {
		switch err {
		case ErrCannotMuteSelf:
			response.BadRequest(w, "Cannot mute yourself")
		case ErrUserNotFound:
			response.NotFound(w, "User not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, mute)
}

// UnmuteUser handles DELETE /moderation/mutes/{userId}
func (h *Handler) UnmuteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	if err := h.service.UnmuteUser(r.Context(), userID); err != nil {
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// ListMutes handles GET /moderation/mutes
func (h *Handler) ListMutes(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	limit, offset := pagination(r)

	mutes, err := h.service.ListMutes(r.Context(), activeOnly, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, mutes)
}

// CreateReport handles POST /moderation/reports
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	reporterID := middleware.GetUserID(r.Context())
	report, err := h.service.CreateReport(r.Context(), reporterID, &req)
	if err != nil {
		switch err {
		case ErrCannotReportSelf:
			response.BadRequest(w, "Cannot report yourself")
		case ErrUserNotFound:
			response.NotFound(w, "User not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, report)
}

// ListReports handles GET /moderation/reports
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	status := ReportStatus(r.URL.Query().Get("status"))
	limit, offset := pagination(r)

	reports, err := h.service.ListReports(r.Context(), status, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, reports)
}

// ResolveReport handles POST /moderation/reports/{id}/resolve
func (h *Handler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid report ID")
		return
	}

	var req ResolveReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	moderatorID := middleware.GetUserID(r.Context())
	if err := h.service.ResolveReport(r.Context(), reportID, moderatorID, req.Status); err != nil {
		switch err {
		case ErrReportNotFound:
			response.NotFound(w, "Report not found")
		case ErrReportResolved:
			response.Conflict(w, "Report already resolved")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]string{"status": "ok"})
}

// BlockUser handles POST /moderation/blocks
func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	var req BlockUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	blockerID := middleware.GetUserID(r.Context())
	if err := h.service.BlockUser(r.Context(), blockerID, &req); err != nil {
		switch err {
		case ErrCannotBlockSelf:
			response.BadRequest(w, "Cannot block yourself")
		case ErrUserNotFound:
			response.NotFound(w, "User not found")
		case ErrAlreadyBlocked:
			response.Conflict(w, "User already blocked")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, map[string]string{"status": "blocked"})
}

// UnblockUser handles DELETE /moderation/blocks/{userId}
func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	blockedID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	blockerID := middleware.GetUserID(r.Context())
	if err := h.service.UnblockUser(r.Context(), blockerID, blockedID); err != nil {
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// ListBlocks handles GET /moderation/blocks
func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	blockerID := middleware.GetUserID(r.Context())
	blocks, err := h.service.ListBlocks(r.Context(), blockerID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, blocks)
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
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
