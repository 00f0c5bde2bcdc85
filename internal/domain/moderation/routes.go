package moderation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chactivo/chactivo-api/internal/middleware"
)

// Routes returns moderation router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	// Any authenticated user may report and manage their own blocks
	r.Post("/reports", h.CreateReport)
	r.Post("/blocks", h.BlockUser)
	r.Delete("/blocks/{userId}", h.UnblockUser)
	r.Get("/blocks", h.ListBlocks)

	// Moderator-only operations
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireModerator())

		r.Post("/mutes", h.MuteUser)
		r.Delete("/mutes/{userId}", h.UnmuteUser)
		r.Get("/mutes", h.ListMutes)
		r.Get("/reports", h.ListReports)
		r.Post("/reports/{id}/resolve", h.ResolveReport)
	})

	return r
}
