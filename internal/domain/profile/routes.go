package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns profile router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	r.Get("/me", h.GetMyProfile)
	r.Put("/me", h.UpdateProfile)
	r.Post("/me/avatar", h.UploadAvatar)
	r.Get("/{userId}", h.GetProfile)

	return r
}
