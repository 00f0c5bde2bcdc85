package forum

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chactivo/chactivo-api/internal/middleware"
)

// Routes returns forum router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	r.Get("/threads", h.ListThreads)
	r.Post("/threads", h.CreateThread)
	r.Get("/threads/{id}", h.GetThread)
	r.Delete("/threads/{id}", h.DeleteThread)
	r.Get("/threads/{id}/posts", h.ListPosts)
	r.Post("/threads/{id}/posts", h.CreatePost)
	r.Delete("/posts/{id}", h.DeletePost)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireModerator())

		r.Post("/threads/{id}/pin", h.PinThread)
		r.Post("/threads/{id}/lock", h.LockThread)
	})

	return r
}
