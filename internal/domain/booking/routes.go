package booking

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns booking router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
	r.Put("/{id}/cancel", h.Cancel)

	return r
}
