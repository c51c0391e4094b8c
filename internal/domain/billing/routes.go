package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns billing router. The webhook is mounted separately at the
// top level because it must stay unauthenticated.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/packages", h.ListPackages)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/checkout", h.CreateCheckout)
	})

	return r
}
