package upload

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns upload router (auth required)
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Create)

	return r
}
