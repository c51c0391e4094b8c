package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pixelmint/pixelmint-api/internal/middleware"
)

// Routes returns admin router, all endpoints admin-gated
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())

	r.Get("/users", h.ListUsers)
	r.Post("/users/{id}/credits", h.GrantCredits)
	r.Get("/transactions", h.ListTransactions)

	return r
}
