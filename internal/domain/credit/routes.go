package credit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns credit router (all routes require auth)
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.GetBalance)
	r.Get("/transactions", h.ListTransactions)

	return r
}
