package preset

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pixelmint/pixelmint-api/internal/middleware"
)

// PresetRoutes returns preset router: public reads, admin-gated writes
func (h *Handler) PresetRoutes(authMiddleware, optionalAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/", h.ListPresets)
		r.Get("/{id}", h.GetPreset)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin())
		r.Post("/", h.CreatePreset)
		r.Put("/{id}", h.UpdatePreset)
		r.Delete("/{id}", h.DeletePreset)
	})

	return r
}

// PipelineRoutes returns pipeline router: public reads, admin-gated writes
func (h *Handler) PipelineRoutes(authMiddleware, optionalAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/", h.ListPipelines)
		r.Get("/{id}", h.GetPipeline)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin())
		r.Post("/", h.CreatePipeline)
		r.Put("/{id}", h.UpdatePipeline)
		r.Delete("/{id}", h.DeletePipeline)
	})

	return r
}
