package preset

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/pixelmint/pixelmint-api/internal/middleware"
	"github.com/pixelmint/pixelmint-api/internal/pkg/response"
	"github.com/pixelmint/pixelmint-api/internal/pkg/validator"
)

// Handler handles preset and pipeline HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates preset handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListPresets handles GET /presets. Admins see drafts, everyone else
// only public entries.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	publicOnly := middleware.GetRole(r.Context()) != "admin"

	presets, err := h.service.ListPresets(r.Context(), publicOnly)
	if err != nil {
		log.Error().Err(err).Msg("failed to list presets")
		response.InternalError(w)
		return
	}

	response.OK(w, presets)
}

// GetPreset handles GET /presets/{id}
func (h *Handler) GetPreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.service.GetPreset(r.Context(), id)
	if err != nil {
		h.writeError(w, err, id)
		return
	}
	if !p.IsPublic && middleware.GetRole(r.Context()) != "admin" {
		response.NotFound(w, "Preset not found")
		return
	}

	response.OK(w, p)
}

// CreatePreset handles POST /presets (admin)
func (h *Handler) CreatePreset(w http.ResponseWriter, r *http.Request) {
	var req CreatePresetRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	p, err := h.service.CreatePreset(r.Context(), &req)
	if err != nil {
		h.writeError(w, err, req.ID)
		return
	}

	response.Created(w, p)
}

// UpdatePreset handles PUT /presets/{id} (admin)
func (h *Handler) UpdatePreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdatePresetRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	p, err := h.service.UpdatePreset(r.Context(), id, &req)
	if err != nil {
		h.writeError(w, err, id)
		return
	}

	response.OK(w, p)
}

// DeletePreset handles DELETE /presets/{id} (admin)
func (h *Handler) DeletePreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeletePreset(r.Context(), id); err != nil {
		h.writeError(w, err, id)
		return
	}

	response.NoContent(w)
}

// ListPipelines handles GET /pipelines
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	publicOnly := middleware.GetRole(r.Context()) != "admin"

	pipelines, err := h.service.ListPipelines(r.Context(), publicOnly)
	if err != nil {
		log.Error().Err(err).Msg("failed to list pipelines")
		response.InternalError(w)
		return
	}

	response.OK(w, pipelines)
}

// GetPipeline handles GET /pipelines/{id}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	pl, err := h.service.GetPipeline(r.Context(), id)
	if err != nil {
		h.writeError(w, err, id)
		return
	}
	if !pl.IsPublic && middleware.GetRole(r.Context()) != "admin" {
		response.NotFound(w, "Pipeline not found")
		return
	}

	response.OK(w, pl)
}

// CreatePipeline handles POST /pipelines (admin)
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req CreatePipelineRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	pl, err := h.service.CreatePipeline(r.Context(), &req)
	if err != nil {
		h.writeError(w, err, req.ID)
		return
	}

	response.Created(w, pl)
}

// UpdatePipeline handles PUT /pipelines/{id} (admin)
func (h *Handler) UpdatePipeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdatePipelineRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	pl, err := h.service.UpdatePipeline(r.Context(), id, &req)
	if err != nil {
		h.writeError(w, err, id)
		return
	}

	response.OK(w, pl)
}

// DeletePipeline handles DELETE /pipelines/{id} (admin)
func (h *Handler) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeletePipeline(r.Context(), id); err != nil {
		h.writeError(w, err, id)
		return
	}

	response.NoContent(w)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, ErrPresetNotFound):
		response.NotFound(w, "Preset not found")
	case errors.Is(err, ErrPipelineNotFound):
		response.NotFound(w, "Pipeline not found")
	case errors.Is(err, ErrDuplicateID):
		response.Conflict(w, "ID already exists")
	case errors.Is(err, ErrPresetInUse):
		response.Conflict(w, "Preset is referenced by a pipeline")
	default:
		log.Error().Err(err).Str("id", id).Msg("catalog operation failed")
		response.InternalError(w)
	}
}
