package generation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pixelmint/pixelmint-api/internal/domain/credit"
	"github.com/pixelmint/pixelmint-api/internal/domain/preset"
	"github.com/pixelmint/pixelmint-api/internal/middleware"
	"github.com/pixelmint/pixelmint-api/internal/pkg/falai"
	"github.com/pixelmint/pixelmint-api/internal/pkg/response"
	"github.com/pixelmint/pixelmint-api/internal/pkg/validator"
)

// Handler handles generation HTTP requests
type Handler struct {
	service  *Service
	thumbURL URLResolver
}

// NewHandler creates generation handler. thumbURL maps stored thumbnail
// keys to public URLs and may be nil.
func NewHandler(service *Service, thumbURL URLResolver) *Handler {
	return &Handler{service: service, thumbURL: thumbURL}
}

// Generate handles POST /generations. The call is synchronous: it
// returns once the model has produced an image or the job has failed and
// been compensated.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req GenerateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	result, err := h.service.Generate(r.Context(), userID, req.ToolID, req.ImageURL)
	if err != nil {
		h.writeGenerateError(w, err, userID, req.ToolID)
		return
	}

	response.OK(w, result)
}

func (h *Handler) writeGenerateError(w http.ResponseWriter, err error, userID uuid.UUID, toolID string) {
	var apiErr *falai.APIError
	if ice, ok := credit.IsInsufficientCredits(err); ok {
		response.PaymentRequired(w, "Insufficient credits", map[string]string{
			"required":  strconv.FormatInt(ice.Required, 10),
			"available": strconv.FormatInt(ice.Available, 10),
		})
		return
	}

	switch {
	case errors.Is(err, preset.ErrToolNotFound), errors.Is(err, preset.ErrEmptyPipeline):
		response.NotFound(w, "Tool not found")
	case errors.Is(err, ErrNoImageGenerated):
		response.BadGateway(w, ErrNoImageGenerated.Error())
	case errors.Is(err, ErrUpstreamFailure), errors.As(err, &apiErr), errors.Is(err, falai.ErrGenerationFailed):
		response.BadGateway(w, "Generation service failed")
	case errors.Is(err, ErrImageProbeFailed):
		response.BadRequest(w, "Could not read source image")
	default:
		log.Error().Err(err).
			Str("user_id", userID.String()).
			Str("tool_id", toolID).
			Msg("generation failed")
		response.InternalError(w)
	}
}

// List handles GET /generations (gallery)
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, offset := parsePage(r)

	generations, total, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list generations")
		response.InternalError(w)
		return
	}

	records := make([]Record, 0, len(generations))
	for _, g := range generations {
		records = append(records, NewRecord(g, h.thumbURL))
	}

	response.WithMeta(w, records, response.NewMeta(total, limit, offset))
}

// Get handles GET /generations/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid generation id")
		return
	}

	g, err := h.service.GetByID(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ErrGenerationNotFound) {
			response.NotFound(w, "Generation not found")
			return
		}
		log.Error().Err(err).Str("generation_id", id.String()).Msg("failed to get generation")
		response.InternalError(w)
		return
	}

	response.OK(w, NewRecord(g, h.thumbURL))
}

func parsePage(r *http.Request) (limit, offset int) {
	limit = 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
