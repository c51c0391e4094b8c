package upload

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pixelmint/pixelmint-api/internal/middleware"
	"github.com/pixelmint/pixelmint-api/internal/pkg/imaging"
	"github.com/pixelmint/pixelmint-api/internal/pkg/response"
)

// Handler handles upload HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates upload handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /uploads (multipart, field "file")
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := r.ParseMultipartForm(imaging.MaxFileSize); err != nil {
		response.BadRequest(w, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "Missing file field")
		return
	}
	defer file.Close()

	result, err := h.service.Store(r.Context(), userID, header.Filename, header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the maximum upload size")
		case errors.Is(err, ErrUnsupportedType), errors.Is(err, ErrNotAnImage):
			response.BadRequest(w, "File must be a JPEG, PNG, GIF or WebP image")
		default:
			log.Error().Err(err).Str("user_id", userID.String()).Msg("upload failed")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, result)
}
