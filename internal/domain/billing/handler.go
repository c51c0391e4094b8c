package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pixelmint/pixelmint-api/internal/middleware"
	"github.com/pixelmint/pixelmint-api/internal/pkg/response"
	"github.com/pixelmint/pixelmint-api/internal/pkg/validator"
)

// webhook payloads are small; cap reads regardless
const maxWebhookBody = 1 << 20

// Handler handles billing HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates billing handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CheckoutRequest for POST /billing/checkout
type CheckoutRequest struct {
	PackageID string `json:"package_id" validate:"required"`
}

// ListPackages handles GET /billing/packages
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	response.OK(w, Packages())
}

// CreateCheckout handles POST /billing/checkout
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CheckoutRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	result, err := h.service.CreateCheckout(r.Context(), userID, req.PackageID)
	if err != nil {
		switch {
		case errors.Is(err, ErrPackageNotFound):
			response.NotFound(w, "Package not found")
		default:
			log.Error().Err(err).
				Str("user_id", userID.String()).
				Str("package_id", req.PackageID).
				Msg("failed to create checkout session")
			response.BadGateway(w, "Payment provider unavailable")
		}
		return
	}

	response.OK(w, result)
}

// Webhook handles POST /webhooks/stripe. It reads the raw body because
// signature verification covers the exact bytes on the wire.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Could not read request body")
		return
	}

	err = h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			response.BadRequest(w, "Invalid signature")
		case errors.Is(err, ErrBadMetadata):
			log.Warn().Err(err).Msg("webhook with unusable metadata")
			response.BadRequest(w, "Invalid event payload")
		default:
			// 500 makes Stripe retry the delivery
			log.Error().Err(err).Msg("webhook processing failed")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]bool{"received": true})
}
