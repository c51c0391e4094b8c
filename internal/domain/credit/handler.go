package credit

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/pixelmint/pixelmint-api/internal/middleware"
	"github.com/pixelmint/pixelmint-api/internal/pkg/response"
)

// Handler handles credit HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates credit handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// BalanceResponse for GET /credits
type BalanceResponse struct {
	Credits int64 `json:"credits"`
}

// GetBalance handles GET /credits
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		switch err {
		case ErrUserNotFound:
			response.NotFound(w, "User not found")
		default:
			log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to get balance")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, BalanceResponse{Credits: balance})
}

// ListTransactions handles GET /credits/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, offset := parsePage(r)

	txns, total, err := h.service.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list transactions")
		response.InternalError(w)
		return
	}

	response.WithMeta(w, txns, response.NewMeta(total, limit, offset))
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
