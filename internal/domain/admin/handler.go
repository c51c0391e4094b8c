package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pixelmint/pixelmint-api/internal/domain/credit"
	"github.com/pixelmint/pixelmint-api/internal/domain/user"
	"github.com/pixelmint/pixelmint-api/internal/middleware"
	"github.com/pixelmint/pixelmint-api/internal/pkg/response"
	"github.com/pixelmint/pixelmint-api/internal/pkg/validator"
)

// Handler handles admin HTTP requests
type Handler struct {
	users   user.Repository
	credits *credit.Service
}

// NewHandler creates admin handler
func NewHandler(users user.Repository, credits *credit.Service) *Handler {
	return &Handler{users: users, credits: credits}
}

// ListUsers handles GET /admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)

	users, total, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list users")
		response.InternalError(w)
		return
	}

	records := make([]UserRecord, 0, len(users))
	for _, u := range users {
		records = append(records, UserRecord{
			ID:        u.ID.String(),
			Email:     u.Email,
			Role:      string(u.Role),
			Credits:   u.Credits,
			CreatedAt: u.CreatedAt,
		})
	}

	response.WithMeta(w, records, response.NewMeta(total, limit, offset))
}

// GrantCredits handles POST /admin/users/{id}/credits
func (h *Handler) GrantCredits(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req GrantCreditsRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	adminID := middleware.GetUserID(r.Context())
	description := req.Description
	if description == "" {
		description = "Admin credit grant"
	}

	balance, err := h.credits.Grant(r.Context(), userID, req.Amount, description, credit.Meta{
		GrantedBy: adminID.String(),
	})
	if err != nil {
		switch {
		case errors.Is(err, credit.ErrUserNotFound):
			response.NotFound(w, "User not found")
		case errors.Is(err, credit.ErrInvalidAmount):
			response.BadRequest(w, "Amount must be positive")
		default:
			log.Error().Err(err).
				Str("user_id", userID.String()).
				Str("admin_id", adminID.String()).
				Msg("failed to grant credits")
			response.InternalError(w)
		}
		return
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("admin_id", adminID.String()).
		Int64("amount", req.Amount).
		Msg("credits granted")

	response.OK(w, GrantCreditsResponse{
		UserID:  userID.String(),
		Granted: req.Amount,
		Credits: balance,
	})
}

// ListTransactions handles GET /admin/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSearchFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	txns, total, err := h.credits.SearchTransactions(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to search transactions")
		response.InternalError(w)
		return
	}

	response.WithMeta(w, txns, response.NewMeta(total, filter.Limit, filter.Offset))
}

func parseSearchFilter(r *http.Request) (credit.SearchFilter, error) {
	q := r.URL.Query()
	filter := credit.SearchFilter{}

	if v := q.Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, errors.New("invalid user_id filter")
		}
		filter.UserID = id
	}
	if v := q.Get("kind"); v != "" {
		filter.Kind = credit.Kind(v)
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("invalid since timestamp, expected RFC3339")
		}
		filter.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("invalid until timestamp, expected RFC3339")
		}
		filter.Until = t
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		filter.Offset = v
	}

	return filter, nil
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
