package credit

import (
	"context"

	"github.com/google/uuid"
)

// Service exposes the ledger to handlers and to the generation
// orchestrator. It is a thin layer; the atomicity lives in the repository.
type Service struct {
	repo Repository
}

// NewService creates credit service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetBalance returns current balance for a user
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

// TryDebit deducts amount or fails with InsufficientCreditsError
func (s *Service) TryDebit(ctx context.Context, userID uuid.UUID, amount int64, description string, meta Meta) (int64, error) {
	return s.repo.TryDebit(ctx, userID, amount, description, meta)
}

// Refund returns a previously debited amount once per generation
func (s *Service) Refund(ctx context.Context, userID uuid.UUID, amount int64, description string, meta Meta) (int64, error) {
	return s.repo.Credit(ctx, userID, amount, KindRefund, description, meta)
}

// AddPurchased appends a purchase-kind credit. Webhook-driven purchases
// go through billing's transactional RecordPurchase instead.
func (s *Service) AddPurchased(ctx context.Context, userID uuid.UUID, amount int64, description string, meta Meta) (int64, error) {
	return s.repo.Credit(ctx, userID, amount, KindPurchase, description, meta)
}

// Grant credits a user from the admin console
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, amount int64, description string, meta Meta) (int64, error) {
	return s.repo.Credit(ctx, userID, amount, KindAdminGrant, description, meta)
}

// HasRefund reports whether a generation or pipeline run has already
// been refunded
func (s *Service) HasRefund(ctx context.Context, refID uuid.UUID) (bool, error) {
	return s.repo.HasRefund(ctx, refID)
}

// ListTransactions returns a user's ledger history
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// SearchTransactions runs an admin ledger search
func (s *Service) SearchTransactions(ctx context.Context, filter SearchFilter) ([]*Transaction, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.Search(ctx, filter)
}
