package credit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 5 * time.Second

// Repository defines credit ledger data access
type Repository interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	// TryDebit atomically deducts amount if the balance covers it and
	// appends a ledger entry in the same transaction. Returns the new
	// balance, or InsufficientCreditsError without touching anything.
	TryDebit(ctx context.Context, userID uuid.UUID, amount int64, description string, meta Meta) (int64, error)
	// Credit unconditionally increments the balance and appends a ledger
	// entry in the same transaction.
	Credit(ctx context.Context, userID uuid.UUID, amount int64, kind Kind, description string, meta Meta) (int64, error)
	// HasRefund reports whether a refund entry already references the
	// given generation or pipeline run. Guards refund idempotency.
	HasRefund(ctx context.Context, refID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, int, error)
	Search(ctx context.Context, filter SearchFilter) ([]*Transaction, int, error)
}

// SearchFilter narrows admin ledger searches
type SearchFilter struct {
	UserID uuid.UUID
	Kind   Kind
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates credit repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// GetBalance returns current credit balance
func (r *repository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance int64
	err := r.db.GetContext(ctx, &balance, `SELECT credits FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit repository get balance: %w", err)
	}
	return balance, nil
}

func (r *repository) TryDebit(ctx context.Context, userID uuid.UUID, amount int64, description string, meta Meta) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("credit repository begin tx: %w", err)
	}
	defer tx.Rollback()

	// The conditional update is the whole point: the balance check and
	// the deduction are one statement, so concurrent debits cannot both
	// pass a stale read.
	var newBalance int64
	err = tx.GetContext(ctx, &newBalance, `
		UPDATE users
		SET credits = credits - $2, updated_at = NOW()
		WHERE id = $1 AND credits >= $2
		RETURNING credits
	`, userID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		available, availErr := r.balanceInTx(ctx, tx, userID)
		if availErr != nil {
			return 0, availErr
		}
		return 0, &InsufficientCreditsError{Required: amount, Available: available}
	}
	if err != nil {
		return 0, fmt.Errorf("credit repository debit: %w", err)
	}

	if err := appendEntry(ctx, tx, userID, -amount, newBalance, KindGeneration, description, meta); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("credit repository commit debit: %w", err)
	}

	return newBalance, nil
}

func (r *repository) Credit(ctx context.Context, userID uuid.UUID, amount int64, kind Kind, description string, meta Meta) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("credit repository begin tx: %w", err)
	}
	defer tx.Rollback()

	newBalance, err := CreditTx(ctx, tx, userID, amount, kind, description, meta)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("credit repository commit credit: %w", err)
	}

	return newBalance, nil
}

// CreditTx increments the balance and appends the ledger entry inside the
// caller's transaction. Billing runs it alongside its payment_events
// dedup insert so a webhook delivery either fully credits or fully rolls
// back and stays retryable.
func CreditTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int64, kind Kind, description string, meta Meta) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var newBalance int64
	err := tx.GetContext(ctx, &newBalance, `
		UPDATE users
		SET credits = credits + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING credits
	`, userID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit repository credit: %w", err)
	}

	if err := appendEntry(ctx, tx, userID, amount, newBalance, kind, description, meta); err != nil {
		return 0, err
	}

	return newBalance, nil
}

// HasRefund checks for an existing refund entry referencing refID as
// either a generation or a pipeline run
func (r *repository) HasRefund(ctx context.Context, refID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM credit_transactions
			WHERE kind = $1
			  AND (metadata->>'generation_id' = $2 OR metadata->>'pipeline_run_id' = $2)
		)
	`, KindRefund, refID.String())
	if err != nil {
		return false, fmt.Errorf("credit repository has refund: %w", err)
	}
	return exists, nil
}

// ListByUser returns a page of a user's ledger, newest first
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM credit_transactions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("credit repository count: %w", err)
	}

	txns := []*Transaction{}
	err := r.db.SelectContext(ctx, &txns, `
		SELECT id, user_id, amount, balance_after, kind, description, metadata, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("credit repository list: %w", err)
	}

	return txns, total, nil
}

// Search returns ledger entries matching the filter, newest first
func (r *repository) Search(ctx context.Context, filter SearchFilter) ([]*Transaction, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if filter.UserID != uuid.Nil {
		where += fmt.Sprintf(" AND user_id = $%d", idx)
		args = append(args, filter.UserID)
		idx++
	}
	if filter.Kind != "" {
		where += fmt.Sprintf(" AND kind = $%d", idx)
		args = append(args, filter.Kind)
		idx++
	}
	if !filter.Since.IsZero() {
		where += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, filter.Since)
		idx++
	}
	if !filter.Until.IsZero() {
		where += fmt.Sprintf(" AND created_at < $%d", idx)
		args = append(args, filter.Until)
		idx++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM credit_transactions `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("credit repository search count: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT id, user_id, amount, balance_after, kind, description, metadata, created_at
		FROM credit_transactions %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, idx, idx+1)
	args = append(args, limit, filter.Offset)

	txns := []*Transaction{}
	if err := r.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, 0, fmt.Errorf("credit repository search: %w", err)
	}

	return txns, total, nil
}

func (r *repository) balanceInTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `SELECT credits FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit repository read balance: %w", err)
	}
	return balance, nil
}

func appendEntry(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount, balanceAfter int64, kind Kind, description string, meta Meta) error {
	metadata, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("credit repository encode metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, balance_after, kind, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), userID, amount, balanceAfter, kind, description, metadata)
	if err != nil {
		return fmt.Errorf("credit repository insert entry: %w", err)
	}
	return nil
}
