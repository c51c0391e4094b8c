package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pixelmint/pixelmint-api/internal/domain/credit"
)

const queryTimeout = 3 * time.Second

// Repository records processed payment events. The unique constraint on
// session_id is the authority for webhook dedup; Redis only short-circuits
// the common replay.
type Repository interface {
	// RecordPurchase inserts the payment event and credits the user in
	// one transaction, returning the new balance. ErrEventProcessed on
	// replay. A failed credit rolls the event row back with it, so a
	// retried delivery can still land the credit.
	RecordPurchase(ctx context.Context, sessionID string, userID uuid.UUID, packageID string, credits int64, description string, meta credit.Meta) (int64, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates billing repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) RecordPurchase(ctx context.Context, sessionID string, userID uuid.UUID, packageID string, credits int64, description string, meta credit.Meta) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("billing repository begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_events (id, session_id, user_id, package_id, credits)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), sessionID, userID, packageID, credits)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrEventProcessed
		}
		return 0, fmt.Errorf("billing repository insert event: %w", err)
	}

	balance, err := credit.CreditTx(ctx, tx, userID, credits, credit.KindPurchase, description, meta)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("billing repository commit purchase: %w", err)
	}

	return balance, nil
}
