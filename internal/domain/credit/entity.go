package credit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a ledger entry (matches transaction_kind enum)
type Kind string

const (
	KindPurchase   Kind = "purchase"
	KindGeneration Kind = "generation"
	KindRefund     Kind = "refund"
	KindAdminGrant Kind = "admin_grant"
)

// Transaction is one append-only ledger entry. Amount is signed: debits
// are negative, credits positive. BalanceAfter snapshots the balance the
// entry left behind, so the sum of a user's amounts always equals it.
type Transaction struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       uuid.UUID       `db:"user_id" json:"user_id"`
	Amount       int64           `db:"amount" json:"amount"`
	BalanceAfter int64           `db:"balance_after" json:"balance_after"`
	Kind         Kind            `db:"kind" json:"kind"`
	Description  string          `db:"description" json:"description"`
	Metadata     json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Meta is the free-form context attached to a ledger entry. The
// generation id is what refund idempotency keys on.
type Meta struct {
	GenerationID  string `json:"generation_id,omitempty"`
	PipelineRunID string `json:"pipeline_run_id,omitempty"`
	PresetID      string `json:"preset_id,omitempty"`
	PackageID     string `json:"package_id,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	GrantedBy     string `json:"granted_by,omitempty"`
}

// IsValidKind checks if kind is a known transaction kind
func IsValidKind(kind string) bool {
	switch Kind(kind) {
	case KindPurchase, KindGeneration, KindRefund, KindAdminGrant:
		return true
	}
	return false
}
