package generation

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Status represents generation lifecycle state (matches generation_status
// enum). Transitions are pending → processing → completed|failed, no
// skips; terminal states never change.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status admits no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Generation is one model invocation record (matches generations table).
// Multi-step runs produce one record per stage sharing a pipeline_run_id.
type Generation struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	ModelID       string          `db:"model_id" json:"model_id"`
	PresetID      string          `db:"preset_id" json:"preset_id"`
	PipelineRunID uuid.NullUUID   `db:"pipeline_run_id" json:"pipeline_run_id,omitempty"`
	Status        Status          `db:"status" json:"status"`
	InputPayload  json.RawMessage `db:"input_payload" json:"input_payload,omitempty"`
	OutputURLs    pq.StringArray  `db:"output_urls" json:"output_urls,omitempty"`
	RawOutput     json.RawMessage `db:"raw_output" json:"raw_output,omitempty"`
	CreditCost    int64           `db:"credit_cost" json:"credit_cost"`
	Error         sql.NullString  `db:"error" json:"-"`
	ThumbKey      sql.NullString  `db:"thumb_key" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	StartedAt     sql.NullTime    `db:"started_at" json:"-"`
	CompletedAt   sql.NullTime    `db:"completed_at" json:"-"`
}

// OutputURL returns the primary output image URL, if any
func (g *Generation) OutputURL() string {
	if len(g.OutputURLs) == 0 {
		return ""
	}
	return g.OutputURLs[0]
}
