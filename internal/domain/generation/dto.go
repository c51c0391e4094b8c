package generation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GenerateRequest for POST /generations
type GenerateRequest struct {
	ToolID   string `json:"toolId" validate:"required,min=2,max=64"`
	ImageURL string `json:"imageUrl" validate:"required,url"`
}

// Record is the API shape of one generation row
type Record struct {
	ID            uuid.UUID       `json:"id"`
	ModelID       string          `json:"model_id"`
	PresetID      string          `json:"preset_id"`
	PipelineRunID string          `json:"pipeline_run_id,omitempty"`
	Status        Status          `json:"status"`
	OutputURLs    []string        `json:"output_urls,omitempty"`
	ThumbURL      string          `json:"thumb_url,omitempty"`
	CreditCost    int64           `json:"credit_cost"`
	Error         string          `json:"error,omitempty"`
	InputPayload  json.RawMessage `json:"input_payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// URLResolver turns a storage key into a public URL
type URLResolver func(key string) string

// NewRecord maps a Generation to its API shape
func NewRecord(g *Generation, thumbURL URLResolver) Record {
	rec := Record{
		ID:           g.ID,
		ModelID:      g.ModelID,
		PresetID:     g.PresetID,
		Status:       g.Status,
		OutputURLs:   g.OutputURLs,
		CreditCost:   g.CreditCost,
		InputPayload: g.InputPayload,
		CreatedAt:    g.CreatedAt,
	}
	if g.PipelineRunID.Valid {
		rec.PipelineRunID = g.PipelineRunID.UUID.String()
	}
	if g.Error.Valid {
		rec.Error = g.Error.String
	}
	if g.ThumbKey.Valid && thumbURL != nil {
		rec.ThumbURL = thumbURL(g.ThumbKey.String)
	}
	if g.StartedAt.Valid {
		rec.StartedAt = &g.StartedAt.Time
	}
	if g.CompletedAt.Valid {
		rec.CompletedAt = &g.CompletedAt.Time
	}
	return rec
}
