package preset

import (
	"encoding/json"
	"time"
)

// Preset is a single-model transformation offered in the storefront.
// IDs are human-readable slugs ("background-removal") so they double as
// stable tool ids for the generation endpoint.
type Preset struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	ModelID       string          `db:"model_id" json:"model_id"`
	InputTemplate json.RawMessage `db:"input_template" json:"input_template"`
	CreditCost    int64           `db:"credit_cost" json:"credit_cost"`
	ImageBefore   string          `db:"image_before" json:"image_before,omitempty"`
	ImageAfter    string          `db:"image_after" json:"image_after,omitempty"`
	IsPublic      bool            `db:"is_public" json:"is_public"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// BuildInput materializes the provider payload for one invocation by
// merging the stored template with the source image URL.
func (p *Preset) BuildInput(imageURL string) (map[string]any, error) {
	input := map[string]any{}
	if len(p.InputTemplate) > 0 {
		if err := json.Unmarshal(p.InputTemplate, &input); err != nil {
			return nil, err
		}
	}
	input["image_url"] = imageURL
	return input, nil
}

// Pipeline chains presets into a multi-step transformation
type Pipeline struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	IsPublic    bool      `db:"is_public" json:"is_public"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	Steps []Step `db:"-" json:"steps,omitempty"`
}

// Step is one position in a pipeline, bound to a preset
type Step struct {
	PipelineID string `db:"pipeline_id" json:"-"`
	Position   int    `db:"position" json:"position"`
	ActionName string `db:"action_name" json:"action_name"`
	PresetID   string `db:"preset_id" json:"preset_id"`
}

// ToolKind tags which variant a resolved tool is
type ToolKind int

const (
	ToolSingle ToolKind = iota
	ToolMultiStep
)

// Tool is the resolved form a tool id takes: exactly one variant is set,
// selected by Kind. The orchestrator switches on the tag instead of
// sniffing fields.
type Tool struct {
	Kind     ToolKind
	Preset   *Preset        // set when Kind == ToolSingle
	Pipeline *Pipeline      // set when Kind == ToolMultiStep
	Steps    []ResolvedStep // set when Kind == ToolMultiStep, position order
}

// ResolvedStep pairs a pipeline step with its loaded preset
type ResolvedStep struct {
	Position   int
	ActionName string
	Preset     *Preset
}
