package preset

import "encoding/json"

// CreatePresetRequest for POST /presets
type CreatePresetRequest struct {
	ID            string          `json:"id" validate:"required,min=2,max=64"`
	Name          string          `json:"name" validate:"required,min=2,max=200"`
	Description   string          `json:"description" validate:"max=2000"`
	ModelID       string          `json:"model_id" validate:"required,model_id"`
	InputTemplate json.RawMessage `json:"input_template"`
	CreditCost    int64           `json:"credit_cost" validate:"required,gt=0"`
	ImageBefore   string          `json:"image_before" validate:"omitempty,url"`
	ImageAfter    string          `json:"image_after" validate:"omitempty,url"`
	IsPublic      bool            `json:"is_public"`
}

// UpdatePresetRequest for PUT /presets/{id}
type UpdatePresetRequest struct {
	Name          *string         `json:"name" validate:"omitempty,min=2,max=200"`
	Description   *string         `json:"description" validate:"omitempty,max=2000"`
	ModelID       *string         `json:"model_id" validate:"omitempty,model_id"`
	InputTemplate json.RawMessage `json:"input_template"`
	CreditCost    *int64          `json:"credit_cost" validate:"omitempty,gt=0"`
	ImageBefore   *string         `json:"image_before" validate:"omitempty,url"`
	ImageAfter    *string         `json:"image_after" validate:"omitempty,url"`
	IsPublic      *bool           `json:"is_public"`
}

// StepRequest is one step in a pipeline create/update
type StepRequest struct {
	ActionName string `json:"action_name" validate:"required,min=2,max=100"`
	PresetID   string `json:"preset_id" validate:"required"`
}

// CreatePipelineRequest for POST /pipelines
type CreatePipelineRequest struct {
	ID          string        `json:"id" validate:"required,min=2,max=64"`
	Name        string        `json:"name" validate:"required,min=2,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	IsPublic    bool          `json:"is_public"`
	Steps       []StepRequest `json:"steps" validate:"required,min=1,dive"`
}

// UpdatePipelineRequest for PUT /pipelines/{id}
type UpdatePipelineRequest struct {
	Name        *string       `json:"name" validate:"omitempty,min=2,max=200"`
	Description *string       `json:"description" validate:"omitempty,max=2000"`
	IsPublic    *bool         `json:"is_public"`
	Steps       []StepRequest `json:"steps" validate:"omitempty,min=1,dive"`
}
