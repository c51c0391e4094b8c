package preset

import (
	"context"
	"errors"
	"time"
)

// Service handles catalog business logic
type Service struct {
	repo Repository
}

// NewService creates preset service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ResolveTool looks a tool id up in the catalog and returns the tagged
// variant the orchestrator runs. Presets shadow pipelines on id clashes;
// admin CRUD keeps ids unique across both tables in practice.
func (s *Service) ResolveTool(ctx context.Context, id string) (*Tool, error) {
	p, err := s.repo.GetPreset(ctx, id)
	if err == nil {
		return &Tool{Kind: ToolSingle, Preset: p}, nil
	}
	if !errors.Is(err, ErrPresetNotFound) {
		return nil, err
	}

	pl, err := s.repo.GetPipeline(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPipelineNotFound) {
			return nil, ErrToolNotFound
		}
		return nil, err
	}
	if len(pl.Steps) == 0 {
		return nil, ErrEmptyPipeline
	}

	steps := make([]ResolvedStep, 0, len(pl.Steps))
	for _, step := range pl.Steps {
		sp, err := s.repo.GetPreset(ctx, step.PresetID)
		if err != nil {
			return nil, err
		}
		steps = append(steps, ResolvedStep{
			Position:   step.Position,
			ActionName: step.ActionName,
			Preset:     sp,
		})
	}

	return &Tool{Kind: ToolMultiStep, Pipeline: pl, Steps: steps}, nil
}

// CreatePreset adds a preset to the catalog
func (s *Service) CreatePreset(ctx context.Context, req *CreatePresetRequest) (*Preset, error) {
	now := time.Now()
	p := &Preset{
		ID:            req.ID,
		Name:          req.Name,
		Description:   req.Description,
		ModelID:       req.ModelID,
		InputTemplate: req.InputTemplate,
		CreditCost:    req.CreditCost,
		ImageBefore:   req.ImageBefore,
		ImageAfter:    req.ImageAfter,
		IsPublic:      req.IsPublic,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreatePreset(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPreset returns one preset
func (s *Service) GetPreset(ctx context.Context, id string) (*Preset, error) {
	return s.repo.GetPreset(ctx, id)
}

// ListPresets returns catalog presets; publicOnly hides drafts
func (s *Service) ListPresets(ctx context.Context, publicOnly bool) ([]*Preset, error) {
	return s.repo.ListPresets(ctx, publicOnly)
}

// UpdatePreset applies a partial update
func (s *Service) UpdatePreset(ctx context.Context, id string, req *UpdatePresetRequest) (*Preset, error) {
	p, err := s.repo.GetPreset(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.ModelID != nil {
		p.ModelID = *req.ModelID
	}
	if len(req.InputTemplate) > 0 {
		p.InputTemplate = req.InputTemplate
	}
	if req.CreditCost != nil {
		p.CreditCost = *req.CreditCost
	}
	if req.ImageBefore != nil {
		p.ImageBefore = *req.ImageBefore
	}
	if req.ImageAfter != nil {
		p.ImageAfter = *req.ImageAfter
	}
	if req.IsPublic != nil {
		p.IsPublic = *req.IsPublic
	}

	if err := s.repo.UpdatePreset(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePreset removes a preset unless a pipeline references it
func (s *Service) DeletePreset(ctx context.Context, id string) error {
	return s.repo.DeletePreset(ctx, id)
}

// CreatePipeline adds a pipeline and its steps
func (s *Service) CreatePipeline(ctx context.Context, req *CreatePipelineRequest) (*Pipeline, error) {
	now := time.Now()
	pl := &Pipeline{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
		Steps:       stepsFromRequest(req.Steps),
	}
	if err := s.repo.CreatePipeline(ctx, pl); err != nil {
		return nil, err
	}
	return s.repo.GetPipeline(ctx, pl.ID)
}

// GetPipeline returns one pipeline with steps
func (s *Service) GetPipeline(ctx context.Context, id string) (*Pipeline, error) {
	return s.repo.GetPipeline(ctx, id)
}

// ListPipelines returns catalog pipelines; publicOnly hides drafts
func (s *Service) ListPipelines(ctx context.Context, publicOnly bool) ([]*Pipeline, error) {
	return s.repo.ListPipelines(ctx, publicOnly)
}

// UpdatePipeline applies a partial update; non-nil steps replace all steps
func (s *Service) UpdatePipeline(ctx context.Context, id string, req *UpdatePipelineRequest) (*Pipeline, error) {
	pl, err := s.repo.GetPipeline(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		pl.Name = *req.Name
	}
	if req.Description != nil {
		pl.Description = *req.Description
	}
	if req.IsPublic != nil {
		pl.IsPublic = *req.IsPublic
	}
	if req.Steps != nil {
		pl.Steps = stepsFromRequest(req.Steps)
	}

	if err := s.repo.UpdatePipeline(ctx, pl); err != nil {
		return nil, err
	}
	return s.repo.GetPipeline(ctx, id)
}

// DeletePipeline removes a pipeline and its steps
func (s *Service) DeletePipeline(ctx context.Context, id string) error {
	return s.repo.DeletePipeline(ctx, id)
}

func stepsFromRequest(reqs []StepRequest) []Step {
	steps := make([]Step, 0, len(reqs))
	for i, sr := range reqs {
		steps = append(steps, Step{
			Position:   i + 1,
			ActionName: sr.ActionName,
			PresetID:   sr.PresetID,
		})
	}
	return steps
}
