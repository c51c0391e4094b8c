package preset

import (
	"context"
	"encoding/json"
	"testing"
)

type fakeRepo struct {
	presets   map[string]*Preset
	pipelines map[string]*Pipeline
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		presets:   map[string]*Preset{},
		pipelines: map[string]*Pipeline{},
	}
}

func (f *fakeRepo) CreatePreset(ctx context.Context, p *Preset) error {
	if _, ok := f.presets[p.ID]; ok {
		return ErrDuplicateID
	}
	f.presets[p.ID] = p
	return nil
}

func (f *fakeRepo) GetPreset(ctx context.Context, id string) (*Preset, error) {
	if p, ok := f.presets[id]; ok {
		return p, nil
	}
	return nil, ErrPresetNotFound
}

func (f *fakeRepo) ListPresets(ctx context.Context, publicOnly bool) ([]*Preset, error) {
	out := []*Preset{}
	for _, p := range f.presets {
		if publicOnly && !p.IsPublic {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) UpdatePreset(ctx context.Context, p *Preset) error {
	if _, ok := f.presets[p.ID]; !ok {
		return ErrPresetNotFound
	}
	f.presets[p.ID] = p
	return nil
}

func (f *fakeRepo) DeletePreset(ctx context.Context, id string) error {
	if _, ok := f.presets[id]; !ok {
		return ErrPresetNotFound
	}
	for _, pl := range f.pipelines {
		for _, step := range pl.Steps {
			if step.PresetID == id {
				return ErrPresetInUse
			}
		}
	}
	delete(f.presets, id)
	return nil
}

func (f *fakeRepo) CreatePipeline(ctx context.Context, pl *Pipeline) error {
	if _, ok := f.pipelines[pl.ID]; ok {
		return ErrDuplicateID
	}
	f.pipelines[pl.ID] = pl
	return nil
}

func (f *fakeRepo) GetPipeline(ctx context.Context, id string) (*Pipeline, error) {
	if pl, ok := f.pipelines[id]; ok {
		return pl, nil
	}
	return nil, ErrPipelineNotFound
}

func (f *fakeRepo) ListPipelines(ctx context.Context, publicOnly bool) ([]*Pipeline, error) {
	out := []*Pipeline{}
	for _, pl := range f.pipelines {
		if publicOnly && !pl.IsPublic {
			continue
		}
		out = append(out, pl)
	}
	return out, nil
}

func (f *fakeRepo) UpdatePipeline(ctx context.Context, pl *Pipeline) error {
	if _, ok := f.pipelines[pl.ID]; !ok {
		return ErrPipelineNotFound
	}
	f.pipelines[pl.ID] = pl
	return nil
}

func (f *fakeRepo) DeletePipeline(ctx context.Context, id string) error {
	if _, ok := f.pipelines[id]; !ok {
		return ErrPipelineNotFound
	}
	delete(f.pipelines, id)
	return nil
}

func seedCatalog(repo *fakeRepo) {
	repo.presets["background-removal"] = &Preset{
		ID:            "background-removal",
		Name:          "Background Removal",
		ModelID:       "fal-ai/birefnet",
		InputTemplate: json.RawMessage(`{"operating_resolution":"1024x1024"}`),
		CreditCost:    10,
		IsPublic:      true,
	}
	repo.presets["cloth-segment"] = &Preset{
		ID:         "cloth-segment",
		Name:       "Cloth Segmentation",
		ModelID:    "fal-ai/cloth-segmentation",
		CreditCost: 30,
		IsPublic:   false,
	}
	repo.presets["cloth-inpaint"] = &Preset{
		ID:         "cloth-inpaint",
		Name:       "Cloth Inpainting",
		ModelID:    "fal-ai/flux/inpaint",
		CreditCost: 50,
		IsPublic:   false,
	}
	repo.pipelines["cloth-replacement"] = &Pipeline{
		ID:       "cloth-replacement",
		Name:     "Cloth Replacement",
		IsPublic: true,
		Steps: []Step{
			{PipelineID: "cloth-replacement", Position: 1, ActionName: "segment", PresetID: "cloth-segment"},
			{PipelineID: "cloth-replacement", Position: 2, ActionName: "inpaint", PresetID: "cloth-inpaint"},
		},
	}
}

func TestResolveToolSingle(t *testing.T) {
	repo := newFakeRepo()
	seedCatalog(repo)
	svc := NewService(repo)

	tool, err := svc.ResolveTool(context.Background(), "background-removal")
	if err != nil {
		t.Fatalf("ResolveTool failed: %v", err)
	}
	if tool.Kind != ToolSingle {
		t.Fatalf("expected ToolSingle, got %v", tool.Kind)
	}
	if tool.Preset == nil || tool.Preset.ModelID != "fal-ai/birefnet" {
		t.Errorf("unexpected preset: %+v", tool.Preset)
	}
	if tool.Pipeline != nil || tool.Steps != nil {
		t.Error("single variant must not carry pipeline fields")
	}
}

func TestResolveToolMultiStep(t *testing.T) {
	repo := newFakeRepo()
	seedCatalog(repo)
	svc := NewService(repo)

	tool, err := svc.ResolveTool(context.Background(), "cloth-replacement")
	if err != nil {
		t.Fatalf("ResolveTool failed: %v", err)
	}
	if tool.Kind != ToolMultiStep {
		t.Fatalf("expected ToolMultiStep, got %v", tool.Kind)
	}
	if tool.Preset != nil {
		t.Error("multi-step variant must not carry a single preset")
	}
	if len(tool.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(tool.Steps))
	}
	if tool.Steps[0].ActionName != "segment" || tool.Steps[1].ActionName != "inpaint" {
		t.Errorf("steps out of order: %+v", tool.Steps)
	}
	if tool.Steps[0].Preset.CreditCost != 30 || tool.Steps[1].Preset.CreditCost != 50 {
		t.Errorf("step presets not resolved: %+v", tool.Steps)
	}
}

func TestResolveToolUnknown(t *testing.T) {
	svc := NewService(newFakeRepo())

	if _, err := svc.ResolveTool(context.Background(), "does-not-exist"); err != ErrToolNotFound {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestResolveToolEmptyPipeline(t *testing.T) {
	repo := newFakeRepo()
	repo.pipelines["empty"] = &Pipeline{ID: "empty", Name: "Empty"}
	svc := NewService(repo)

	if _, err := svc.ResolveTool(context.Background(), "empty"); err != ErrEmptyPipeline {
		t.Fatalf("expected ErrEmptyPipeline, got %v", err)
	}
}

func TestBuildInput(t *testing.T) {
	p := &Preset{
		ID:            "background-removal",
		InputTemplate: json.RawMessage(`{"operating_resolution":"1024x1024"}`),
	}

	input, err := p.BuildInput("https://cdn.example.com/in.png")
	if err != nil {
		t.Fatalf("BuildInput failed: %v", err)
	}
	if input["image_url"] != "https://cdn.example.com/in.png" {
		t.Errorf("image_url not set: %v", input)
	}
	if input["operating_resolution"] != "1024x1024" {
		t.Errorf("template fields lost: %v", input)
	}
}

func TestUpdatePresetPartial(t *testing.T) {
	repo := newFakeRepo()
	seedCatalog(repo)
	svc := NewService(repo)

	cost := int64(15)
	p, err := svc.UpdatePreset(context.Background(), "background-removal", &UpdatePresetRequest{CreditCost: &cost})
	if err != nil {
		t.Fatalf("UpdatePreset failed: %v", err)
	}
	if p.CreditCost != 15 {
		t.Errorf("expected credit cost 15, got %d", p.CreditCost)
	}
	if p.Name != "Background Removal" {
		t.Errorf("untouched field changed: %q", p.Name)
	}
}

func TestDeletePresetInUse(t *testing.T) {
	repo := newFakeRepo()
	seedCatalog(repo)
	svc := NewService(repo)

	if err := svc.DeletePreset(context.Background(), "cloth-segment"); err != ErrPresetInUse {
		t.Fatalf("expected ErrPresetInUse, got %v", err)
	}
}
