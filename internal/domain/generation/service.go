package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pixelmint/pixelmint-api/internal/domain/credit"
	"github.com/pixelmint/pixelmint-api/internal/domain/preset"
	"github.com/pixelmint/pixelmint-api/internal/pkg/falai"
)

// ErrUpstreamFailure marks a provider-side failure. By the time the
// caller sees it, compensation (failed record + refund) has already run.
var ErrUpstreamFailure = errors.New("upstream generation failure")

// CreditLedger is the slice of the credit service the orchestrator needs
type CreditLedger interface {
	TryDebit(ctx context.Context, userID uuid.UUID, amount int64, description string, meta credit.Meta) (int64, error)
	Refund(ctx context.Context, userID uuid.UUID, amount int64, description string, meta credit.Meta) (int64, error)
	HasRefund(ctx context.Context, refID uuid.UUID) (bool, error)
}

// ToolResolver resolves tool ids against the catalog
type ToolResolver interface {
	ResolveTool(ctx context.Context, id string) (*preset.Tool, error)
}

// Invoker runs one synchronous model invocation
type Invoker interface {
	Subscribe(ctx context.Context, model string, input map[string]any) (*falai.Output, error)
}

// Prober reads remote image dimensions for pricing
type Prober interface {
	Probe(ctx context.Context, imageURL string) (width, height int, err error)
}

// GenerateResult is what a successful job returns to the handler
type GenerateResult struct {
	GenerationID     uuid.UUID `json:"generationId"`
	OutputImageURL   string    `json:"outputImageUrl"`
	CreditsUsed      int64     `json:"creditsUsed"`
	CreditsRemaining int64     `json:"creditsRemaining"`
}

// Service orchestrates generation jobs: price, debit, invoke, settle.
type Service struct {
	repo    Repository
	ledger  CreditLedger
	catalog ToolResolver
	invoker Invoker
	prober  Prober
}

// NewService creates generation service
func NewService(repo Repository, ledger CreditLedger, catalog ToolResolver, invoker Invoker, prober Prober) *Service {
	return &Service{
		repo:    repo,
		ledger:  ledger,
		catalog: catalog,
		invoker: invoker,
		prober:  prober,
	}
}

// Generate runs one job end to end. Nothing is mutated before the debit
// lands; once it has, the rest of the job runs on a context detached from
// the client connection so a disconnect cannot strand a paid job without
// compensation.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, toolID, imageURL string) (*GenerateResult, error) {
	tool, err := s.catalog.ResolveTool(ctx, toolID)
	if err != nil {
		return nil, err
	}

	width, height, err := s.prober.Probe(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageProbeFailed, err)
	}

	switch tool.Kind {
	case preset.ToolSingle:
		return s.runSingle(ctx, userID, tool.Preset, imageURL, width, height)
	case preset.ToolMultiStep:
		return s.runPipeline(ctx, userID, tool, imageURL, width, height)
	default:
		return nil, fmt.Errorf("unhandled tool kind %d", tool.Kind)
	}
}

func (s *Service) runSingle(ctx context.Context, userID uuid.UUID, p *preset.Preset, imageURL string, width, height int) (*GenerateResult, error) {
	cost := EstimateCost(p.CreditCost, width, height)
	generationID := uuid.New()

	balance, err := s.ledger.TryDebit(ctx, userID, cost,
		fmt.Sprintf("Generation: %s", p.Name),
		credit.Meta{GenerationID: generationID.String(), PresetID: p.ID})
	if err != nil {
		return nil, err
	}

	// the debit has landed; the client can no longer cancel the job
	ctx = context.WithoutCancel(ctx)

	outputURL, err := s.runStage(ctx, stage{
		generationID: generationID,
		userID:       userID,
		preset:       p,
		imageURL:     imageURL,
	})
	if err != nil {
		s.compensate(ctx, userID, generationID, generationID, p.ID, cost)
		return nil, err
	}

	return &GenerateResult{
		GenerationID:     generationID,
		OutputImageURL:   outputURL,
		CreditsUsed:      cost,
		CreditsRemaining: balance,
	}, nil
}

func (s *Service) runPipeline(ctx context.Context, userID uuid.UUID, tool *preset.Tool, imageURL string, width, height int) (*GenerateResult, error) {
	baseCosts := make([]int64, 0, len(tool.Steps))
	for _, step := range tool.Steps {
		baseCosts = append(baseCosts, step.Preset.CreditCost)
	}
	cost := EstimatePipelineCost(baseCosts, width, height)
	runID := uuid.New()

	balance, err := s.ledger.TryDebit(ctx, userID, cost,
		fmt.Sprintf("Pipeline: %s", tool.Pipeline.Name),
		credit.Meta{PipelineRunID: runID.String()})
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	stageInput := imageURL
	var lastID uuid.UUID
	for _, step := range tool.Steps {
		generationID := uuid.New()
		lastID = generationID

		// per-stage record cost is the stage's share; one debit covers all
		outputURL, err := s.runStage(ctx, stage{
			generationID: generationID,
			userID:       userID,
			preset:       step.Preset,
			imageURL:     stageInput,
			runID:        runID,
			stageCost:    EstimateCost(step.Preset.CreditCost, width, height),
		})
		if err != nil {
			// one refund for the whole run, however late the failure
			s.compensate(ctx, userID, generationID, runID, step.Preset.ID, cost)
			return nil, err
		}
		stageInput = outputURL
	}

	return &GenerateResult{
		GenerationID:     lastID,
		OutputImageURL:   stageInput,
		CreditsUsed:      cost,
		CreditsRemaining: balance,
	}, nil
}

type stage struct {
	generationID uuid.UUID
	userID       uuid.UUID
	preset       *preset.Preset
	imageURL     string
	runID        uuid.UUID // zero for single jobs
	stageCost    int64     // zero means the record carries the full job cost
}

// runStage drives one record through its full lifecycle and returns the
// primary output URL.
func (s *Service) runStage(ctx context.Context, st stage) (string, error) {
	input, err := st.preset.BuildInput(st.imageURL)
	if err != nil {
		return "", fmt.Errorf("build input for preset %s: %w", st.preset.ID, err)
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encode input for preset %s: %w", st.preset.ID, err)
	}

	cost := st.stageCost
	if cost == 0 {
		cost = st.preset.CreditCost
	}

	g := &Generation{
		ID:           st.generationID,
		UserID:       st.userID,
		ModelID:      st.preset.ModelID,
		PresetID:     st.preset.ID,
		InputPayload: payload,
		CreditCost:   cost,
	}
	if st.runID != uuid.Nil {
		g.PipelineRunID = uuid.NullUUID{UUID: st.runID, Valid: true}
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return "", err
	}
	if err := s.repo.MarkProcessing(ctx, st.generationID); err != nil {
		s.markFailed(ctx, st.generationID, err.Error())
		return "", err
	}

	output, err := s.invoker.Subscribe(ctx, st.preset.ModelID, input)
	if err != nil {
		s.markFailed(ctx, st.generationID, err.Error())
		return "", fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	outputURL, err := output.FirstImageURL()
	if err != nil {
		s.markFailed(ctx, st.generationID, ErrNoImageGenerated.Error())
		return "", ErrNoImageGenerated
	}

	raw, err := json.Marshal(output)
	if err != nil {
		raw = nil
	}
	urls := make([]string, 0, len(output.Images))
	for _, img := range output.Images {
		urls = append(urls, img.URL)
	}
	if err := s.repo.MarkCompleted(ctx, st.generationID, urls, raw); err != nil {
		s.markFailed(ctx, st.generationID, err.Error())
		return "", err
	}

	return outputURL, nil
}

// compensate refunds the full upfront debit exactly once. Failures here
// are logged for manual reconciliation, never surfaced to the client.
func (s *Service) compensate(ctx context.Context, userID, generationID, refID uuid.UUID, presetID string, amount int64) {
	refunded, err := s.ledger.HasRefund(ctx, refID)
	if err != nil {
		log.Error().Err(err).
			Str("generation_id", generationID.String()).
			Str("user_id", userID.String()).
			Str("preset_id", presetID).
			Msg("refund check failed, manual reconciliation needed")
		return
	}
	if refunded {
		return
	}

	meta := credit.Meta{GenerationID: generationID.String(), PresetID: presetID}
	if refID != generationID {
		meta.PipelineRunID = refID.String()
	}
	if _, err := s.ledger.Refund(ctx, userID, amount, "Generation failed", meta); err != nil {
		log.Error().Err(err).
			Str("generation_id", generationID.String()).
			Str("user_id", userID.String()).
			Str("preset_id", presetID).
			Int64("amount", amount).
			Msg("refund failed, manual reconciliation needed")
	}
}

func (s *Service) markFailed(ctx context.Context, id uuid.UUID, msg string) {
	if err := s.repo.MarkFailed(ctx, id, msg); err != nil {
		log.Error().Err(err).Str("generation_id", id.String()).Msg("failed to mark generation failed")
	}
}

// GetByID returns one generation owned by userID
func (s *Service) GetByID(ctx context.Context, userID, id uuid.UUID) (*Generation, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.UserID != userID {
		return nil, ErrGenerationNotFound
	}
	return g, nil
}

// ListByUser returns the user's gallery, newest first
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Generation, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
