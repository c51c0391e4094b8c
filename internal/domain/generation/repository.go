package generation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 5 * time.Second

// Repository defines generation record data access. Status moves only
// through the conditional updates below, so an out-of-order call surfaces
// as ErrInvalidTransition instead of silently clobbering a terminal row.
type Repository interface {
	Create(ctx context.Context, g *Generation) error
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, outputURLs []string, rawOutput []byte) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	GetByID(ctx context.Context, id uuid.UUID) (*Generation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Generation, int, error)
	ListByPipelineRun(ctx context.Context, runID uuid.UUID) ([]*Generation, error)

	// Thumbnail worker support
	ListThumbnailCandidates(ctx context.Context, limit int, exclude []uuid.UUID) ([]*Generation, error)
	SetThumbnail(ctx context.Context, id uuid.UUID, thumbKey string) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates generation repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const generationColumns = `id, user_id, model_id, preset_id, pipeline_run_id, status,
	input_payload, output_urls, raw_output, credit_cost, error, thumb_key,
	created_at, started_at, completed_at`

func (r *repository) Create(ctx context.Context, g *Generation) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO generations (id, user_id, model_id, preset_id, pipeline_run_id, status, input_payload, credit_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		g.ID, g.UserID, g.ModelID, g.PresetID, g.PipelineRunID, StatusPending, g.InputPayload, g.CreditCost,
	)
	if err != nil {
		return fmt.Errorf("generation repository create: %w", err)
	}
	g.Status = StatusPending
	return nil
}

func (r *repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `
		UPDATE generations
		SET status = $2, started_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, StatusProcessing, StatusPending)
	if err != nil {
		return fmt.Errorf("generation repository mark processing: %w", err)
	}
	return checkTransition(ctx, r.db, result, id)
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, outputURLs []string, rawOutput []byte) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `
		UPDATE generations
		SET status = $2, output_urls = $3, raw_output = $4, completed_at = NOW()
		WHERE id = $1 AND status = $5
	`, id, StatusCompleted, pq.Array(outputURLs), rawOutput, StatusProcessing)
	if err != nil {
		return fmt.Errorf("generation repository mark completed: %w", err)
	}
	return checkTransition(ctx, r.db, result, id)
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// failed is reachable from either non-terminal state: a record whose
	// processing transition itself broke must still end terminal
	result, err := r.db.ExecContext(ctx, `
		UPDATE generations
		SET status = $2, error = $3, completed_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
	`, id, StatusFailed, errMsg, StatusPending, StatusProcessing)
	if err != nil {
		return fmt.Errorf("generation repository mark failed: %w", err)
	}
	return checkTransition(ctx, r.db, result, id)
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var g Generation
	err := r.db.GetContext(ctx, &g, `SELECT `+generationColumns+` FROM generations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGenerationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("generation repository get: %w", err)
	}
	return &g, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Generation, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM generations WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("generation repository count: %w", err)
	}

	generations := []*Generation{}
	err := r.db.SelectContext(ctx, &generations, `
		SELECT `+generationColumns+`
		FROM generations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("generation repository list: %w", err)
	}

	return generations, total, nil
}

func (r *repository) ListByPipelineRun(ctx context.Context, runID uuid.UUID) ([]*Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	generations := []*Generation{}
	err := r.db.SelectContext(ctx, &generations, `
		SELECT `+generationColumns+`
		FROM generations
		WHERE pipeline_run_id = $1
		ORDER BY created_at
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("generation repository list by run: %w", err)
	}
	return generations, nil
}

// ListThumbnailCandidates returns completed generations that still need a
// gallery thumbnail. Excluded ids never occupy batch slots, so rows the
// worker has given up on cannot starve newer candidates.
func (r *repository) ListThumbnailCandidates(ctx context.Context, limit int, exclude []uuid.UUID) ([]*Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	excluded := make([]string, 0, len(exclude))
	for _, id := range exclude {
		excluded = append(excluded, id.String())
	}

	generations := []*Generation{}
	err := r.db.SelectContext(ctx, &generations, `
		SELECT `+generationColumns+`
		FROM generations
		WHERE status = $1 AND thumb_key IS NULL AND array_length(output_urls, 1) > 0
		  AND NOT (id = ANY($2::uuid[]))
		ORDER BY completed_at
		LIMIT $3
	`, StatusCompleted, pq.Array(excluded), limit)
	if err != nil {
		return nil, fmt.Errorf("generation repository thumbnail candidates: %w", err)
	}
	return generations, nil
}

func (r *repository) SetThumbnail(ctx context.Context, id uuid.UUID, thumbKey string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `UPDATE generations SET thumb_key = $2 WHERE id = $1`, id, thumbKey)
	if err != nil {
		return fmt.Errorf("generation repository set thumbnail: %w", err)
	}
	return nil
}

func checkTransition(ctx context.Context, db *sqlx.DB, result sql.Result, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("generation repository rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM generations WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("generation repository transition check: %w", err)
	}
	if !exists {
		return ErrGenerationNotFound
	}
	return ErrInvalidTransition
}
