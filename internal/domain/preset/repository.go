package preset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository defines catalog data access
type Repository interface {
	CreatePreset(ctx context.Context, p *Preset) error
	GetPreset(ctx context.Context, id string) (*Preset, error)
	ListPresets(ctx context.Context, publicOnly bool) ([]*Preset, error)
	UpdatePreset(ctx context.Context, p *Preset) error
	DeletePreset(ctx context.Context, id string) error

	CreatePipeline(ctx context.Context, pl *Pipeline) error
	GetPipeline(ctx context.Context, id string) (*Pipeline, error)
	ListPipelines(ctx context.Context, publicOnly bool) ([]*Pipeline, error)
	UpdatePipeline(ctx context.Context, pl *Pipeline) error
	DeletePipeline(ctx context.Context, id string) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates preset repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const presetColumns = `id, name, description, model_id, input_template, credit_cost,
	image_before, image_after, is_public, created_at, updated_at`

func (r *repository) CreatePreset(ctx context.Context, p *Preset) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO presets (id, name, description, model_id, input_template, credit_cost,
			image_before, image_after, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.ModelID, p.InputTemplate, p.CreditCost,
		p.ImageBefore, p.ImageAfter, p.IsPublic,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("preset repository create: %w", err)
	}
	return nil
}

func (r *repository) GetPreset(ctx context.Context, id string) (*Preset, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Preset
	err := r.db.GetContext(ctx, &p, `SELECT `+presetColumns+` FROM presets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPresetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("preset repository get: %w", err)
	}
	return &p, nil
}

func (r *repository) ListPresets(ctx context.Context, publicOnly bool) ([]*Preset, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + presetColumns + ` FROM presets`
	if publicOnly {
		query += ` WHERE is_public = TRUE`
	}
	query += ` ORDER BY name`

	presets := []*Preset{}
	if err := r.db.SelectContext(ctx, &presets, query); err != nil {
		return nil, fmt.Errorf("preset repository list: %w", err)
	}
	return presets, nil
}

func (r *repository) UpdatePreset(ctx context.Context, p *Preset) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE presets
		SET name = $2, description = $3, model_id = $4, input_template = $5,
			credit_cost = $6, image_before = $7, image_after = $8, is_public = $9,
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.ModelID, p.InputTemplate, p.CreditCost,
		p.ImageBefore, p.ImageAfter, p.IsPublic,
	)
	if err != nil {
		return fmt.Errorf("preset repository update: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrPresetNotFound
	}
	return nil
}

func (r *repository) DeletePreset(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM presets WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrPresetInUse
		}
		return fmt.Errorf("preset repository delete: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrPresetNotFound
	}
	return nil
}

func (r *repository) CreatePipeline(ctx context.Context, pl *Pipeline) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("preset repository begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pipelines (id, name, description, is_public)
		VALUES ($1, $2, $3, $4)
	`, pl.ID, pl.Name, pl.Description, pl.IsPublic)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("preset repository create pipeline: %w", err)
	}

	if err := insertSteps(ctx, tx, pl.ID, pl.Steps); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("preset repository commit pipeline: %w", err)
	}
	return nil
}

func (r *repository) GetPipeline(ctx context.Context, id string) (*Pipeline, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var pl Pipeline
	err := r.db.GetContext(ctx, &pl, `
		SELECT id, name, description, is_public, created_at, updated_at
		FROM pipelines WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPipelineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("preset repository get pipeline: %w", err)
	}

	if err := r.loadSteps(ctx, &pl); err != nil {
		return nil, err
	}
	return &pl, nil
}

func (r *repository) ListPipelines(ctx context.Context, publicOnly bool) ([]*Pipeline, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT id, name, description, is_public, created_at, updated_at FROM pipelines`
	if publicOnly {
		query += ` WHERE is_public = TRUE`
	}
	query += ` ORDER BY name`

	pipelines := []*Pipeline{}
	if err := r.db.SelectContext(ctx, &pipelines, query); err != nil {
		return nil, fmt.Errorf("preset repository list pipelines: %w", err)
	}

	for _, pl := range pipelines {
		if err := r.loadSteps(ctx, pl); err != nil {
			return nil, err
		}
	}
	return pipelines, nil
}

func (r *repository) UpdatePipeline(ctx context.Context, pl *Pipeline) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("preset repository begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE pipelines
		SET name = $2, description = $3, is_public = $4, updated_at = NOW()
		WHERE id = $1
	`, pl.ID, pl.Name, pl.Description, pl.IsPublic)
	if err != nil {
		return fmt.Errorf("preset repository update pipeline: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrPipelineNotFound
	}

	// steps are replaced wholesale
	if _, err := tx.ExecContext(ctx, `DELETE FROM pipeline_steps WHERE pipeline_id = $1`, pl.ID); err != nil {
		return fmt.Errorf("preset repository clear steps: %w", err)
	}
	if err := insertSteps(ctx, tx, pl.ID, pl.Steps); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("preset repository commit pipeline: %w", err)
	}
	return nil
}

func (r *repository) DeletePipeline(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM pipelines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("preset repository delete pipeline: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrPipelineNotFound
	}
	return nil
}

func (r *repository) loadSteps(ctx context.Context, pl *Pipeline) error {
	steps := []Step{}
	err := r.db.SelectContext(ctx, &steps, `
		SELECT pipeline_id, position, action_name, preset_id
		FROM pipeline_steps
		WHERE pipeline_id = $1
		ORDER BY position
	`, pl.ID)
	if err != nil {
		return fmt.Errorf("preset repository load steps: %w", err)
	}
	pl.Steps = steps
	return nil
}

func insertSteps(ctx context.Context, tx *sqlx.Tx, pipelineID string, steps []Step) error {
	for i, step := range steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pipeline_steps (pipeline_id, position, action_name, preset_id)
			VALUES ($1, $2, $3, $4)
		`, pipelineID, i+1, step.ActionName, step.PresetID)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23503" {
				return fmt.Errorf("%w: %s", ErrPresetNotFound, step.PresetID)
			}
			return fmt.Errorf("preset repository insert step: %w", err)
		}
	}
	return nil
}
