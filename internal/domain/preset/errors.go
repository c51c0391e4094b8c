package preset

import "errors"

var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrPresetNotFound   = errors.New("preset not found")
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrPresetInUse      = errors.New("preset is referenced by a pipeline")
	ErrDuplicateID      = errors.New("id already exists")
	ErrEmptyPipeline    = errors.New("pipeline has no steps")
)
