package generation

import "errors"

var (
	ErrGenerationNotFound = errors.New("generation not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNoImageGenerated   = errors.New("no image generated - unexpected response structure")
	ErrImageProbeFailed   = errors.New("failed to read image dimensions")
)
