package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/pixelmint/pixelmint-api/internal/pkg/imaging"
	"github.com/pixelmint/pixelmint-api/internal/pkg/storage"
)

// Result describes a stored upload
type Result struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int    `json:"size"`
}

// Service validates, re-encodes and stores source images. Everything is
// passed through the image processor so stored objects are always real
// images at bounded dimensions, whatever the client sent.
type Service struct {
	processor *imaging.Processor
	store     storage.Storage
}

// NewService creates upload service
func NewService(processor *imaging.Processor, store storage.Storage) *Service {
	return &Service{processor: processor, store: store}
}

// Store processes one uploaded file and writes it to object storage
func (s *Service) Store(ctx context.Context, userID uuid.UUID, filename string, size int64, reader io.Reader) (*Result, error) {
	if !imaging.ValidateSize(size, imaging.MaxFileSize) {
		return nil, ErrFileTooLarge
	}
	if !imaging.ValidateType(filename) {
		return nil, ErrUnsupportedType
	}

	processed, err := s.processor.Process(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}

	key := fmt.Sprintf("uploads/%s/%s%s", userID, uuid.New(), extensionFor(processed.ContentType))
	if err := s.store.Put(ctx, key, bytes.NewReader(processed.Data), processed.ContentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return &Result{
		Key:         key,
		URL:         s.store.GetURL(key),
		ContentType: processed.ContentType,
		Width:       processed.Width,
		Height:      processed.Height,
		Size:        len(processed.Data),
	}, nil
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	default:
		return ".jpg"
	}
}
