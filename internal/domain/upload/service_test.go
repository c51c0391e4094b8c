package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/pixelmint/pixelmint-api/internal/pkg/imaging"
	"github.com/pixelmint/pixelmint-api/internal/pkg/storage"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T) (*Service, storage.Storage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8080/files")
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	return NewService(imaging.NewProcessor(imaging.DefaultConfig()), store), store
}

func TestStore(t *testing.T) {
	svc, store := newTestService(t)
	data := pngBytes(t, 64, 48)

	result, err := svc.Store(context.Background(), uuid.New(), "photo.png", int64(len(data)), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if result.Width != 64 || result.Height != 48 {
		t.Errorf("expected 64x48, got %dx%d", result.Width, result.Height)
	}
	if !strings.HasPrefix(result.URL, "http://localhost:8080/files/") {
		t.Errorf("unexpected url %s", result.URL)
	}

	exists, err := store.Exists(context.Background(), result.Key)
	if err != nil {
		t.Fatalf("exists check failed: %v", err)
	}
	if !exists {
		t.Error("stored object missing")
	}
}

func TestStoreRejectsNonImagePayload(t *testing.T) {
	svc, _ := newTestService(t)
	data := []byte("#!/bin/sh\necho not an image\n")

	_, err := svc.Store(context.Background(), uuid.New(), "script.png", int64(len(data)), bytes.NewReader(data))
	if !errors.Is(err, ErrNotAnImage) {
		t.Fatalf("expected ErrNotAnImage, got %v", err)
	}
}

func TestStoreRejectsUnsupportedExtension(t *testing.T) {
	svc, _ := newTestService(t)
	data := pngBytes(t, 8, 8)

	_, err := svc.Store(context.Background(), uuid.New(), "archive.zip", int64(len(data)), bytes.NewReader(data))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestStoreRejectsOversizedFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Store(context.Background(), uuid.New(), "huge.png", imaging.MaxFileSize+1, bytes.NewReader(nil))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}
