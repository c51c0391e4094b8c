package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pixelmint/pixelmint-api/internal/domain/generation"
	"github.com/pixelmint/pixelmint-api/internal/pkg/imaging"
)

type fakeRepo struct {
	candidates  []*generation.Generation
	lastExclude []uuid.UUID
	thumbs      map[uuid.UUID]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{thumbs: map[uuid.UUID]string{}}
}

func (f *fakeRepo) ListThumbnailCandidates(ctx context.Context, limit int, exclude []uuid.UUID) ([]*generation.Generation, error) {
	f.lastExclude = exclude
	out := []*generation.Generation{}
	for _, g := range f.candidates {
		skip := false
		for _, id := range exclude {
			if g.ID == id {
				skip = true
			}
		}
		if !skip && f.thumbs[g.ID] == "" {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeRepo) SetThumbnail(ctx context.Context, id uuid.UUID, thumbKey string) error {
	f.thumbs[id] = thumbKey
	return nil
}

func (f *fakeRepo) Create(ctx context.Context, g *generation.Generation) error { return nil }
func (f *fakeRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error     { return nil }
func (f *fakeRepo) MarkCompleted(ctx context.Context, id uuid.UUID, outputURLs []string, rawOutput []byte) error {
	return nil
}
func (f *fakeRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error { return nil }
func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*generation.Generation, error) {
	return nil, generation.ErrGenerationNotFound
}
func (f *fakeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*generation.Generation, int, error) {
	return nil, 0, nil
}
func (f *fakeRepo) ListByPipelineRun(ctx context.Context, runID uuid.UUID) ([]*generation.Generation, error) {
	return nil, nil
}

type memStore struct {
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.objects[key])), nil
}

func (m *memStore) Delete(ctx context.Context, key string) error { return nil }

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStore) GetURL(key string) string { return "http://localhost:8080/files/" + key }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestWorker(repo *fakeRepo, store *memStore) *worker {
	return &worker{
		repo:      repo,
		store:     store,
		processor: imaging.NewProcessor(imaging.DefaultConfig()),
		http:      http.DefaultClient,
		attempts:  map[uuid.UUID]int{},
	}
}

func candidate(url string) *generation.Generation {
	return &generation.Generation{ID: uuid.New(), OutputURLs: pq.StringArray{url}}
}

func TestRunBatchStoresThumbnail(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes(t))
	}))
	defer src.Close()

	repo := newFakeRepo()
	store := newMemStore()
	g := candidate(src.URL + "/out.png")
	repo.candidates = []*generation.Generation{g}

	w := newTestWorker(repo, store)
	if err := w.runBatch(context.Background()); err != nil {
		t.Fatalf("runBatch failed: %v", err)
	}

	wantKey := "thumbs/" + g.ID.String() + ".jpg"
	if repo.thumbs[g.ID] != wantKey {
		t.Errorf("expected thumb key %q, got %q", wantKey, repo.thumbs[g.ID])
	}
	if len(store.objects[wantKey]) == 0 {
		t.Error("expected thumbnail bytes in storage")
	}
}

func TestRunBatchExcludesExhaustedCandidates(t *testing.T) {
	fetches := 0
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Write([]byte("not an image"))
	}))
	defer src.Close()

	repo := newFakeRepo()
	broken := candidate(src.URL + "/broken.png")
	repo.candidates = []*generation.Generation{broken}

	w := newTestWorker(repo, newMemStore())
	for i := 0; i < maxAttempts; i++ {
		if err := w.runBatch(context.Background()); err != nil {
			t.Fatalf("runBatch %d failed: %v", i, err)
		}
	}
	if fetches != maxAttempts {
		t.Fatalf("expected %d fetches, got %d", maxAttempts, fetches)
	}

	// past the attempt cap the row must leave the candidate query so it
	// cannot hold a batch slot
	if err := w.runBatch(context.Background()); err != nil {
		t.Fatalf("runBatch after exhaustion failed: %v", err)
	}
	if fetches != maxAttempts {
		t.Errorf("exhausted candidate was fetched again, %d fetches", fetches)
	}

	found := false
	for _, id := range repo.lastExclude {
		if id == broken.ID {
			found = true
		}
	}
	if !found {
		t.Error("exhausted id missing from the exclusion list")
	}
}
