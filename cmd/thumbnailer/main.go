package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pixelmint/pixelmint-api/internal/config"
	"github.com/pixelmint/pixelmint-api/internal/domain/generation"
	"github.com/pixelmint/pixelmint-api/internal/pkg/database"
	"github.com/pixelmint/pixelmint-api/internal/pkg/imaging"
	"github.com/pixelmint/pixelmint-api/internal/pkg/storage"
)

const (
	pollInterval  = 10 * time.Second
	batchSize     = 10
	maxAttempts   = 3
	thumbMaxSide  = 512
	fetchTimeout  = 30 * time.Second
	maxSourceSize = 50 << 20
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().Msg("Starting thumbnailer")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	store := newStorage(cfg)
	repo := generation.NewRepository(db)
	processor := imaging.NewProcessor(imaging.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	w := &worker{
		repo:      repo,
		store:     store,
		processor: processor,
		http:      &http.Client{Timeout: fetchTimeout},
		attempts:  make(map[uuid.UUID]int),
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("thumbnailer stopped")
			return
		case <-ticker.C:
		}

		if err := w.runBatch(ctx); err != nil {
			log.Error().Err(err).Msg("DB error while listing candidates")
		}
	}
}

type worker struct {
	repo      generation.Repository
	store     storage.Storage
	processor *imaging.Processor
	http      *http.Client

	// attempts counts failures per generation so a broken source image
	// is not refetched forever. Reset on restart, which is acceptable
	// for a single worker.
	attempts map[uuid.UUID]int
}

// exhausted lists generations past the attempt cap. They are excluded in
// the candidate query itself so they cannot hold batch slots and starve
// newer rows.
func (w *worker) exhausted() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(w.attempts))
	for id, n := range w.attempts {
		if n >= maxAttempts {
			ids = append(ids, id)
		}
	}
	return ids
}

func (w *worker) runBatch(ctx context.Context) error {
	candidates, err := w.repo.ListThumbnailCandidates(ctx, batchSize, w.exhausted())
	if err != nil {
		return err
	}

	for _, g := range candidates {
		if ctx.Err() != nil {
			return nil
		}

		start := time.Now()
		key, err := w.processOne(ctx, g)
		if err != nil {
			w.attempts[g.ID]++
			log.Error().
				Err(err).
				Str("generation_id", g.ID.String()).
				Int("attempt", w.attempts[g.ID]).
				Msg("Thumbnail failed")
			continue
		}

		if err := w.repo.SetThumbnail(ctx, g.ID, key); err != nil {
			log.Error().Err(err).Str("generation_id", g.ID.String()).Msg("Failed to record thumbnail")
			continue
		}
		delete(w.attempts, g.ID)

		log.Info().
			Str("generation_id", g.ID.String()).
			Str("thumb_key", key).
			Dur("took", time.Since(start)).
			Msg("Thumbnail stored")
	}

	return nil
}

func (w *worker) processOne(ctx context.Context, g *generation.Generation) (string, error) {
	sourceURL := g.OutputURL()
	if sourceURL == "" {
		return "", fmt.Errorf("generation %s has no output", g.ID)
	}

	data, err := w.fetch(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}

	thumb, err := w.processor.Thumbnail(data, thumbMaxSide)
	if err != nil {
		return "", fmt.Errorf("render thumbnail: %w", err)
	}

	key := fmt.Sprintf("thumbs/%s.jpg", g.ID)
	if err := w.store.Put(ctx, key, bytes.NewReader(thumb), "image/jpeg"); err != nil {
		return "", fmt.Errorf("upload thumbnail: %w", err)
	}

	return key, nil
}

func (w *worker) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxSourceSize))
}

func newStorage(cfg *config.Config) storage.Storage {
	if cfg.R2AccountID != "" {
		r2, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create R2 storage")
		}
		return r2
	}

	local, err := storage.NewLocalStorage("./data/uploads", "http://localhost:"+cfg.Port+"/files")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create local storage")
	}
	log.Warn().Msg("R2 not configured, using local storage")
	return local
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
