package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pixelmint/pixelmint-api/internal/config"
	"github.com/pixelmint/pixelmint-api/internal/domain/admin"
	"github.com/pixelmint/pixelmint-api/internal/domain/auth"
	"github.com/pixelmint/pixelmint-api/internal/domain/billing"
	"github.com/pixelmint/pixelmint-api/internal/domain/credit"
	"github.com/pixelmint/pixelmint-api/internal/domain/generation"
	"github.com/pixelmint/pixelmint-api/internal/domain/preset"
	"github.com/pixelmint/pixelmint-api/internal/domain/upload"
	"github.com/pixelmint/pixelmint-api/internal/domain/user"
	"github.com/pixelmint/pixelmint-api/internal/middleware"
	"github.com/pixelmint/pixelmint-api/internal/pkg/database"
	"github.com/pixelmint/pixelmint-api/internal/pkg/falai"
	"github.com/pixelmint/pixelmint-api/internal/pkg/imaging"
	"github.com/pixelmint/pixelmint-api/internal/pkg/jwt"
	pkgresponse "github.com/pixelmint/pixelmint-api/internal/pkg/response"
	"github.com/pixelmint/pixelmint-api/internal/pkg/storage"
	"github.com/pixelmint/pixelmint-api/internal/pkg/stripe"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting PixelMint API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	store, localStoragePath := newStorage(cfg)

	falClient := falai.NewClient(cfg.FalAPIKey,
		falai.WithBaseURL(cfg.FalQueueBaseURL),
		falai.WithPollInterval(cfg.FalPollInterval),
		falai.WithTimeout(cfg.FalTimeout),
	)
	stripeClient := stripe.NewClient(cfg.StripeSecretKey)
	processor := imaging.NewProcessor(imaging.DefaultConfig())
	prober := imaging.NewHTTPProber()

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	creditRepo := credit.NewRepository(db)
	presetRepo := preset.NewRepository(db)
	generationRepo := generation.NewRepository(db)
	billingRepo := billing.NewRepository(db)

	// ---------- Services ----------
	authService := auth.NewService(userRepo, jwtService, redis)
	creditService := credit.NewService(creditRepo)
	presetService := preset.NewService(presetRepo)
	generationService := generation.NewService(generationRepo, creditService, presetService, falClient, prober)
	billingService := billing.NewService(billingRepo, stripeClient, redis,
		cfg.StripeWebhookSecret, cfg.StripeSuccessURL, cfg.StripeCancelURL)
	uploadService := upload.NewService(processor, store)

	// ---------- Handlers ----------
	authHandler := auth.NewHandler(authService)
	creditHandler := credit.NewHandler(creditService)
	presetHandler := preset.NewHandler(presetService)
	generationHandler := generation.NewHandler(generationService, thumbURLResolver(store))
	billingHandler := billing.NewHandler(billingService)
	uploadHandler := upload.NewHandler(uploadService)
	adminHandler := admin.NewHandler(userRepo, creditService)

	authMiddleware := middleware.Auth(jwtService)
	optionalAuth := middleware.OptionalAuth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes(authMiddleware))
		r.Mount("/credits", creditHandler.Routes(authMiddleware))
		r.Mount("/generations", generationHandler.Routes(authMiddleware))
		r.Mount("/presets", presetHandler.PresetRoutes(authMiddleware, optionalAuth))
		r.Mount("/pipelines", presetHandler.PipelineRoutes(authMiddleware, optionalAuth))
		r.Mount("/billing", billingHandler.Routes(authMiddleware))
		r.Mount("/uploads", uploadHandler.Routes(authMiddleware))
	})

	// Unauthenticated: Stripe signs the payload itself
	r.Post("/webhooks/stripe", billingHandler.Webhook)

	// Serve objects from disk when running without R2
	if localStoragePath != "" {
		fs := http.StripPrefix("/files/", http.FileServer(http.Dir(localStoragePath)))
		r.Get("/files/*", fs.ServeHTTP)
	}

	r.Mount("/api/admin", adminHandler.Routes(authMiddleware))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// generation responses are written only after inference returns,
		// so the write deadline must outlive the fal timeout
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// newStorage picks R2 when configured, local disk otherwise. The second
// return value is the local base path, empty when R2 is in use.
func newStorage(cfg *config.Config) (storage.Storage, string) {
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
		return r2, ""
	}

	basePath := "./data/uploads"
	local, err := storage.NewLocalStorage(basePath, "http://localhost:"+cfg.Port+"/files")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create local storage")
	}
	log.Warn().Msg("R2 not configured, using local storage")
	return local, basePath
}

func thumbURLResolver(store storage.Storage) generation.URLResolver {
	return func(key string) string {
		if key == "" {
			return ""
		}
		return store.GetURL(key)
	}
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
