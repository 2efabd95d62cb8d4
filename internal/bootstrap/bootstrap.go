// Package bootstrap provides dependency initialization for the API server.
package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/vidforge/vidforge-api/internal/cache"
	"github.com/vidforge/vidforge-api/internal/config"
	"github.com/vidforge/vidforge-api/internal/freepik"
	"github.com/vidforge/vidforge-api/internal/media"
	"github.com/vidforge/vidforge-api/internal/ratelimit"
	"github.com/vidforge/vidforge-api/internal/storage"
	"github.com/vidforge/vidforge-api/internal/task"
	"github.com/vidforge/vidforge-api/migrations"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	TaskService    *task.Service
	WebhookLimiter *ratelimit.FixedWindowLimiter
	// DB is non-nil when the Postgres task store is configured; the
	// caller owns closing it on shutdown.
	DB *sql.DB
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize Freepik client
	clientOpts := []freepik.ClientOption{freepik.WithAPIKey(cfg.FreepikAPIKey)}
	if cfg.FreepikAPIURL != "" {
		clientOpts = append(clientOpts, freepik.WithBaseURL(cfg.FreepikAPIURL))
	}
	providerClient, err := freepik.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create Freepik client: %w", err)
	}

	// Initialize task repository
	repo, db, err := initRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize rehosting pipeline
	rehoster := media.NewHTTPRehoster(store, logger,
		media.WithDownloadTimeout(cfg.DownloadTimeout),
	)

	// Initialize status cache and webhook rate limiter
	statusCache := cache.New(cfg.StatusCacheTTL)
	limiter := ratelimit.NewFixedWindow(cfg.WebhookRateLimit, cfg.WebhookRateWindow)

	svc := task.NewService(
		repo,
		providerClient,
		rehoster,
		statusCache,
		cfg.WebhookURL,
		logger,
	)

	return &Dependencies{
		TaskService:    svc,
		WebhookLimiter: limiter,
		DB:             db,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.BlobStoreEnabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.BlobBucket,
			Region:          cfg.BlobRegion,
			Endpoint:        cfg.BlobEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			PublicBaseURL:   cfg.BlobPublicBaseURL,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create blob storage: %w", err)
		}
		logger.Info("blob storage configured",
			slog.String("bucket", cfg.BlobBucket),
			slog.String("endpoint", cfg.BlobEndpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// initRepository creates the task store: Postgres with migrations applied
// when DATABASE_URL is set, in-memory otherwise.
func initRepository(cfg *config.Config, logger *slog.Logger) (task.Repository, *sql.DB, error) {
	if !cfg.PostgresEnabled() {
		logger.Info("in-memory task store configured")
		return task.NewMemoryRepository(), nil, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	logger.Info("postgres task store configured")
	return task.NewPostgresRepository(db), db, nil
}
