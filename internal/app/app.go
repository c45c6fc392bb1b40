// Package app wires configuration into the services shared by the daemon and
// the batch CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-redis/redis/v8"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/export"
	"github.com/joseph-ayodele/vitals-tracker/internal/imaging"
	"github.com/joseph-ayodele/vitals-tracker/internal/llm"
	"github.com/joseph-ayodele/vitals-tracker/internal/llm/gemini"
	"github.com/joseph-ayodele/vitals-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
	"github.com/joseph-ayodele/vitals-tracker/internal/profiles"
	"github.com/joseph-ayodele/vitals-tracker/internal/readings"
	"github.com/joseph-ayodele/vitals-tracker/internal/repository"
	"github.com/joseph-ayodele/vitals-tracker/internal/review"
	"github.com/joseph-ayodele/vitals-tracker/internal/server"
	"github.com/joseph-ayodele/vitals-tracker/internal/storage"
)

// App holds the wired services. Close releases everything Build opened.
type App struct {
	DB         *entsql.Driver
	Recognizer llm.Recognizer
	Profiles   *profiles.Service
	Readings   *readings.Service
	Extractor  *pipeline.Extractor
	Gate       *review.Gate
	Export     *export.Service

	closers []func()
}

// Options override parts of the wiring, mainly for tests.
type Options struct {
	// Recognizer replaces the configured backend when set.
	Recognizer llm.Recognizer
	// Runner replaces the external HEIC converter runner when set.
	Runner imaging.Runner
	// Offline skips the recognition backend; Extractor stays nil.
	Offline bool
}

func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	drv, closeDB, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.DB = drv
	a.closers = append(a.closers, closeDB)

	store, err := storage.NewLocalStore(cfg.Storage.UploadDir, logger)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	rec := opts.Recognizer
	if rec == nil && !opts.Offline {
		rec, err = NewRecognizer(ctx, cfg.Recognition, logger)
		if err != nil {
			return nil, err
		}
		if c, isCloser := rec.(interface{ Close() error }); isCloser {
			a.closers = append(a.closers, func() { _ = c.Close() })
		}
	}
	a.Recognizer = rec

	drafts, closeDrafts, err := newDraftStore(ctx, cfg.Review, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeDrafts)

	profileRepo := repository.NewProfileRepository(drv, logger)
	jobRepo := repository.NewExtractionJobRepository(drv, logger)
	imageRepo := repository.NewSourceImageRepository(drv, logger)
	readingRepo := repository.NewReadingRepository(drv, logger)

	normalizer := imaging.NewNormalizer(imaging.Config{
		HeicConverter: cfg.Imaging.HeicConverter,
		CacheDir:      filepath.Join(store.Dir(), ".heic-cache"),
	}, opts.Runner, logger)

	a.Profiles = profiles.NewService(profileRepo, logger)
	a.Readings = readings.NewService(readingRepo, imageRepo, store, logger)
	if rec != nil {
		a.Extractor = pipeline.NewExtractor(logger, normalizer, store, rec, jobRepo, imageRepo)
	}
	a.Gate = review.NewGate(logger, drafts, readingRepo)
	a.Export = export.NewService(a.Readings, logger)

	ok = true
	return a, nil
}

// Close runs the closers in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewRecognizer builds the configured recognition backend.
func NewRecognizer(ctx context.Context, cfg common.RecognitionConfig, logger *slog.Logger) (llm.Recognizer, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case "gemini", "":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Gemini.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("recognizer: %w", err)
		}
		return c, nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown recognizer %q", cfg.Provider), common.ErrInvalidInput)
	}
}

// newDraftStore uses Redis when an address is configured, process memory
// otherwise.
func newDraftStore(ctx context.Context, cfg common.ReviewConfig, logger *slog.Logger) (review.DraftStore, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("review drafts kept in memory", "ttl", cfg.DraftTTL.String())
		return review.NewMemoryStore(cfg.DraftTTL), func() {}, nil
	}
	client := review.NewRedisClient(cfg)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("review drafts kept in redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", cfg.DraftTTL.String())
	return review.NewRedisStore(client, cfg.DraftTTL), func() { closeRedis(client, logger) }, nil
}

func closeRedis(c *redis.Client, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close redis client", "error", err)
	}
}
