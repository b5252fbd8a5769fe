package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Meirbek-dev/ai-reception/internal/config"
	"github.com/Meirbek-dev/ai-reception/internal/core/ports"
	"github.com/Meirbek-dev/ai-reception/internal/core/usecase"
	"github.com/Meirbek-dev/ai-reception/internal/infrastructure/cache"
	"github.com/Meirbek-dev/ai-reception/internal/infrastructure/classifier/keyword"
	"github.com/Meirbek-dev/ai-reception/internal/infrastructure/extractor/ocr"
	"github.com/Meirbek-dev/ai-reception/internal/infrastructure/queue/nats"
	"github.com/Meirbek-dev/ai-reception/internal/infrastructure/ratelimit"
	"github.com/Meirbek-dev/ai-reception/internal/infrastructure/repository/postgres"
	"github.com/Meirbek-dev/ai-reception/internal/infrastructure/resilience"
	"github.com/Meirbek-dev/ai-reception/internal/infrastructure/storage/localfs"
	"github.com/Meirbek-dev/ai-reception/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue   *nats.Queue
	Repo    ports.DocumentRepository
	Storage ports.ObjectStorage
	Cache   ports.ContentCache
	Limiter ports.AdmissionLimiter

	IngestUC *usecase.IngestUseCase
	ReviewUC *usecase.ReviewUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.UploadPath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	contentCache, err := cache.New(cfg.CachePath, time.Duration(cfg.CacheTTLDays)*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("init content cache: %w", err)
	}

	limiter := ratelimit.NewSlidingLimiter(cfg.RatePerWindow, time.Duration(cfg.RateWindowSeconds)*time.Second)

	keywords, err := config.LoadKeywords(cfg.KeywordsPath)
	if err != nil {
		return nil, fmt.Errorf("load keyword table: %w", err)
	}
	classifier := keyword.New(keywords, cfg.FuzzyMinScore)

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	pool := ocr.NewPool(cfg.OCRWorkers, ocr.NewTesseractFactory(cfg.OCRLanguages), logger)
	extractor := ocr.NewExtractor(pool, executor, ocr.Config{
		Timeout:       time.Duration(cfg.OCRTimeoutSeconds) * time.Second,
		MaxPages:      cfg.PDFMaxPages,
		PageParallel:  cfg.PDFParallelPages,
		MaxTextLength: cfg.MaxTextLength,
	}, logger)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	scorer := usecase.DefaultScorerConfig()
	scorer.Threshold = cfg.ConfidenceThreshold

	ingestUC := usecase.NewIngestUseCase(repo, storage, contentCache, extractor, classifier,
		limiter, queue, usecase.IngestConfig{
			MaxFileBytes:        cfg.MaxFileSize,
			StoredNameMaxProbes: cfg.StoredNameMaxProbes,
			Scorer:              scorer,
		}, logger)
	reviewUC := usecase.NewReviewUseCase(repo, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Queue:   queue,
		Repo:    repo,
		Storage: storage,
		Cache:   contentCache,
		Limiter: limiter,

		IngestUC: ingestUC,
		ReviewUC: reviewUC,

		closeFn: func() {
			queue.Close()
			pool.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
