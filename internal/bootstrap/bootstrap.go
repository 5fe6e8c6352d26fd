package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/invoice-pipeline/internal/config"
	"github.com/kirillkom/invoice-pipeline/internal/core/ports"
	"github.com/kirillkom/invoice-pipeline/internal/core/usecase"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/extraction"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/queue/nats"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/recognizer"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/recognizer/localpdf"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/recognizer/veryfi"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/resilience"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/respcache"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/validate"
)

type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	Repo       ports.InvoiceRepository
	Recognizer *recognizer.Service

	IngestUC  ports.InvoiceIngestor
	ProcessUC ports.InvoiceProcessor
	ReadUC    ports.InvoiceReader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewInvoiceRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		RetryBaseBackoff: time.Duration(cfg.RetryBaseBackoff) * time.Millisecond,
		RetryMaxBackoff:  time.Duration(cfg.RetryMaxBackoff) * time.Millisecond,

		BreakerEnabled:          true,
		BreakerFailureThreshold: uint32(cfg.BreakerThreshold),
		BreakerResetTimeout:     time.Duration(cfg.BreakerResetSecs) * time.Second,
	})

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	raw, classifier := newRawProvider(cfg)
	cache := respcache.New(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	cache.StartSweeper(ctx, 5*time.Minute)
	recognizerSvc := recognizer.NewService(raw, cache, executor, classifier)

	validator := validate.NewValidator(validate.Config{
		MinTextLength:        cfg.MinOCRLength,
		RequiredKeywordCount: cfg.RequiredKeywordCount,
		MinPricePatterns:     cfg.MinPricePatterns,
	})
	extractor := extraction.NewHybrid()

	ingestUC := usecase.NewIngestInvoiceUseCase(repo, storage, queue)
	processUC := usecase.NewProcessInvoiceUseCase(repo, storage, recognizerSvc, validator, extractor)
	readUC := usecase.NewReadInvoiceUseCase(repo)

	return &App{
		Config:     cfg,
		Queue:      queue,
		Repo:       repo,
		Recognizer: recognizerSvc,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		ReadUC:    readUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// newRawProvider selects the recognition backend. The HTTP provider carries
// the transient/permanent error classifier; the offline PDF reader never
// fails transiently, so its errors bypass retry and breaker accounting.
func newRawProvider(cfg config.Config) (ports.RecognitionProvider, resilience.ErrorClassifier) {
	if cfg.ProviderMode == "localpdf" {
		return localpdf.New(), func(error) resilience.ErrorClassification {
			return resilience.ErrorClassification{}
		}
	}

	client := veryfi.New(
		cfg.ProviderURL,
		cfg.ProviderClientID,
		cfg.ProviderUsername,
		cfg.ProviderAPIKey,
		time.Duration(cfg.ProviderTimeout)*time.Second,
	)
	return client, veryfi.ClassifyError
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
