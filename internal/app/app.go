// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/contractwatch/contract-fetcher/internal/clock/system"
	"github.com/contractwatch/contract-fetcher/internal/config"
	"github.com/contractwatch/contract-fetcher/internal/contracts"
	"github.com/contractwatch/contract-fetcher/internal/logging"
	"github.com/contractwatch/contract-fetcher/internal/metrics"
	"github.com/contractwatch/contract-fetcher/internal/notify"
	"github.com/contractwatch/contract-fetcher/internal/pipeline"
	"github.com/contractwatch/contract-fetcher/internal/publisher"
	gcppublisher "github.com/contractwatch/contract-fetcher/internal/publisher/pubsub"
	"github.com/contractwatch/contract-fetcher/internal/sam"
	"github.com/contractwatch/contract-fetcher/internal/storage"
	"github.com/contractwatch/contract-fetcher/internal/storage/gcs"
	"github.com/contractwatch/contract-fetcher/internal/storage/local"
	"github.com/contractwatch/contract-fetcher/internal/warehouse"
)

// App holds all the shared, long-lived services for the application. It is
// initialized once at startup and passed to the commands that need it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	pipeline  *pipeline.Pipeline
	gcsStore  *gcs.BlobStore
	warehouse *warehouse.Store
	events    *gcppublisher.Publisher
}

// New builds every service the fetcher needs from config. It fails fast when
// any enabled integration cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	metrics.Init()

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger.Info("initializing application services")

	client := newSearchClient(cfg.SAM)

	fetcher, err := contracts.NewFetcher(client, system.Clock{}, cfg.SAM.OrgCodes, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing fetcher: %w", err)
	}

	localStore, err := local.New(local.Config{BaseDir: cfg.Output.Dir})
	if err != nil {
		return nil, fmt.Errorf("initializing local output store: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}

	var remote storage.BlobStore
	if cfg.Storage.Enabled {
		logger.Info("using GCS object storage", zap.String("bucket", cfg.Storage.Bucket))
		a.gcsStore, err = gcs.New(ctx, gcs.Config{Bucket: cfg.Storage.Bucket})
		if err != nil {
			return nil, fmt.Errorf("initializing object storage: %w", err)
		}
		remote = a.gcsStore
	} else {
		logger.Info("object storage disabled, keeping local copy only")
	}

	var records pipeline.RecordStore
	if cfg.Warehouse.Enabled {
		logger.Info("connecting to warehouse", zap.String("table", cfg.Warehouse.Table))
		a.warehouse, err = warehouse.New(ctx, warehouse.Config{DSN: cfg.Warehouse.DSN, Table: cfg.Warehouse.Table})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initializing warehouse: %w", err)
		}
		records = a.warehouse
	}

	var events publisher.Publisher
	if cfg.Events.Enabled {
		logger.Info("connecting to Pub/Sub", zap.String("topic", cfg.Events.TopicID))
		a.events, err = gcppublisher.New(ctx, gcppublisher.Config{
			ProjectID: cfg.Events.ProjectID,
			Topic:     cfg.Events.TopicID,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initializing run event publisher: %w", err)
		}
		events = a.events
	}

	notifier := notify.NewEmailNotifier(notify.Config{
		Enabled:       cfg.Email.Enabled,
		MailgunDomain: cfg.Email.MailgunDomain,
		MailgunAPIKey: cfg.Email.MailgunAPIKey,
		To:            cfg.Email.To,
	}, logger)

	a.pipeline, err = pipeline.New(
		fetcher,
		localStore,
		remote,
		records,
		events,
		notifier,
		system.Clock{},
		pipeline.Config{
			StoragePrefix:     cfg.Storage.Prefix,
			RemoveAfterUpload: cfg.Output.RemoveAfterUpload,
		},
		logger,
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing pipeline: %w", err)
	}

	logger.Info("application services initialized")
	return a, nil
}

func newSearchClient(cfg config.SAMConfig) *sam.Client {
	opts := []sam.Option{
		sam.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		sam.WithRetryConfig(sam.RetryConfig{
			MaxAttempts: cfg.MaxRetries + 1,
			BaseDelay:   time.Duration(cfg.BackoffInitialMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
		}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, sam.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Limit > 0 {
		opts = append(opts, sam.WithLimit(cfg.Limit))
	}
	if cfg.NoticeTypes != "" {
		opts = append(opts, sam.WithNoticeTypes(cfg.NoticeTypes))
	}
	return sam.NewClient(cfg.APIKey, opts...)
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Pipeline returns the configured fetch pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Close gracefully shuts down every service the container owns. It is called
// by a Cobra hook after the command finishes execution.
func (a *App) Close() {
	if a.gcsStore != nil {
		if err := a.gcsStore.Close(); err != nil {
			a.logger.Warn("error closing storage client", zap.Error(err))
		}
	}
	if a.warehouse != nil {
		a.warehouse.Close()
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Warn("error closing event publisher", zap.Error(err))
		}
	}
	// Best effort: syncing stderr sinks commonly fails on some platforms.
	_ = a.logger.Sync()
}
