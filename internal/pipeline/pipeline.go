// Package pipeline executes a full fetch run: search, normalize, persist to
// each configured sink, then announce the results.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contractwatch/contract-fetcher/internal/contracts"
	"github.com/contractwatch/contract-fetcher/internal/metrics"
	"github.com/contractwatch/contract-fetcher/internal/notify"
	"github.com/contractwatch/contract-fetcher/internal/publisher"
	"github.com/contractwatch/contract-fetcher/internal/sam"
	"github.com/contractwatch/contract-fetcher/internal/storage"
)

// Fetcher retrieves raw notices for a date range across all configured
// organization codes.
type Fetcher interface {
	Fetch(ctx context.Context, requested contracts.DateRange) ([]sam.RawOpportunity, contracts.DateRange, error)
}

// LocalStore writes the output file to the local filesystem.
type LocalStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
	Path(name string) string
}

// RecordStore persists normalized records to the warehouse.
type RecordStore interface {
	InsertRecords(ctx context.Context, runID string, records []contracts.Record) error
}

// Notifier delivers the post-run report.
type Notifier interface {
	Configured() bool
	Send(ctx context.Context, report notify.Report) error
}

// Clock abstracts time for deterministic filenames and durations in tests.
type Clock interface {
	Now() time.Time
}

// Config holds the pipeline knobs that do not belong to any single sink.
type Config struct {
	StoragePrefix     string
	RemoveAfterUpload bool
}

// RunSummary reports what a single run did.
type RunSummary struct {
	RunID     string
	DateRange contracts.DateRange
	Fetched   int
	LocalPath string
	BlobURI   string
	Inserted  int
	EventID   string
	Notified  bool
	Duration  time.Duration
}

// Pipeline wires the fetcher to the sinks. Optional sinks may be nil.
type Pipeline struct {
	fetcher   Fetcher
	local     LocalStore
	remote    storage.BlobStore
	warehouse RecordStore
	events    publisher.Publisher
	notifier  Notifier
	clock     Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Pipeline. The fetcher, local store, and clock are
// required; every other sink is optional.
func New(
	fetcher Fetcher,
	local LocalStore,
	remote storage.BlobStore,
	warehouse RecordStore,
	events publisher.Publisher,
	notifier Notifier,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("pipeline: fetcher is required")
	}
	if local == nil {
		return nil, fmt.Errorf("pipeline: local store is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("pipeline: clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:   fetcher,
		local:     local,
		remote:    remote,
		warehouse: warehouse,
		events:    events,
		notifier:  notifier,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Run executes one end-to-end fetch. Failure to fetch or to write the local
// output file fails the run; every other sink logs a warning and the run
// continues, so one broken integration never drops the day's data.
func (p *Pipeline) Run(ctx context.Context, requested contracts.DateRange) (RunSummary, error) {
	start := p.clock.Now()
	summary := RunSummary{RunID: uuid.NewString()}
	logger := p.logger.With(zap.String("run_id", summary.RunID))

	raw, dateRange, err := p.fetcher.Fetch(ctx, requested)
	if err != nil {
		metrics.ObserveRun("error", p.clock.Now().Sub(start))
		return summary, fmt.Errorf("fetching notices: %w", err)
	}
	summary.DateRange = dateRange
	summary.Fetched = len(raw)

	records := contracts.NormalizeAll(raw)

	if len(records) == 0 {
		logger.Info("no contracts found, skipping sinks",
			zap.String("posted_from", dateRange.PostedFrom),
			zap.String("posted_to", dateRange.PostedTo),
		)
		metrics.ObserveSinkWrite("local", "skipped")
		metrics.ObserveSinkWrite("gcs", "skipped")
		metrics.ObserveSinkWrite("warehouse", "skipped")
		p.publishEvent(ctx, logger, &summary, "")
		p.sendReport(ctx, logger, &summary, records, "")
		summary.Duration = p.clock.Now().Sub(start)
		metrics.ObserveRun("ok", summary.Duration)
		return summary, nil
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		metrics.ObserveRun("error", p.clock.Now().Sub(start))
		return summary, fmt.Errorf("encoding records: %w", err)
	}

	filename := contracts.OutputFilename(dateRange, p.clock.Now())

	localURI, err := p.local.PutObject(ctx, filename, "application/json", data)
	if err != nil {
		metrics.ObserveSinkWrite("local", "error")
		metrics.ObserveRun("error", p.clock.Now().Sub(start))
		return summary, fmt.Errorf("writing local output: %w", err)
	}
	metrics.ObserveSinkWrite("local", "ok")
	summary.LocalPath = localURI
	logger.Info("wrote local output", zap.String("path", localURI), zap.Int("records", len(records)))

	if p.remote != nil {
		objectPath := filename
		if p.cfg.StoragePrefix != "" {
			objectPath = p.cfg.StoragePrefix + "/" + filename
		}
		uri, err := p.remote.PutObject(ctx, objectPath, "application/json", data)
		if err != nil {
			metrics.ObserveSinkWrite("gcs", "error")
			logger.Warn("object storage upload failed", zap.Error(err))
		} else {
			metrics.ObserveSinkWrite("gcs", "ok")
			summary.BlobURI = uri
			logger.Info("uploaded output file", zap.String("uri", uri))
			if p.cfg.RemoveAfterUpload {
				if err := os.Remove(p.local.Path(filename)); err != nil {
					logger.Warn("removing local file after upload failed", zap.Error(err))
				}
			}
		}
	} else {
		metrics.ObserveSinkWrite("gcs", "skipped")
	}

	if p.warehouse != nil {
		if err := p.warehouse.InsertRecords(ctx, summary.RunID, records); err != nil {
			metrics.ObserveSinkWrite("warehouse", "error")
			logger.Warn("warehouse insert failed", zap.Error(err))
		} else {
			metrics.ObserveSinkWrite("warehouse", "ok")
			summary.Inserted = len(records)
		}
	} else {
		metrics.ObserveSinkWrite("warehouse", "skipped")
	}

	fileLocation := summary.BlobURI
	if fileLocation == "" {
		fileLocation = summary.LocalPath
	}
	p.publishEvent(ctx, logger, &summary, fileLocation)
	p.sendReport(ctx, logger, &summary, records, fileLocation)

	summary.Duration = p.clock.Now().Sub(start)
	metrics.ObserveRun("ok", summary.Duration)
	logger.Info("run complete",
		zap.String("posted_from", dateRange.PostedFrom),
		zap.String("posted_to", dateRange.PostedTo),
		zap.Int("fetched", summary.Fetched),
		zap.Int("inserted", summary.Inserted),
		zap.String("file_location", fileLocation),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (p *Pipeline) publishEvent(ctx context.Context, logger *zap.Logger, summary *RunSummary, fileLocation string) {
	if p.events == nil {
		return
	}
	event := publisher.RunEvent{
		RunID:        summary.RunID,
		PostedFrom:   summary.DateRange.PostedFrom,
		PostedTo:     summary.DateRange.PostedTo,
		Fetched:      summary.Fetched,
		FileLocation: fileLocation,
		CompletedAt:  p.clock.Now().Format(time.RFC3339),
	}
	id, err := p.events.Publish(ctx, event)
	if err != nil {
		logger.Warn("publishing run event failed", zap.Error(err))
		return
	}
	summary.EventID = id
}

func (p *Pipeline) sendReport(ctx context.Context, logger *zap.Logger, summary *RunSummary, records []contracts.Record, fileLocation string) {
	if p.notifier == nil || !p.notifier.Configured() {
		return
	}
	report := notify.Report{
		Records:      records,
		DateRange:    summary.DateRange,
		FileLocation: fileLocation,
	}
	if err := p.notifier.Send(ctx, report); err != nil {
		logger.Warn("sending report email failed", zap.Error(err))
		return
	}
	summary.Notified = true
}
