package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	"github.com/alejandroruanova/feed-ingestion-service/internal/core/services/upsert"
	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/parsers"
	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/storage"
	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

// Service runs one file through parse and upsert
type Service struct {
	config   Config
	parsers  ParserResolver
	store    upsert.Store
	writer   upsert.Writer
	runs     RunRecorder
	lock     RunLocker
	archiver Archiver
	logger   *slog.Logger
}

// Option configures optional collaborators of the Service
type Option func(*Service)

// WithRunRecorder records every run in history
func WithRunRecorder(runs RunRecorder) Option {
	return func(s *Service) { s.runs = runs }
}

// WithRunLock refuses concurrent ingestions into the same collection
func WithRunLock(lock RunLocker) Option {
	return func(s *Service) { s.lock = lock }
}

// WithArchiver archives the input file after a successful run
func WithArchiver(archiver Archiver) Option {
	return func(s *Service) { s.archiver = archiver }
}

// NewService creates a new ingestion service
func NewService(config Config, resolver ParserResolver, store upsert.Store, writer upsert.Writer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		config:  config,
		parsers: resolver,
		store:   store,
		writer:  writer,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest parses the file at path and upserts its records into the
// collection of its format family. An unsupported extension fails before
// the file is opened; structural errors fail before the store is touched.
// On a store failure the returned summary holds the completed counts.
func (s *Service) Ingest(ctx context.Context, path string) (*Summary, error) {
	startTime := time.Now()

	parser, err := s.parsers.GetParserForFile(path)
	if err != nil {
		return nil, err
	}

	file, err := storage.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}

	family := parser.Family()
	summary := &Summary{
		RunID:      uuid.NewString(),
		FileName:   file.Name,
		FilePath:   path,
		FileHash:   file.Hash,
		Family:     family,
		Database:   s.config.DatabaseName,
		Collection: s.config.CollectionFor(family),
	}

	logger := s.logger.With(
		slog.String("run_id", summary.RunID),
		slog.String("file", summary.FileName),
		slog.String("collection", summary.Collection))

	run := s.startRun(ctx, logger, summary)

	err = s.ingest(ctx, logger, parser, summary)
	summary.Duration = time.Since(startTime)

	s.finishRun(ctx, logger, run, summary, err)

	if err != nil {
		logger.Error("ingestion failed", slog.Any("error", err))
		return summary, err
	}

	logger.Info("ingestion completed",
		slog.Int("parsed", summary.Parsed),
		slog.Int("inserted", summary.Inserted),
		slog.Int64("duplicates_removed", summary.DuplicatesRemoved),
		slog.Duration("duration", summary.Duration))

	return summary, nil
}

func (s *Service) ingest(ctx context.Context, logger *slog.Logger, parser parsers.FileParser, summary *Summary) error {
	result, err := parser.Parse(ctx, summary.FilePath)
	if err != nil {
		return err
	}
	summary.Format = result.Format
	summary.Parsed = len(result.Records)
	summary.Skipped = result.SkippedRows

	logger.Info("file parsed",
		slog.String("format", result.Format),
		slog.Int("records", summary.Parsed),
		slog.Int("skipped_rows", summary.Skipped))

	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, summary.Collection)
		if err != nil {
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release run lock", slog.Any("error", err))
			}
		}()
	}

	collection, err := s.store.Collection(ctx, summary.Collection)
	if err != nil {
		return apperrors.StoreUnavailable(err, "open collection")
	}
	if err := collection.EnsureIndex(ctx, s.config.IDField); err != nil {
		return apperrors.StoreUnavailable(err, "create index")
	}

	upserted, err := s.writer.Upsert(ctx, collection, result.Records)
	if upserted != nil {
		summary.Inserted = upserted.Inserted
		summary.DuplicatesRemoved = upserted.DuplicatesRemoved
	}
	return err
}

func (s *Service) startRun(ctx context.Context, logger *slog.Logger, summary *Summary) *domain.IngestionRun {
	if s.runs == nil {
		return nil
	}

	if previous, err := s.runs.CountByFileHash(ctx, summary.FileHash); err == nil && previous > 0 {
		logger.Info("identical file content was ingested before",
			slog.String("file_hash", summary.FileHash),
			slog.Int64("previous_runs", previous))
	}

	run := &domain.IngestionRun{
		ID:         uuid.MustParse(summary.RunID),
		FileName:   summary.FileName,
		FilePath:   summary.FilePath,
		FileHash:   summary.FileHash,
		Family:     string(summary.Family),
		Collection: summary.Collection,
		Status:     domain.RunStatusRunning,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		logger.Warn("failed to record run start", slog.Any("error", err))
		return nil
	}
	return run
}

// finishRun updates history, the last-run cache and the archive. None of
// them can fail the ingestion.
func (s *Service) finishRun(ctx context.Context, logger *slog.Logger, run *domain.IngestionRun, summary *Summary, runErr error) {
	ctx = context.WithoutCancel(ctx)

	if run != nil {
		run.ParsedRecords = summary.Parsed
		run.SkippedRows = summary.Skipped
		run.InsertedRecords = summary.Inserted
		run.DuplicatesRemoved = int(summary.DuplicatesRemoved)
		run.Complete(runErr)
		if err := s.runs.Update(ctx, run); err != nil {
			logger.Warn("failed to record run outcome", slog.Any("error", err))
		}
	}

	if runErr != nil {
		return
	}

	if s.lock != nil {
		if err := s.lock.RecordLastRun(ctx, summary.Collection, summary.cacheFields()); err != nil {
			logger.Warn("failed to cache last run", slog.Any("error", err))
		}
	}

	if s.archiver != nil {
		if _, err := s.archiver.Archive(ctx, summary.RunID, summary.FilePath); err != nil {
			logger.Warn("failed to archive input file", slog.Any("error", err))
		}
	}
}

// Collections returns the collection names of both families
func (s *Service) Collections() []string {
	return []string{s.config.CSVCollection, s.config.XMLCollection}
}
