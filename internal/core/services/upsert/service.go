package upsert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

// Service implements the Writer interface
type Service struct {
	config Config
	logger *slog.Logger
}

// NewService creates a new upsert service
func NewService(config Config, logger *slog.Logger) *Service {
	if config.IDField == "" {
		config.IDField = DefaultConfig().IDField
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config: config,
		logger: logger,
	}
}

// Upsert removes prior documents for each record's id, then inserts the
// whole batch in one call. It is not transactional: a failure part way
// leaves earlier deletes applied.
func (s *Service) Upsert(ctx context.Context, collection Collection, records []domain.Record) (*Result, error) {
	startTime := time.Now()
	result := &Result{}

	s.logger.Info("starting upsert",
		slog.String("collection", collection.Name()),
		slog.Int("record_count", len(records)),
		slog.String("id_field", s.config.IDField))

	if len(records) == 0 {
		return result, nil
	}

	for i, record := range records {
		if _, ok := record[s.config.IDField]; !ok {
			return result, apperrors.MalformedRecord(
				fmt.Sprintf("record %d has no %s field", i, s.config.IDField)).
				WithDetails("index", i)
		}
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		id := record[s.config.IDField]
		existing, err := collection.FindBy(ctx, s.config.IDField, id)
		if err != nil {
			return result, apperrors.StoreUnavailable(err, "find")
		}
		if len(existing) == 0 {
			continue
		}

		deleted, err := collection.DeleteBy(ctx, s.config.IDField, id)
		if err != nil {
			return result, apperrors.StoreUnavailable(err, "delete")
		}
		result.DuplicatesRemoved += deleted

		s.logger.Debug("replaced existing documents",
			slog.Any("id", id),
			slog.Int64("deleted", deleted))
	}

	ids, err := collection.InsertMany(ctx, records)
	if err != nil {
		return result, apperrors.StoreUnavailable(err, "insert")
	}
	result.Inserted = len(ids)
	result.InsertedIDs = ids

	s.logger.Info("upsert completed",
		slog.String("collection", collection.Name()),
		slog.Int("inserted", result.Inserted),
		slog.Int64("duplicates_removed", result.DuplicatesRemoved),
		slog.Int64("processing_time_ms", time.Since(startTime).Milliseconds()))

	return result, nil
}

// GetConfig returns the current configuration
func (s *Service) GetConfig() Config {
	return s.config
}
