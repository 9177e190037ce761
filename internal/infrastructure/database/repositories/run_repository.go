package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
)

// RunRepository persists ingestion run history using GORM
type RunRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRunRepository creates a new repository instance
func NewRunRepository(db *gorm.DB, logger *slog.Logger) *RunRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new run
func (r *RunRepository) Create(ctx context.Context, run *domain.IngestionRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		r.logger.Error("failed to create ingestion run",
			slog.String("file", run.FileName),
			slog.Any("error", err))
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Update saves every column of run
func (r *RunRepository) Update(ctx context.Context, run *domain.IngestionRun) error {
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		r.logger.Error("failed to update ingestion run",
			slog.String("run_id", run.ID.String()),
			slog.Any("error", err))
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// LatestByCollection returns the most recent run into collection, or nil
// when there is none
func (r *RunRepository) LatestByCollection(ctx context.Context, collection string) (*domain.IngestionRun, error) {
	var run domain.IngestionRun

	err := r.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at DESC").
		First(&run).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to get latest run",
			slog.String("collection", collection),
			slog.Any("error", err))
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return &run, nil
}

// ListRecent returns up to limit runs, newest first
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]domain.IngestionRun, error) {
	var runs []domain.IngestionRun

	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).
		Error

	if err != nil {
		r.logger.Error("failed to list runs", slog.Any("error", err))
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return runs, nil
}

// CountByFileHash returns how many runs ingested a file with this content
func (r *RunRepository) CountByFileHash(ctx context.Context, hash string) (int64, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&domain.IngestionRun{}).
		Where("file_hash = ? AND status = ?", hash, domain.RunStatusCompleted).
		Count(&count).
		Error

	if err != nil {
		r.logger.Error("failed to count runs by hash",
			slog.String("hash", hash),
			slog.Any("error", err))
		return 0, fmt.Errorf("database query failed: %w", err)
	}

	return count, nil
}
