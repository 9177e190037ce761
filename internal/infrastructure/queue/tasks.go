package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

// TaskTypeIngestFile ingests one local file
const TaskTypeIngestFile = "ingest:file"

// IngestPayload is the JSON payload of an ingest:file task
type IngestPayload struct {
	Path string `json:"path"`
}

// NewIngestTask builds an ingest:file task for path
func NewIngestTask(path string) (*asynq.Task, error) {
	if path == "" {
		return nil, apperrors.New(apperrors.ErrCodeQueueError, "ingest task requires a file path")
	}

	payload, err := json.Marshal(IngestPayload{Path: path})
	if err != nil {
		return nil, apperrors.QueueError(err, "failed to encode ingest payload")
	}
	return asynq.NewTask(TaskTypeIngestFile, payload), nil
}

// ParseIngestPayload decodes the payload of an ingest:file task
func ParseIngestPayload(task *asynq.Task) (IngestPayload, error) {
	var payload IngestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, apperrors.QueueError(err, "invalid ingest payload")
	}
	if payload.Path == "" {
		return payload, apperrors.New(apperrors.ErrCodeQueueError, "ingest payload has no path")
	}
	return payload, nil
}

// IngestFunc performs one ingestion
type IngestFunc func(ctx context.Context, path string) error

// IngestHandler processes ingest:file tasks
type IngestHandler struct {
	ingest IngestFunc
	logger *slog.Logger
}

// NewIngestHandler creates a handler that runs ingest for every task
func NewIngestHandler(ingest IngestFunc, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{
		ingest: ingest,
		logger: logger,
	}
}

// ProcessTask implements asynq.Handler. Failures caused by the input are
// not retried; store and lock failures are.
func (h *IngestHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseIngestPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("processing ingest task", slog.String("path", payload.Path))

	if err := h.ingest(ctx, payload.Path); err != nil {
		if !retryable(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

func retryable(err error) bool {
	switch {
	case apperrors.HasCode(err, apperrors.ErrCodeStoreUnavailable),
		apperrors.HasCode(err, apperrors.ErrCodeConflict),
		apperrors.HasCode(err, apperrors.ErrCodeInternal):
		return true
	case apperrors.IsAppError(err):
		return false
	default:
		return true
	}
}
