package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

func redisOpt(cfg config.CacheConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
	}
}

// AsynqClient wraps the Asynq client for enqueuing tasks
type AsynqClient struct {
	client *asynq.Client
	queue  config.QueueConfig
	logger *slog.Logger
}

// NewAsynqClient creates a new Asynq client on the cache Redis
func NewAsynqClient(cacheCfg config.CacheConfig, queueCfg config.QueueConfig, logger *slog.Logger) *AsynqClient {
	if logger == nil {
		logger = slog.Default()
	}

	client := asynq.NewClient(redisOpt(cacheCfg))

	logger.Info("asynq client created",
		slog.String("redis_host", cacheCfg.Host),
		slog.Int("redis_port", cacheCfg.Port),
		slog.String("queue", queueCfg.Name),
	)

	return &AsynqClient{
		client: client,
		queue:  queueCfg,
		logger: logger,
	}
}

// Close closes the Asynq client
func (a *AsynqClient) Close() error {
	a.logger.Info("closing asynq client")
	return a.client.Close()
}

// EnqueueIngest schedules the ingestion of path on the configured queue
func (a *AsynqClient) EnqueueIngest(ctx context.Context, path string) (*asynq.TaskInfo, error) {
	task, err := NewIngestTask(path)
	if err != nil {
		return nil, err
	}

	info, err := a.client.EnqueueContext(ctx, task,
		asynq.Queue(a.queue.Name),
		asynq.MaxRetry(a.queue.MaxRetries),
	)
	if err != nil {
		a.logger.Error("failed to enqueue task",
			slog.String("task_type", task.Type()),
			slog.Any("error", err),
		)
		return nil, apperrors.QueueError(err, "failed to enqueue ingest task")
	}

	a.logger.Debug("task enqueued",
		slog.String("task_id", info.ID),
		slog.String("task_type", task.Type()),
		slog.String("queue", info.Queue),
	)

	return info, nil
}

// AsynqServer wraps the Asynq server for processing tasks
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewAsynqServer creates a server that processes one ingestion at a time
func NewAsynqServer(cacheCfg config.CacheConfig, queueCfg config.QueueConfig, logger *slog.Logger) *AsynqServer {
	if logger == nil {
		logger = slog.Default()
	}

	server := asynq.NewServer(
		redisOpt(cacheCfg),
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				queueCfg.Name: 1,
			},

			// Exponential backoff: 2s, 4s, 8s, 16s, ...
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				return time.Duration(1<<uint(n)) * time.Second
			},

			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing failed",
					slog.String("task_type", task.Type()),
					slog.String("payload", string(task.Payload())),
					slog.Any("error", err),
				)
			}),

			HealthCheckFunc: func(e error) {
				if e != nil {
					logger.Error("health check failed", slog.Any("error", e))
				}
			},
			HealthCheckInterval: 20 * time.Second,

			ShutdownTimeout: 25 * time.Second,
		},
	)

	logger.Info("asynq server created",
		slog.String("redis_host", cacheCfg.Host),
		slog.Int("redis_port", cacheCfg.Port),
		slog.String("queue", queueCfg.Name),
	)

	return &AsynqServer{
		server: server,
		mux:    asynq.NewServeMux(),
		logger: logger,
	}
}

// Handle registers a handler for a task type
func (a *AsynqServer) Handle(pattern string, handler asynq.Handler) {
	a.mux.Handle(pattern, handler)
	a.logger.Debug("handler registered", slog.String("pattern", pattern))
}

// Start runs the server until it receives a termination signal
func (a *AsynqServer) Start() error {
	a.logger.Info("starting asynq server")
	if err := a.server.Run(a.mux); err != nil {
		return fmt.Errorf("failed to run asynq server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (a *AsynqServer) Shutdown() {
	a.logger.Info("shutting down asynq server")
	a.server.Shutdown()
}
