package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	"github.com/alejandroruanova/feed-ingestion-service/internal/core/services/ingestion"
	"github.com/alejandroruanova/feed-ingestion-service/internal/core/services/upsert"
	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/cache"
	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/database"
	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/database/repositories"
	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/parsers"
	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/storage"
	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/logger"
)

// app holds the wired components of one command invocation
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	parsers *parsers.ParserFactory
	store   upsert.Store
	runs    *repositories.RunRepository
	lock    *cache.RunLock
	archive *storage.LocalStorage
	service *ingestion.Service

	closers []func() error
}

// loadConfig reads configuration and applies the command line overrides
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.storeDriver != "" {
		cfg.Database.Driver = strings.ToLower(opts.storeDriver)
	}
	if opts.xmlParser != "" {
		cfg.Ingestion.XMLParser = opts.xmlParser
	}
	if opts.encoding != "" {
		cfg.Ingestion.InputEncoding = opts.encoding
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newParserFactory builds the parser factory from configuration
func newParserFactory(cfg *config.Config, log *slog.Logger) (*parsers.ParserFactory, error) {
	strategy, err := parsers.ParseXMLStrategy(cfg.Ingestion.XMLParser)
	if err != nil {
		return nil, err
	}

	return parsers.NewParserFactory(&parsers.ParserConfig{
		IDField:       cfg.Ingestion.IDField,
		XMLStrategy:   strategy,
		InputEncoding: cfg.Ingestion.InputEncoding,
		MaxFileSize:   cfg.MaxFileSizeBytes(),
	}, log), nil
}

// newApp connects every configured backend and builds the ingestion service.
// Every path in inputs must have a supported extension; they are checked
// before any backend is contacted.
func newApp(opts *rootOptions, inputs ...string) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log := logger.Initialize(cfg.Environment, cfg.LogLevel)
	cfg.LogConfig(log)

	a := &app{cfg: cfg, logger: log}

	a.parsers, err = newParserFactory(cfg, log)
	if err != nil {
		return nil, err
	}
	for _, path := range inputs {
		if _, err := a.parsers.GetParserForFile(path); err != nil {
			return nil, err
		}
	}

	if err := a.connectStore(); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Cache, logger.NewServiceLogger("cache"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, redisCache.Close)
		a.lock = cache.NewRunLock(redisCache, time.Duration(cfg.Cache.LockTTLSeconds)*time.Second, log)
	}

	if cfg.Ingestion.ArchiveDir != "" {
		a.archive, err = storage.NewLocalStorage(&storage.LocalStorageConfig{
			BasePath: cfg.Ingestion.ArchiveDir,
		}, logger.NewServiceLogger("archive"))
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	var serviceOpts []ingestion.Option
	if a.runs != nil {
		serviceOpts = append(serviceOpts, ingestion.WithRunRecorder(a.runs))
	}
	if a.lock != nil {
		serviceOpts = append(serviceOpts, ingestion.WithRunLock(a.lock))
	}
	if a.archive != nil {
		serviceOpts = append(serviceOpts, ingestion.WithArchiver(a.archive))
	}

	writer := upsert.NewService(upsert.Config{IDField: cfg.Ingestion.IDField}, logger.NewServiceLogger("upsert"))

	a.service = ingestion.NewService(ingestion.Config{
		DatabaseName:  cfg.Database.Database,
		CSVCollection: cfg.Ingestion.CSVCollection,
		XMLCollection: cfg.Ingestion.XMLCollection,
		IDField:       cfg.Ingestion.IDField,
	}, a.parsers, a.store, writer, logger.NewServiceLogger("ingestion"), serviceOpts...)

	return a, nil
}

func (a *app) connectStore() error {
	if a.cfg.Database.Driver == config.StoreDriverMemory {
		a.store = database.NewMemoryStore()
		a.logger.Warn("using in-memory store, nothing will be persisted")
		return nil
	}

	db, err := database.NewPostgresDB(a.cfg.Database, logger.NewServiceLogger("database"))
	if err != nil {
		return apperrors.StoreUnavailable(err, "connect")
	}
	a.closers = append(a.closers, db.Close)

	if err := db.AutoMigrate(&domain.IngestionRun{}); err != nil {
		return apperrors.StoreUnavailable(err, "migrate")
	}

	a.store = database.NewPostgresStore(db, a.cfg.Database.InsertBatchSize, logger.NewServiceLogger("store"))
	a.runs = repositories.NewRunRepository(db.DB, logger.NewServiceLogger("runs"))
	return nil
}

// ingest adapts the service to the queue handler signature
func (a *app) ingest(ctx context.Context, path string) error {
	_, err := a.service.Ingest(ctx, path)
	return err
}

// Close releases connections in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close resource", slog.Any("error", err))
		}
	}
	a.closers = nil
}
