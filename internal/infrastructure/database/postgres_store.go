package database

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"gorm.io/gorm"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	"github.com/alejandroruanova/feed-ingestion-service/internal/core/services/upsert"
	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

// identifierPattern restricts collection and field names that are spliced
// into SQL text
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const defaultInsertBatchSize = 1000

// PostgresStore keeps every collection in its own table of jsonb documents
type PostgresStore struct {
	db        *PostgresDB
	batchSize int
	logger    *slog.Logger

	mu       sync.Mutex
	migrated map[string]bool
}

// NewPostgresStore creates a document store on top of db
func NewPostgresStore(db *PostgresDB, batchSize int, logger *slog.Logger) *PostgresStore {
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStore{
		db:        db,
		batchSize: batchSize,
		logger:    logger,
		migrated:  make(map[string]bool),
	}
}

// Collection returns the table backing name, creating it on first use
func (s *PostgresStore) Collection(ctx context.Context, name string) (upsert.Collection, error) {
	if !identifierPattern.MatchString(name) {
		return nil, apperrors.Internal(fmt.Sprintf("invalid collection name %q", name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.migrated[name] {
		if err := s.db.DB.WithContext(ctx).Table(name).AutoMigrate(&domain.Document{}); err != nil {
			return nil, apperrors.StoreUnavailable(err, "create collection")
		}
		s.migrated[name] = true
		s.logger.Debug("collection ready", slog.String("collection", name))
	}

	return &documentCollection{
		db:        s.db.DB,
		name:      name,
		batchSize: s.batchSize,
	}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type documentCollection struct {
	db        *gorm.DB
	name      string
	batchSize int
}

func (c *documentCollection) Name() string {
	return c.name
}

func (c *documentCollection) EnsureIndex(ctx context.Context, field string) error {
	if !identifierPattern.MatchString(field) {
		return apperrors.Internal(fmt.Sprintf("invalid index field %q", field))
	}

	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s ((body ->> '%s'))",
		c.name, field, c.name, field)

	if err := c.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return apperrors.StoreUnavailable(err, "create index")
	}
	return nil
}

func (c *documentCollection) where(field string, value any) (*gorm.DB, error) {
	if !identifierPattern.MatchString(field) {
		return nil, fmt.Errorf("invalid field name %q", field)
	}
	key, err := domain.KeyString(value)
	if err != nil {
		return nil, err
	}
	return c.db.Table(c.name).Where(fmt.Sprintf("body ->> '%s' = ?", field), key), nil
}

func (c *documentCollection) FindBy(ctx context.Context, field string, value any) ([]domain.Record, error) {
	query, err := c.where(field, value)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	if err := query.WithContext(ctx).Order("created_at ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	records := make([]domain.Record, 0, len(docs))
	for _, doc := range docs {
		record, err := doc.Record()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *documentCollection) DeleteBy(ctx context.Context, field string, value any) (int64, error) {
	query, err := c.where(field, value)
	if err != nil {
		return 0, err
	}

	res := query.WithContext(ctx).Delete(&domain.Document{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (c *documentCollection) InsertMany(ctx context.Context, records []domain.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	docs := make([]domain.Document, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, record := range records {
		doc, err := domain.NewDocument(record)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		ids = append(ids, doc.ID.String())
	}

	if err := c.db.WithContext(ctx).Table(c.name).CreateInBatches(&docs, c.batchSize).Error; err != nil {
		return nil, fmt.Errorf("failed to insert documents: %w", err)
	}
	return ids, nil
}
