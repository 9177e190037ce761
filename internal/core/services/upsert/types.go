package upsert

import (
	"context"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
)

// Config for the upsert writer
type Config struct {
	IDField string `json:"id_field"` // Dedup key looked up before insert
}

// DefaultConfig returns default upsert configuration
func DefaultConfig() Config {
	return Config{
		IDField: "id",
	}
}

// Result contains the counts of one upsert. On error it holds the work
// completed before the failure.
type Result struct {
	Inserted          int      `json:"inserted"`
	DuplicatesRemoved int64    `json:"duplicates_removed"`
	InsertedIDs       []string `json:"inserted_ids,omitempty"`
}

// Store hands out named collections of a document database
type Store interface {
	// Collection returns the named collection, creating it on first use
	Collection(ctx context.Context, name string) (Collection, error)

	// Close releases the underlying connections
	Close() error
}

// Collection is the minimal document collection contract the writer needs
type Collection interface {
	Name() string

	// EnsureIndex creates a non-unique index on field if it does not exist
	EnsureIndex(ctx context.Context, field string) error

	// FindBy returns the documents whose field equals value
	FindBy(ctx context.Context, field string, value any) ([]domain.Record, error)

	// DeleteBy removes all documents whose field equals value
	DeleteBy(ctx context.Context, field string, value any) (int64, error)

	// InsertMany stores records in order and returns the assigned ids
	InsertMany(ctx context.Context, records []domain.Record) ([]string, error)
}

// Writer defines the interface for upsert operations
type Writer interface {
	// Upsert replaces every stored document sharing an id with the batch
	Upsert(ctx context.Context, collection Collection, records []domain.Record) (*Result, error)

	// GetConfig returns the current configuration
	GetConfig() Config
}
