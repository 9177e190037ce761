package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/parsers"
	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/storage"
)

// Config for the ingestion service
type Config struct {
	DatabaseName  string
	CSVCollection string
	XMLCollection string
	IDField       string
}

// DefaultConfig returns default ingestion configuration
func DefaultConfig() Config {
	return Config{
		DatabaseName:  "products_db",
		CSVCollection: "csv_items",
		XMLCollection: "xml_items",
		IDField:       "id",
	}
}

// CollectionFor returns the collection that receives records of family
func (c Config) CollectionFor(family domain.Family) string {
	if family == domain.FamilyHierarchical {
		return c.XMLCollection
	}
	return c.CSVCollection
}

// Summary is the outcome of one ingestion
type Summary struct {
	RunID             string        `json:"run_id"`
	FileName          string        `json:"file_name"`
	FilePath          string        `json:"file_path"`
	FileHash          string        `json:"file_hash"`
	Family            domain.Family `json:"family"`
	Format            string        `json:"format"`
	Database          string        `json:"database"`
	Collection        string        `json:"collection"`
	Parsed            int           `json:"parsed"`
	Skipped           int           `json:"skipped"`
	Inserted          int           `json:"inserted"`
	DuplicatesRemoved int64         `json:"duplicates_removed"`
	Duration          time.Duration `json:"duration"`
}

// Lines renders the completion report
func (s *Summary) Lines() []string {
	return []string{
		fmt.Sprintf("%d item(s) parsed from %s", s.Parsed, s.FileName),
		fmt.Sprintf("%d item(s) inserted into %s/%s", s.Inserted, s.Database, s.Collection),
		fmt.Sprintf("%d duplicate item(s) removed", s.DuplicatesRemoved),
	}
}

// cacheFields flattens the summary for the last-run cache
func (s *Summary) cacheFields() map[string]interface{} {
	return map[string]interface{}{
		"run_id":             s.RunID,
		"file":               s.FileName,
		"file_hash":          s.FileHash,
		"parsed":             s.Parsed,
		"inserted":           s.Inserted,
		"duplicates_removed": s.DuplicatesRemoved,
		"finished_at":        time.Now().UTC().Format(time.RFC3339),
	}
}

// ParserResolver picks the parser for a path by its extension alone
type ParserResolver interface {
	GetParserForFile(filePath string) (parsers.FileParser, error)
}

// RunRecorder persists run history
type RunRecorder interface {
	Create(ctx context.Context, run *domain.IngestionRun) error
	Update(ctx context.Context, run *domain.IngestionRun) error
	CountByFileHash(ctx context.Context, hash string) (int64, error)
}

// RunLocker serializes ingestions into one collection
type RunLocker interface {
	Acquire(ctx context.Context, collection string) (func(context.Context) error, error)
	RecordLastRun(ctx context.Context, collection string, fields map[string]interface{}) error
}

// Archiver keeps a copy of every successfully ingested file
type Archiver interface {
	Archive(ctx context.Context, runID string, srcPath string) (*storage.FileMetadata, error)
}
