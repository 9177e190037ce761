package parsers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

// ParseResult contains the batch produced by one parse and its statistics
type ParseResult struct {
	Records     []domain.Record
	TotalRows   int
	SkippedRows int
	Family      domain.Family
	Format      string
}

// FileParser is the interface all parsers must implement
type FileParser interface {
	// Parse reads and parses the file from the given path
	Parse(ctx context.Context, filePath string) (*ParseResult, error)

	// ParseStream reads and parses from an io.Reader
	ParseStream(ctx context.Context, reader io.Reader) (*ParseResult, error)

	// SupportedFormats returns the file extensions this parser supports
	SupportedFormats() []string

	// Family returns the format family, which selects the target collection
	Family() domain.Family
}

// ParserConfig holds configuration for all parsers
type ParserConfig struct {
	// IDField is the top-level key that receives the derived record id
	IDField string

	// XMLStrategy selects the tree reducer used for XML documents
	XMLStrategy XMLStrategy

	// InputEncoding is the IANA charset of delimited input ("" or utf-8 = no decoding)
	InputEncoding string

	// MaxFileSize is the maximum file size in bytes (0 = unlimited)
	MaxFileSize int64
}

// DefaultParserConfig returns sensible defaults
func DefaultParserConfig() *ParserConfig {
	return &ParserConfig{
		IDField:       "id",
		XMLStrategy:   XMLStrategyEvents,
		InputEncoding: "utf-8",
		MaxFileSize:   500 * 1024 * 1024, // 500 MB
	}
}

// openInput opens filePath and enforces the configured size limit
func openInput(filePath string, maxSize int64) (*os.File, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, apperrors.InvalidFile(err, filePath)
	}

	if maxSize > 0 {
		stat, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, apperrors.InvalidFile(fmt.Errorf("failed to stat file: %w", err), filePath)
		}
		if stat.Size() > maxSize {
			file.Close()
			return nil, apperrors.FileTooLarge(stat.Size(), maxSize)
		}
	}

	return file, nil
}
