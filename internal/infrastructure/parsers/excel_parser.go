package parsers

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

// ExcelParser reads product lines from the first sheet of a workbook.
// Rows follow the delimited rules: positional columns, integer id before
// the first "|" of column A, address rows carried forward.
type ExcelParser struct {
	config *ParserConfig
}

// NewExcelParser creates a new Excel parser
func NewExcelParser(config *ParserConfig) *ExcelParser {
	if config == nil {
		config = DefaultParserConfig()
	}
	return &ExcelParser{
		config: config,
	}
}

// Parse reads and parses an Excel file from disk
func (p *ExcelParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	file, err := openInput(filePath, p.config.MaxFileSize)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return p.ParseStream(ctx, file)
}

// ParseStream reads and parses Excel data from an io.Reader
func (p *ExcelParser) ParseStream(ctx context.Context, reader io.Reader) (*ParseResult, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidFile, "failed to read Excel workbook")
	}
	defer f.Close()

	return p.parseExcelFile(ctx, f)
}

// parseExcelFile extracts records from the first sheet of an Excel file
func (p *ExcelParser) parseExcelFile(ctx context.Context, f *excelize.File) (*ParseResult, error) {
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, apperrors.MalformedRecord("no sheets found in Excel file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, apperrors.InternalWrap(err, fmt.Sprintf("failed to get rows from sheet %s", sheetName))
	}

	builder := newRecordBuilder(p.config.IDField)
	records := make([]domain.Record, 0, len(rows))
	skippedRows := 0

	for _, row := range rows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if isEmptyRow(row) {
			skippedRows++
			continue
		}

		if record, ok := builder.build(row); ok {
			records = append(records, record)
		}
	}

	return &ParseResult{
		Records:     records,
		TotalRows:   len(rows),
		SkippedRows: skippedRows,
		Family:      domain.FamilyDelimited,
		Format:      "XLSX",
	}, nil
}

// SupportedFormats returns the file extensions this parser supports
func (p *ExcelParser) SupportedFormats() []string {
	return []string{".xlsx"}
}

// Family returns the delimited family
func (p *ExcelParser) Family() domain.Family {
	return domain.FamilyDelimited
}

// isEmptyRow checks if a row contains only empty cells
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
