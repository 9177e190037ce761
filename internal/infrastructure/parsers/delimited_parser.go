package parsers

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

// idSeparator splits the numeric item id from the rest of column 0
const idSeparator = "|"

// DelimitedParser parses comma separated product lines.
//
// The format interleaves address lines with product lines: a row whose
// first column does not start with an integer id is an address, and it
// applies to every following product row until the next address row.
type DelimitedParser struct {
	config *ParserConfig
	logger *slog.Logger
}

// NewDelimitedParser creates a new delimited text parser
func NewDelimitedParser(config *ParserConfig, logger *slog.Logger) *DelimitedParser {
	if config == nil {
		config = DefaultParserConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DelimitedParser{
		config: config,
		logger: logger,
	}
}

// Parse reads and parses a delimited file from disk
func (p *DelimitedParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	file, err := openInput(filePath, p.config.MaxFileSize)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return p.ParseStream(ctx, file)
}

// ParseStream reads and parses delimited data from an io.Reader
func (p *DelimitedParser) ParseStream(ctx context.Context, reader io.Reader) (*ParseResult, error) {
	r, err := decodeInput(reader, p.config.InputEncoding)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "cannot decode input")
	}

	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1 // Allow variable number of fields per record
	csvReader.LazyQuotes = true

	builder := newRecordBuilder(p.config.IDField)
	records := make([]domain.Record, 0)
	totalRows := 0
	skippedRows := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		totalRows++

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skippedRows++
				p.logger.Warn("skipping undecodable line",
					slog.Int("line", parseErr.Line),
					slog.Any("error", err))
				continue
			}
			return nil, apperrors.InternalWrap(err, "failed to read delimited input")
		}

		if record, ok := builder.build(row); ok {
			records = append(records, record)
		}
	}

	if builder.pendingAddress() {
		p.logger.Debug("dropping trailing address line with no following record")
	}

	return &ParseResult{
		Records:     records,
		TotalRows:   totalRows,
		SkippedRows: skippedRows,
		Family:      domain.FamilyDelimited,
		Format:      "CSV",
	}, nil
}

// SupportedFormats returns the file extensions this parser supports
func (p *DelimitedParser) SupportedFormats() []string {
	return []string{".csv", ".txt"}
}

// Family returns the delimited family
func (p *DelimitedParser) Family() domain.Family {
	return domain.FamilyDelimited
}

// recordBuilder turns positional rows into records and carries the most
// recent address line forward. One builder serves one parse pass.
type recordBuilder struct {
	idField string
	address *string
	used    bool
}

func newRecordBuilder(idField string) *recordBuilder {
	return &recordBuilder{idField: idField}
}

// build returns the record for row, or false when row is an address line
func (b *recordBuilder) build(row []string) (domain.Record, bool) {
	if len(row) == 0 {
		return nil, false
	}

	id, ok := parseLeadingID(row[0])
	if !ok {
		address := row[0]
		b.address = &address
		b.used = false
		return nil, false
	}

	record := make(domain.Record, len(row)+2)
	for i, value := range row {
		record[strconv.Itoa(i)] = value
	}
	record[b.idField] = id
	if b.address != nil {
		record["address"] = *b.address
		b.used = true
	}

	return record, true
}

func (b *recordBuilder) pendingAddress() bool {
	return b.address != nil && !b.used
}

// parseLeadingID parses the integer before the first separator of column 0
func parseLeadingID(column string) (int64, bool) {
	token, _, _ := strings.Cut(column, idSeparator)
	id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
