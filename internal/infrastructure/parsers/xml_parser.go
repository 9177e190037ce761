package parsers

import (
	"context"
	"fmt"
	"io"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

// Fixed locations of the item collection and of each item's identifier
const (
	feedContainerKey = "DataFeeds"
	itemCollection   = "item_data"
	itemBasicData    = "item_basic_data"
	itemUniqueID     = "item_unique_id"
)

// XMLParser extracts item records from a product feed document
type XMLParser struct {
	config  *ParserConfig
	reducer TreeReducer
}

// NewXMLParser creates a new XML parser using the configured reducer strategy
func NewXMLParser(config *ParserConfig) *XMLParser {
	if config == nil {
		config = DefaultParserConfig()
	}
	return &XMLParser{
		config:  config,
		reducer: NewTreeReducer(config.XMLStrategy),
	}
}

// Parse reads and parses an XML file from disk
func (p *XMLParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	file, err := openInput(filePath, p.config.MaxFileSize)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return p.ParseStream(ctx, file)
}

// ParseStream reduces the whole document, then extracts and keys the items.
// Nothing is returned unless every item carries an identifier.
func (p *XMLParser) ParseStream(ctx context.Context, reader io.Reader) (*ParseResult, error) {
	root, err := p.reducer.Reduce(ctx, reader)
	if err != nil {
		return nil, err
	}

	records, err := ExtractItems(root)
	if err != nil {
		return nil, err
	}

	if err := AssignItemIDs(records, p.config.IDField); err != nil {
		return nil, err
	}

	return &ParseResult{
		Records:   records,
		TotalRows: len(records),
		Family:    domain.FamilyHierarchical,
		Format:    "XML",
	}, nil
}

// SupportedFormats returns the file extensions this parser supports
func (p *XMLParser) SupportedFormats() []string {
	return []string{".xml"}
}

// Family returns the hierarchical family
func (p *XMLParser) Family() domain.Family {
	return domain.FamilyHierarchical
}

// ExtractItems returns root[DataFeeds][item_data] as records. An item_data
// that collapsed to a single mapping is a one-item collection.
func ExtractItems(root any) ([]domain.Record, error) {
	rootMap, ok := root.(map[string]any)
	if !ok {
		return nil, apperrors.SchemaMismatch(feedContainerKey)
	}

	feeds, ok := rootMap[feedContainerKey]
	if !ok {
		return nil, apperrors.SchemaMismatch(feedContainerKey)
	}

	feedMap, ok := feeds.(map[string]any)
	if !ok {
		return nil, apperrors.SchemaMismatch(feedContainerKey + "." + itemCollection)
	}

	items, ok := feedMap[itemCollection]
	if !ok {
		return nil, apperrors.SchemaMismatch(feedContainerKey + "." + itemCollection)
	}

	switch v := items.(type) {
	case map[string]any:
		return []domain.Record{domain.Record(v)}, nil
	case []any:
		records := make([]domain.Record, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, apperrors.MalformedRecord(
					fmt.Sprintf("%s entry %d is not an element with children", itemCollection, i)).
					WithDetails("index", i)
			}
			records = append(records, domain.Record(m))
		}
		return records, nil
	default:
		return nil, apperrors.MalformedRecord(
			fmt.Sprintf("%s is not an element with children", itemCollection))
	}
}

// AssignItemIDs copies item_basic_data.item_unique_id of every record to
// the top-level idField
func AssignItemIDs(records []domain.Record, idField string) error {
	path := itemBasicData + "." + itemUniqueID

	for i, record := range records {
		basic, ok := record[itemBasicData].(map[string]any)
		if !ok {
			return apperrors.SchemaMismatch(path).WithDetails("index", i)
		}

		uid, ok := basic[itemUniqueID]
		if !ok {
			return apperrors.SchemaMismatch(path).WithDetails("index", i)
		}

		if _, ok := uid.(string); !ok {
			return apperrors.MalformedRecord(
				fmt.Sprintf("%s of item %d is not a single text value", path, i)).
				WithDetails("index", i)
		}

		record[idField] = uid
	}

	return nil
}
