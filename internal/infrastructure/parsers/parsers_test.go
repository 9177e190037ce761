package parsers

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/logger"
)

var strategies = []XMLStrategy{XMLStrategyEvents, XMLStrategyDocument}

const smallFeed = `<?xml version="1.0" encoding="UTF-8"?>
<DataFeeds xmlns:g="http://example.com/g">
  <item_data>
    <item_basic_data>
      <item_unique_id>B00VINDBJK</item_unique_id>
      <item_name>Desk Lamp</item_name>
    </item_basic_data>
    <item_price currency="USD">19.99</item_price>
    <item_tag>office</item_tag>
    <item_tag>lighting</item_tag>
  </item_data>
  <item_data>
    <item_basic_data item_unique_id="B01ABCDEF">
      <item_name>Chair</item_name>
    </item_basic_data>
    <item_tag>office</item_tag>
  </item_data>
</DataFeeds>`

func reduce(t *testing.T, strategy XMLStrategy, doc string) any {
	t.Helper()
	root, err := NewTreeReducer(strategy).Reduce(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	return root
}

func setupTestFiles(t *testing.T) string {
	tempDir := t.TempDir()

	csvContent := "123 Main St\n402983319863|Widget,blue,5\n402983319864|Gadget,red,2\n"
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "small_csv.txt"), []byte(csvContent), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "small.csv"), []byte(csvContent), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "small_xml.xml"), []byte(smallFeed), 0644))

	return tempDir
}

func TestParseXMLStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want XMLStrategy
	}{
		{"", XMLStrategyEvents},
		{"1", XMLStrategyEvents},
		{"events", XMLStrategyEvents},
		{"2", XMLStrategyDocument},
		{"DOCUMENT", XMLStrategyDocument},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseXMLStrategy(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseXMLStrategy("3")
	assert.Error(t, err)
}

func TestTreeReducer_RepeatedChildrenBecomeList(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			root := reduce(t, strategy, `<r a="1"><x>p</x><x>q</x></r>`)

			assert.Equal(t, map[string]any{
				"r": map[string]any{"a": "1", "x": []any{"p", "q"}},
			}, root)
		})
	}
}

func TestTreeReducer_SingleChildCollapsesToScalar(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			root := reduce(t, strategy, `<r><y>z</y></r>`)

			assert.Equal(t, map[string]any{"r": map[string]any{"y": "z"}}, root)
		})
	}
}

func TestTreeReducer_TextDroppedWhenChildrenOrAttributesExist(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			root := reduce(t, strategy, `<r>lost<c>kept</c>also lost<p unit="kg">12</p><e/></r>`)

			assert.Equal(t, map[string]any{
				"r": map[string]any{
					"c": "kept",
					"p": map[string]any{"unit": "kg"},
					"e": "",
				},
			}, root)
		})
	}
}

func TestTreeReducer_TrimsLeafText(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			root := reduce(t, strategy, "<r><name>\n   Desk Lamp \t</name><empty>   </empty></r>")

			assert.Equal(t, map[string]any{
				"r": map[string]any{"name": "Desk Lamp", "empty": ""},
			}, root)
		})
	}
}

func TestTreeReducer_AttributeAndChildShareName(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			root := reduce(t, strategy, `<r id="attr"><id>child</id></r>`)

			assert.Equal(t, map[string]any{
				"r": map[string]any{"id": []any{"attr", "child"}},
			}, root)
		})
	}
}

func TestTreeReducer_StrategiesAgree(t *testing.T) {
	events := reduce(t, XMLStrategyEvents, smallFeed)
	document := reduce(t, XMLStrategyDocument, smallFeed)

	assert.Equal(t, events, document)
}

func TestTreeReducer_IgnoresNamespaceDeclarations(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			root := reduce(t, strategy, `<r xmlns="urn:a" xmlns:b="urn:b"><b:v>1</b:v></r>`)

			assert.Equal(t, map[string]any{"r": map[string]any{"v": "1"}}, root)
		})
	}
}

func TestTreeReducer_MalformedDocument(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			_, err := NewTreeReducer(strategy).Reduce(context.Background(), strings.NewReader(`<r><a></r>`))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)

			_, err = NewTreeReducer(strategy).Reduce(context.Background(), strings.NewReader(""))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
		})
	}
}

func TestXMLParser_ParseStream(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			config := DefaultParserConfig()
			config.XMLStrategy = strategy

			parser := NewXMLParser(config)
			result, err := parser.ParseStream(context.Background(), strings.NewReader(smallFeed))

			require.NoError(t, err)
			require.Len(t, result.Records, 2)
			assert.Equal(t, domain.FamilyHierarchical, result.Family)
			assert.Equal(t, "XML", result.Format)

			first := result.Records[0]
			assert.Equal(t, "B00VINDBJK", first["id"])
			assert.Equal(t, []any{"office", "lighting"}, first["item_tag"])
			assert.Equal(t, map[string]any{"currency": "USD"}, first["item_price"])

			second := result.Records[1]
			assert.Equal(t, "B01ABCDEF", second["id"])
			assert.Equal(t, "office", second["item_tag"])
		})
	}
}

func TestXMLParser_SingleItemIsOneRecord(t *testing.T) {
	doc := `<DataFeeds><item_data><item_basic_data><item_unique_id>X1</item_unique_id></item_basic_data></item_data></DataFeeds>`

	result, err := NewXMLParser(nil).ParseStream(context.Background(), strings.NewReader(doc))

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "X1", result.Records[0]["id"])
}

func TestXMLParser_CustomIDField(t *testing.T) {
	config := DefaultParserConfig()
	config.IDField = "sku"

	result, err := NewXMLParser(config).ParseStream(context.Background(), strings.NewReader(smallFeed))

	require.NoError(t, err)
	assert.Equal(t, "B00VINDBJK", result.Records[0]["sku"])
	assert.NotContains(t, result.Records[0], "id")
}

func TestXMLParser_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{
			name: "missing DataFeeds",
			doc:  `<Catalog><item_data><item_basic_data><item_unique_id>1</item_unique_id></item_basic_data></item_data></Catalog>`,
			path: "DataFeeds",
		},
		{
			name: "missing item_data",
			doc:  `<DataFeeds><other>1</other></DataFeeds>`,
			path: "DataFeeds.item_data",
		},
		{
			name: "empty DataFeeds",
			doc:  `<DataFeeds></DataFeeds>`,
			path: "DataFeeds.item_data",
		},
		{
			name: "missing item_basic_data",
			doc:  `<DataFeeds><item_data><name>x</name></item_data></DataFeeds>`,
			path: "item_basic_data.item_unique_id",
		},
		{
			name: "missing item_unique_id on second item",
			doc: `<DataFeeds>
				<item_data><item_basic_data><item_unique_id>1</item_unique_id></item_basic_data></item_data>
				<item_data><item_basic_data><name>x</name></item_basic_data></item_data>
			</DataFeeds>`,
			path: "item_basic_data.item_unique_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewXMLParser(nil).ParseStream(context.Background(), strings.NewReader(tt.doc))

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrSchemaMismatch)

			appErr, ok := apperrors.GetAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.path, appErr.Details["path"])
		})
	}
}

func TestXMLParser_MalformedItems(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"scalar item_data", `<DataFeeds><item_data>text</item_data></DataFeeds>`},
		{"scalar entry in list", `<DataFeeds><item_data><item_basic_data><item_unique_id>1</item_unique_id></item_basic_data></item_data><item_data/></DataFeeds>`},
		{"repeated unique id", `<DataFeeds><item_data><item_basic_data><item_unique_id>1</item_unique_id><item_unique_id>2</item_unique_id></item_basic_data></item_data></DataFeeds>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewXMLParser(nil).ParseStream(context.Background(), strings.NewReader(tt.doc))

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
		})
	}
}

func TestXMLParser_DeclaredLatin1Encoding(t *testing.T) {
	doc := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>" +
		"<DataFeeds><item_data><item_basic_data><item_unique_id>K1</item_unique_id>" +
		"<city>M\xfcnchen</city></item_basic_data></item_data></DataFeeds>")

	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			config := DefaultParserConfig()
			config.XMLStrategy = strategy

			result, err := NewXMLParser(config).ParseStream(context.Background(), bytes.NewReader(doc))

			require.NoError(t, err)
			basic := result.Records[0]["item_basic_data"].(map[string]any)
			assert.Equal(t, "München", basic["city"])
		})
	}
}

func TestDelimitedParser_AddressCarryOver(t *testing.T) {
	content := "123 Main St\n402983319863|Widget,blue,5\n"

	parser := NewDelimitedParser(nil, logger.Discard())
	result, err := parser.ParseStream(context.Background(), strings.NewReader(content))

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, domain.FamilyDelimited, result.Family)

	record := result.Records[0]
	assert.Equal(t, int64(402983319863), record["id"])
	assert.Equal(t, "123 Main St", record["address"])
	assert.Equal(t, "402983319863|Widget", record["0"])
	assert.Equal(t, "blue", record["1"])
	assert.Equal(t, "5", record["2"])
}

func TestDelimitedParser_LeadingProductLineHasNoAddress(t *testing.T) {
	content := "7|Lamp,white\n8|Desk,oak\n"

	result, err := NewDelimitedParser(nil, logger.Discard()).ParseStream(context.Background(), strings.NewReader(content))

	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	for _, record := range result.Records {
		assert.NotContains(t, record, "address")
	}
}

func TestDelimitedParser_AddressAppliesUntilSuperseded(t *testing.T) {
	content := strings.Join([]string{
		"1|a,x",
		"First Ave 1",
		"2|b,x",
		"3|c,x",
		"Second Ave 2,Springfield",
		"4|d,x",
		"Trailing Rd 9",
	}, "\n")

	result, err := NewDelimitedParser(nil, logger.Discard()).ParseStream(context.Background(), strings.NewReader(content))

	require.NoError(t, err)
	require.Len(t, result.Records, 4)
	assert.Equal(t, 7, result.TotalRows)

	assert.NotContains(t, result.Records[0], "address")
	assert.Equal(t, "First Ave 1", result.Records[1]["address"])
	assert.Equal(t, "First Ave 1", result.Records[2]["address"])
	assert.Equal(t, "Second Ave 2", result.Records[3]["address"])
	assert.Equal(t, int64(4), result.Records[3]["id"])
}

func TestDelimitedParser_IDParsing(t *testing.T) {
	tests := []struct {
		column string
		id     int64
		ok     bool
	}{
		{"402983319863|Widget", 402983319863, true},
		{"42", 42, true},
		{" 42 |x", 42, true},
		{"-3|neg", -3, true},
		{"12a|x", 0, false},
		{"|x", 0, false},
		{"Main St|5", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			id, ok := parseLeadingID(tt.column)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestDelimitedParser_InputEncoding(t *testing.T) {
	content := []byte("Stra\xdfe 1\n5|Becher,wei\xdf\n")

	config := DefaultParserConfig()
	config.InputEncoding = "ISO-8859-1"

	result, err := NewDelimitedParser(config, logger.Discard()).ParseStream(context.Background(), bytes.NewReader(content))

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Straße 1", result.Records[0]["address"])
	assert.Equal(t, "weiß", result.Records[0]["1"])
}

func TestDelimitedParser_UnknownEncoding(t *testing.T) {
	config := DefaultParserConfig()
	config.InputEncoding = "no-such-charset"

	_, err := NewDelimitedParser(config, logger.Discard()).ParseStream(context.Background(), strings.NewReader("1|a"))
	assert.Error(t, err)
}

func TestDelimitedParser_Parse(t *testing.T) {
	tempDir := setupTestFiles(t)

	parser := NewDelimitedParser(nil, logger.Discard())
	result, err := parser.Parse(context.Background(), filepath.Join(tempDir, "small_csv.txt"))

	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, int64(402983319864), result.Records[1]["id"])
	assert.Equal(t, "123 Main St", result.Records[1]["address"])
}

func TestExcelParser_Parse(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "feed.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"9 Elm St"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"11|Mug", "green"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]interface{}{"12|Cup", "red"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	result, err := NewExcelParser(nil).Parse(context.Background(), path)

	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "XLSX", result.Format)
	assert.Equal(t, domain.FamilyDelimited, result.Family)
	assert.Equal(t, int64(11), result.Records[0]["id"])
	assert.Equal(t, "9 Elm St", result.Records[0]["address"])
	assert.Equal(t, "red", result.Records[1]["1"])
}

func TestParserFactory_GetParser(t *testing.T) {
	factory := NewParserFactory(nil, logger.Discard())

	tests := []struct {
		ext    string
		family domain.Family
	}{
		{".csv", domain.FamilyDelimited},
		{".txt", domain.FamilyDelimited},
		{"CSV", domain.FamilyDelimited},
		{".xlsx", domain.FamilyDelimited},
		{".xml", domain.FamilyHierarchical},
		{".XML", domain.FamilyHierarchical},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			parser, err := factory.GetParser(tt.ext)
			require.NoError(t, err)
			assert.Equal(t, tt.family, parser.Family())
		})
	}
}

func TestParserFactory_UnsupportedFileType(t *testing.T) {
	factory := NewParserFactory(nil, logger.Discard())

	// The file does not exist: rejection must happen before any I/O.
	_, err := factory.ParseFile(context.Background(), filepath.Join(t.TempDir(), "data.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFileType)

	_, err = factory.GetParserForFile("README")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFileType)

	assert.False(t, factory.IsSupported(".json"))
	assert.True(t, factory.IsSupported("txt"))
}

func TestParserFactory_ParseFile(t *testing.T) {
	tempDir := setupTestFiles(t)
	factory := NewParserFactory(nil, logger.Discard())

	tests := []struct {
		filename string
		format   string
		records  int
	}{
		{"small_csv.txt", "CSV", 2},
		{"small.csv", "CSV", 2},
		{"small_xml.xml", "XML", 2},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			result, err := factory.ParseFile(context.Background(), filepath.Join(tempDir, tt.filename))

			require.NoError(t, err)
			assert.Equal(t, tt.format, result.Format)
			assert.Len(t, result.Records, tt.records)
		})
	}
}

func TestParserFactory_SupportedFormats(t *testing.T) {
	factory := NewParserFactory(nil, logger.Discard())

	assert.Equal(t, []string{".csv", ".txt", ".xlsx", ".xml"}, factory.SupportedFormats())
}

func TestParserConfig_MaxFileSize(t *testing.T) {
	tempDir := setupTestFiles(t)

	config := DefaultParserConfig()
	config.MaxFileSize = 10

	_, err := NewDelimitedParser(config, logger.Discard()).Parse(context.Background(), filepath.Join(tempDir, "small.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFileTooLarge)
}

func TestParse_MissingFile(t *testing.T) {
	_, err := NewXMLParser(nil).Parse(context.Background(), filepath.Join(t.TempDir(), "absent.xml"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidFile))
}

func TestContext_Cancellation(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 10000; i++ {
		buf.WriteString("1|x,y\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDelimitedParser(nil, logger.Discard()).ParseStream(ctx, &buf)
	assert.Equal(t, context.Canceled, err)

	_, err = NewTreeReducer(XMLStrategyEvents).Reduce(ctx, strings.NewReader(smallFeed))
	assert.Equal(t, context.Canceled, err)
}

func TestDefaultParserConfig(t *testing.T) {
	config := DefaultParserConfig()

	assert.Equal(t, "id", config.IDField)
	assert.Equal(t, XMLStrategyEvents, config.XMLStrategy)
	assert.Equal(t, int64(500*1024*1024), config.MaxFileSize)
}
