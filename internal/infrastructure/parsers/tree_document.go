package parsers

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

// xmlNode is a generic element decoded by encoding/xml
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

type documentReducer struct{}

func (documentReducer) Strategy() XMLStrategy { return XMLStrategyDocument }

func (documentReducer) Reduce(ctx context.Context, r io.Reader) (any, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = xmlCharsetReader

	var root xmlNode
	if err := decoder.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.MalformedRecord("XML document has no root element")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformedRecord, "failed to decode XML document")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return map[string]any{root.XMLName.Local: reduceNode(&root)}, nil
}

func reduceNode(n *xmlNode) any {
	groups := seedAttributes(n.Attrs)
	for i := range n.Children {
		child := &n.Children[i]
		groups.add(child.XMLName.Local, reduceNode(child))
	}
	return groups.collapse(strings.TrimSpace(n.Text))
}
