package parsers

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

// XMLStrategy selects how an XML document is reduced to nested values
type XMLStrategy string

const (
	// XMLStrategyEvents reduces a materialized enter/leave event sequence
	XMLStrategyEvents XMLStrategy = "events"
	// XMLStrategyDocument decodes a node tree first and reduces it recursively
	XMLStrategyDocument XMLStrategy = "document"
)

// ParseXMLStrategy accepts a strategy name or its numeric version alias
func ParseXMLStrategy(s string) (XMLStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1", string(XMLStrategyEvents):
		return XMLStrategyEvents, nil
	case "2", string(XMLStrategyDocument):
		return XMLStrategyDocument, nil
	default:
		return "", fmt.Errorf("unknown XML parser strategy %q (expected %s or %s)",
			s, XMLStrategyEvents, XMLStrategyDocument)
	}
}

// TreeReducer converts a whole XML document into nested values.
// The result for a document is {rootTag: reduced(root)}.
type TreeReducer interface {
	Reduce(ctx context.Context, r io.Reader) (any, error)
	Strategy() XMLStrategy
}

// NewTreeReducer returns the reducer for strategy
func NewTreeReducer(strategy XMLStrategy) TreeReducer {
	if strategy == XMLStrategyDocument {
		return documentReducer{}
	}
	return eventReducer{}
}

// valueGroups maps a tag or attribute name to the values collected under it
type valueGroups map[string][]any

func seedAttributes(attrs []xml.Attr) valueGroups {
	groups := make(valueGroups, len(attrs))
	for _, attr := range attrs {
		if isNamespaceDecl(attr) {
			continue
		}
		groups[attr.Name.Local] = append(groups[attr.Name.Local], attr.Value)
	}
	return groups
}

func isNamespaceDecl(attr xml.Attr) bool {
	return attr.Name.Space == "xmlns" || (attr.Name.Space == "" && attr.Name.Local == "xmlns")
}

func (g valueGroups) add(name string, value any) {
	g[name] = append(g[name], value)
}

// collapse produces the reduced value. Text survives only when nothing was
// collected; a name seen once maps to its single value, otherwise to the
// ordered list.
func (g valueGroups) collapse(text string) any {
	if len(g) == 0 {
		return text
	}

	out := make(map[string]any, len(g))
	for name, values := range g {
		if len(values) == 1 {
			out[name] = values[0]
		} else {
			out[name] = values
		}
	}
	return out
}

type eventKind int

const (
	enterEvent eventKind = iota
	leaveEvent
)

type xmlEvent struct {
	kind  eventKind
	name  string
	attrs []xml.Attr
	text  string
}

// collectEvents materializes the depth-first event stream of a document.
// Leave events carry the element's own character data.
func collectEvents(ctx context.Context, r io.Reader) ([]xmlEvent, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = xmlCharsetReader

	var events []xmlEvent
	var texts []*strings.Builder

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformedRecord, "failed to decode XML document")
		}

		switch t := token.(type) {
		case xml.StartElement:
			events = append(events, xmlEvent{
				kind:  enterEvent,
				name:  t.Name.Local,
				attrs: t.Copy().Attr,
			})
			texts = append(texts, &strings.Builder{})
		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		case xml.EndElement:
			text := texts[len(texts)-1].String()
			texts = texts[:len(texts)-1]
			events = append(events, xmlEvent{
				kind: leaveEvent,
				name: t.Name.Local,
				text: text,
			})
		}
	}

	if len(events) == 0 {
		return nil, apperrors.MalformedRecord("XML document has no root element")
	}
	return events, nil
}

// eventCursor is the single read position shared by all recursive reductions
type eventCursor struct {
	events []xmlEvent
	pos    int
}

// reduce consumes events up to and including current's leave event.
// With current == nil it consumes the rest of the sequence.
func (c *eventCursor) reduce(current *xmlEvent) any {
	groups := valueGroups{}
	if current != nil {
		groups = seedAttributes(current.attrs)
	}
	text := ""

	for c.pos < len(c.events) {
		ev := c.events[c.pos]
		c.pos++

		if ev.kind == enterEvent {
			groups.add(ev.name, c.reduce(&ev))
			continue
		}

		text = strings.TrimSpace(ev.text)
		break
	}

	return groups.collapse(text)
}

type eventReducer struct{}

func (eventReducer) Strategy() XMLStrategy { return XMLStrategyEvents }

func (eventReducer) Reduce(ctx context.Context, r io.Reader) (any, error) {
	events, err := collectEvents(ctx, r)
	if err != nil {
		return nil, err
	}

	cursor := &eventCursor{events: events}
	return cursor.reduce(nil), nil
}
