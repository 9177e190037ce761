package parsers

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

func isUTF8(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

// decodeInput wraps r so that it yields UTF-8 for the named IANA charset
func decodeInput(r io.Reader, charset string) (io.Reader, error) {
	if isUTF8(charset) {
		return r, nil
	}

	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown input encoding %q: %w", charset, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported input encoding %q", charset)
	}

	return transform.NewReader(r, enc.NewDecoder()), nil
}

// xmlCharsetReader is installed as xml.Decoder.CharsetReader for documents
// that declare a non UTF-8 encoding
func xmlCharsetReader(label string, input io.Reader) (io.Reader, error) {
	return decodeInput(input, label)
}
