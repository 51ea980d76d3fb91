// Package encoding provides text decoding utilities for motion-capture sources.
package encoding

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// utf8BOM is the byte-order mark some exporters prepend to UTF-8 files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// newDecoder decodes UTF-8 by default and switches to UTF-16 LE/BE when the
// input starts with the matching byte-order mark. Any BOM is consumed.
func newDecoder() transform.Transformer {
	return unicode.BOMOverride(unicode.UTF8.NewDecoder())
}

// DecodeBytes converts raw source bytes to UTF-8.
// BOM-marked UTF-8 and UTF-16 are honoured; input without a BOM that is not
// valid UTF-8 is treated as Windows-1252, which older exporters emit for
// joint names.
func DecodeBytes(data []byte) ([]byte, error) {
	if !hasBOM(data) && !utf8.Valid(data) {
		out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		return out, err
	}
	out, _, err := transform.Bytes(newDecoder(), data)
	return out, err
}

func hasBOM(data []byte) bool {
	if bytes.HasPrefix(data, utf8BOM) {
		return true
	}
	return len(data) >= 2 && ((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF))
}
