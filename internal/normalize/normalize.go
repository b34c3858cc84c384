// Package normalize turns raw Latin-1 portal bytes into clean Unicode text.
//
// The portal emits ISO-8859-1 pages whose upstream data was frequently
// double-encoded (UTF-8 stored, then served as Latin-1), so the pipeline is
// decode, entity expansion, mojibake repair, whitespace collapse. All
// functions are pure and safe for concurrent use.
package normalize

import (
	"io"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// NewLatin1Reader wraps r so that ISO-8859-1 bytes read as UTF-8 text.
// Every byte maps 1:1 to U+0000..U+00FF; the decode cannot fail.
func NewLatin1Reader(r io.Reader) io.Reader {
	return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
}

// Latin1 decodes an ISO-8859-1 byte buffer into a Unicode string.
func Latin1(b []byte) string {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		// Unreachable for ISO-8859-1, which accepts every byte.
		return string(b)
	}
	return string(decoded)
}

// Clean applies the full text pipeline to already tag-free text:
// entity decode, mojibake repair, whitespace collapse.
func Clean(s string) string {
	return CollapseWhitespace(RepairMojibake(DecodeEntities(s)))
}

// CellText cleans the inner HTML of a table cell: tags are stripped
// first so broken entities inside attributes never reach the decoder.
func CellText(rawHTML string) string {
	return Clean(StripTags(rawHTML))
}
