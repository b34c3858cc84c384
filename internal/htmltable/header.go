package htmltable

import "strings"

// headerMarkers are tokens that only ever occur in header rows on the
// portal's pages. They rescue tables whose header row lost its bgcolor
// attribute to hand editing.
var headerMarkers = []string{
	"APROBADO",
	"NOMBRE",
	"PROYECTO",
	"HORAS",
	"CODIGO",
	"ANTEPROYECTO",
	"PROPUESTA",
	"INVESTIGACION",
}

const (
	headerScanRows = 5
	markerScanRows = 3
)

// Header is a resolved header row: the original-casing cells plus the
// uppercased-trimmed vector the classifier matches on.
type Header struct {
	Index int
	Cells []string
	Upper []string
}

// Header finds the table's header row. First background-attributed row
// with at least one substantive cell wins; within the first three rows a
// marker token also qualifies. Row 0 is the fallback.
func (t Table) Header() Header {
	if len(t.Rows) == 0 {
		return Header{}
	}

	limit := len(t.Rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}

	for i := 0; i < limit; i++ {
		texts := t.Rows[i].Texts()
		if t.Rows[i].HasBackground && hasSubstantiveCell(texts) {
			return makeHeader(i, texts)
		}
		if i < markerScanRows && containsMarker(texts) {
			return makeHeader(i, texts)
		}
	}
	return makeHeader(0, t.Rows[0].Texts())
}

func makeHeader(index int, cells []string) Header {
	return Header{Index: index, Cells: cells, Upper: uppercased(cells)}
}

// hasSubstantiveCell reports whether any cell has at least three
// non-space characters, filtering out rows that are pure spacers.
func hasSubstantiveCell(cells []string) bool {
	for _, c := range cells {
		n := 0
		for _, r := range c {
			if r != ' ' {
				n++
			}
			if n >= 3 {
				return true
			}
		}
	}
	return false
}

func containsMarker(cells []string) bool {
	for _, c := range cells {
		upper := strings.ToUpper(c)
		for _, marker := range headerMarkers {
			if strings.Contains(upper, marker) {
				return true
			}
		}
	}
	return false
}
