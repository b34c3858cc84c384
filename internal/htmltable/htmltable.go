// Package htmltable extracts tables from the portal's legacy HTML.
//
// The pages predate any consistent markup: tags are unclosed, attributes
// unquoted, and layout tables wrap content tables. Extraction therefore
// works on non-greedy tag-pair matching rather than a DOM, which mirrors
// how tolerant the downstream classifier has to be anyway.
package htmltable

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/univalle-dev/asignacion-go/internal/normalize"
)

var (
	tableRE      = regexp.MustCompile(`(?is)<table[^>]*>(.*?)</table>`)
	rowRE        = regexp.MustCompile(`(?is)<tr([^>]*)>(.*?)</tr>`)
	cellRE       = regexp.MustCompile(`(?is)<t[dh]([^>]*)>(.*?)</t[dh]>`)
	colspanRE    = regexp.MustCompile(`(?i)colspan\s*=\s*"?(\d+)`)
	backgroundRE = regexp.MustCompile(`(?i)(?:bgcolor|background)\s*=`)
	nestedRE     = regexp.MustCompile(`(?i)<table[\s>]`)
)

// maxColspan caps replication so a malformed colspan cannot balloon a row.
const maxColspan = 64

// Cell is one <td> or <th>. Raw keeps the inner HTML so nested tables can
// be re-extracted from it; Text is the cleaned content.
type Cell struct {
	Raw  string
	Text string
}

// Row is a table row with colspan already applied: a cell with colspan=N
// appears N times so header alignment downstream is by plain index.
type Row struct {
	Cells         []Cell
	HasBackground bool
}

// Texts returns the cleaned cell values in order.
func (r Row) Texts() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.Text
	}
	return out
}

// Table is one extracted table plus the cleaned text that preceded it in
// the document. Section subtitles ("ASIGNATURAS DE POSTGRADO" and the
// like) live in that preamble, not inside the table itself.
type Table struct {
	Preamble string
	Rows     []Row
}

// Parse extracts every table from the page in document order.
func Parse(html string) []Table {
	spans := tableRE.FindAllStringSubmatchIndex(html, -1)
	if len(spans) == 0 {
		return nil
	}

	tables := make([]Table, 0, len(spans))
	prevEnd := 0
	for _, m := range spans {
		tables = append(tables, Table{
			Preamble: normalize.CellText(html[prevEnd:m[0]]),
			Rows:     parseRows(html[m[2]:m[3]]),
		})
		prevEnd = m[1]
	}
	return tables
}

// ContainsNestedTable reports whether a raw cell holds another table,
// letting the caller recurse with Parse on the cell content.
func ContainsNestedTable(rawCell string) bool {
	return nestedRE.MatchString(rawCell)
}

func parseRows(inner string) []Row {
	rowMatches := rowRE.FindAllStringSubmatch(inner, -1)
	rows := make([]Row, 0, len(rowMatches))
	for _, rm := range rowMatches {
		row := Row{HasBackground: backgroundRE.MatchString(rm[1])}
		for _, cm := range cellRE.FindAllStringSubmatch(rm[2], -1) {
			if backgroundRE.MatchString(cm[1]) {
				row.HasBackground = true
			}
			cell := Cell{Raw: cm[2], Text: normalize.CellText(cm[2])}
			for i := 0; i < colspan(cm[1]); i++ {
				row.Cells = append(row.Cells, cell)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func colspan(attrs string) int {
	m := colspanRE.FindStringSubmatch(attrs)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	if n > maxColspan {
		return maxColspan
	}
	return n
}

// uppercased is the normalized form classification works on.
func uppercased(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ToUpper(strings.TrimSpace(c))
	}
	return out
}
