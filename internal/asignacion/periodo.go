package asignacion

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	domerrors "github.com/univalle-dev/asignacion-go/internal/errors"
	"github.com/univalle-dev/asignacion-go/internal/normalize"
	"github.com/univalle-dev/asignacion-go/internal/sliceutil"
)

var (
	// periodLabelRE is the strict configuration form, no padding.
	periodLabelRE = regexp.MustCompile(`^(\d{4})-([12])$`)

	// periodTextRE finds a period inside free option text; the portal
	// writes "2026 - 01", "2025-2" and "2025 1" interchangeably.
	periodTextRE = regexp.MustCompile(`(\d{4})\s*[-\s]\s*0?([12])\b`)

	optionRE = regexp.MustCompile(`(?is)<option[^>]*value\s*=\s*["']?([^"'>\s]+)["']?[^>]*>(.*?)</option>`)
)

// FormatLabel renders the canonical "YYYY-T" label.
func FormatLabel(year, term int) string {
	return fmt.Sprintf("%d-%d", year, term)
}

// ParsePeriodLabel validates a configured "YYYY-T" label. The returned
// Period has no portal id.
func ParsePeriodLabel(label string) (Period, error) {
	m := periodLabelRE.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return Period{}, domerrors.NewFormatError("periodo", label, "expected YYYY-T with term 1 or 2")
	}
	year, _ := strconv.Atoi(m[1])
	term, _ := strconv.Atoi(m[2])
	return Period{Year: year, Term: term, Label: FormatLabel(year, term)}, nil
}

// PeriodFromOption builds a Period from one <option> of the listing
// page. Options whose value is not a positive integer, or whose text
// has no recognizable period, are dropped.
func PeriodFromOption(value, text string) (Period, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return Period{}, false
	}
	m := periodTextRE.FindStringSubmatch(normalize.Clean(text))
	if m == nil {
		return Period{}, false
	}
	year, _ := strconv.Atoi(m[1])
	term, _ := strconv.Atoi(m[2])
	return Period{ID: id, Year: year, Term: term, Label: FormatLabel(year, term)}, true
}

// ParsePeriodOptions extracts every period the listing page offers, in
// document order, before sorting or deduplication.
func ParsePeriodOptions(html string) []Period {
	var periods []Period
	for _, m := range optionRE.FindAllStringSubmatch(html, -1) {
		if p, ok := PeriodFromOption(m[1], m[2]); ok {
			periods = append(periods, p)
		}
	}
	return periods
}

// SortPeriods orders newest first: year descending, then term
// descending. The sort is stable so duplicate ids keep their original
// relative order for deduplication.
func SortPeriods(periods []Period) {
	sort.SliceStable(periods, func(i, j int) bool {
		if periods[i].Year != periods[j].Year {
			return periods[i].Year > periods[j].Year
		}
		return periods[i].Term > periods[j].Term
	})
}

// NormalizePeriods sorts, deduplicates by id keeping the first
// occurrence, and returns at most n periods. n <= 0 means no limit.
func NormalizePeriods(periods []Period, n int) []Period {
	SortPeriods(periods)
	periods = sliceutil.Deduplicate(periods, func(p Period) int { return p.ID })
	if n > 0 && len(periods) > n {
		periods = periods[:n]
	}
	return periods
}

// EnumerateBack produces the preparation list: the current period plus
// its n predecessors walking backward by term, so ("2026-1", 3) yields
// 2026-1, 2025-2, 2025-1, 2024-2.
func EnumerateBack(currentLabel string, n int) ([]string, error) {
	current, err := ParsePeriodLabel(currentLabel)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, n+1)
	year, term := current.Year, current.Term
	for i := 0; i <= n; i++ {
		labels = append(labels, FormatLabel(year, term))
		if term == 1 {
			year--
			term = 2
		} else {
			term = 1
		}
	}
	return labels, nil
}
