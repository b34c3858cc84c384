package harvest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	"github.com/univalle-dev/asignacion-go/internal/stringutil"
)

// Summarize renders the human-readable run report: totals, per-period
// document counts, every failed (cedula, period) pair and every
// critical error. Printed at the end of each batch run.
func Summarize(run *asignacion.HarvestRun, stats *Stats, duration time.Duration) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Harvest run: %d cedulas x %d periodos in %s\n",
		len(run.Cedulas), len(run.Periods), duration.Round(time.Second))
	fmt.Fprintf(&b, "  documents: %d (fetched %d, cache %d), empty %d, failed %d\n",
		len(run.Documents), stats.Fetched.Load(), stats.CacheHits.Load(),
		stats.Empty.Load(), stats.Failed.Load())

	if len(run.Periods) > 0 {
		counts := make(map[string]int, len(run.Periods))
		for _, doc := range run.Documents {
			counts[doc.Period.Label]++
		}
		b.WriteString("  per periodo:\n")
		for _, p := range run.Periods {
			fmt.Fprintf(&b, "    %s: %d\n", p.Label, counts[p.Label])
		}
	}

	if len(run.PerCedulaErrors) > 0 {
		cedulas := make([]string, 0, len(run.PerCedulaErrors))
		for cedula := range run.PerCedulaErrors {
			cedulas = append(cedulas, cedula)
		}
		sort.Strings(cedulas)

		fmt.Fprintf(&b, "  failures (%d pairs):\n", run.FailedPairs())
		for _, cedula := range cedulas {
			parts := make([]string, 0, len(run.PerCedulaErrors[cedula]))
			for _, pe := range run.PerCedulaErrors[cedula] {
				parts = append(parts, fmt.Sprintf("%s (%s)", pe.Period, stringutil.Truncate(pe.Message, 120)))
			}
			fmt.Fprintf(&b, "    %s: %s\n", cedula, strings.Join(parts, "; "))
		}
	}

	if len(run.CriticalErrors) > 0 {
		b.WriteString("  critical:\n")
		for _, msg := range run.CriticalErrors {
			fmt.Fprintf(&b, "    %s\n", stringutil.Truncate(msg, 200))
		}
	}

	return b.String()
}
