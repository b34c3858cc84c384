// Package emit turns harvested documents into spreadsheet rows: each
// document is flattened to one row per activity, rows accumulate per
// period label, and every period flushes to its own tab as a single
// batch append. Sheet preparation (create, header repair, clear) runs
// exactly once per run, before any flush.
package emit

import (
	"context"
	"fmt"
	"time"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	domerrors "github.com/univalle-dev/asignacion-go/internal/errors"
	"github.com/univalle-dev/asignacion-go/internal/logger"
	"github.com/univalle-dev/asignacion-go/internal/metrics"
	"github.com/univalle-dev/asignacion-go/internal/sheets"
	"github.com/univalle-dev/asignacion-go/internal/storage"
)

// SheetStore is the slice of the spreadsheet transport the emitter
// needs. *sheets.Client satisfies it.
type SheetStore interface {
	EnsureSheet(ctx context.Context, spreadsheetID, title string, header []string) (*sheets.SheetInfo, error)
	AppendRows(ctx context.Context, spreadsheetID, title string, rows [][]string) error
}

// MetaStore caches prepared tab identities so the API side can list
// them without a Sheets round trip. *storage.DB satisfies it.
type MetaStore interface {
	SaveSheetMeta(ctx context.Context, meta *storage.SheetMeta) error
}

// Options carries the emitter's optional collaborators.
type Options struct {
	Meta    MetaStore
	Metrics *metrics.Metrics
}

// Emitter accumulates flattened rows per period label and writes them
// out. Add must be called from a single goroutine (the scheduler's
// consumer loop); PrepareSheets and FlushAll bracket the run.
type Emitter struct {
	store         SheetStore
	spreadsheetID string
	log           *logger.Logger
	meta          MetaStore
	metrics       *metrics.Metrics

	order    []string             // period labels in prepared-then-arrival order
	batches  map[string][][]string // period label -> rendered rows
	counts   map[string]int        // categoria -> rows accumulated
	prepared bool
}

// New builds an emitter targeting one spreadsheet.
func New(store SheetStore, spreadsheetID string, log *logger.Logger, opts Options) *Emitter {
	return &Emitter{
		store:         store,
		spreadsheetID: spreadsheetID,
		log:           log,
		meta:          opts.Meta,
		metrics:       opts.Metrics,
		batches:       make(map[string][][]string),
		counts:        make(map[string]int),
	}
}

// PrepareSheets guarantees one tab per period label, headed and empty
// below row 1. It runs at most once per emitter; later calls are
// no-ops. Any transport failure aborts the run, so the caller must not
// harvest after an error here.
func (e *Emitter) PrepareSheets(ctx context.Context, periods []asignacion.Period) error {
	if e.prepared {
		return nil
	}

	for _, p := range periods {
		info, err := e.store.EnsureSheet(ctx, e.spreadsheetID, p.Label, asignacion.SheetHeader)
		if err != nil {
			return domerrors.NewDependencyError("prepare_sheet", p.Label, err)
		}

		if _, ok := e.batches[p.Label]; !ok {
			e.order = append(e.order, p.Label)
			e.batches[p.Label] = nil
		}

		if e.meta != nil && info != nil {
			meta := &storage.SheetMeta{
				SpreadsheetID: e.spreadsheetID,
				Title:         info.Title,
				SheetID:       info.SheetID,
				RowCount:      1, // header only after clearing
			}
			if err := e.meta.SaveSheetMeta(ctx, meta); err != nil {
				e.log.WithError(err).
					WithField("title", info.Title).
					Warn("Failed to cache sheet meta")
			}
		}

		e.log.WithField("periodo", p.Label).Debug("Sheet prepared")
	}

	e.prepared = true
	return nil
}

// Add flattens one document and files its rows under the document's
// period label. Documents with no activities contribute nothing.
func (e *Emitter) Add(doc *asignacion.FacultyDocument) {
	if doc == nil {
		return
	}

	rows := asignacion.Flatten(*doc)
	if len(rows) == 0 {
		return
	}

	label := doc.Period.Label
	if _, ok := e.batches[label]; !ok {
		e.order = append(e.order, label)
	}
	for _, row := range rows {
		e.batches[label] = append(e.batches[label], row.Columns())
		e.counts[row.TipoActividad]++
	}
}

// Pending reports how many rows are accumulated across all periods.
func (e *Emitter) Pending() int {
	n := 0
	for _, rows := range e.batches {
		n += len(rows)
	}
	return n
}

// FlushAll writes each period's accumulated batch as one append call,
// in period order. A failed flush is recorded on the run and the
// remaining periods are still attempted; rows already written stay
// committed. The returned count is the number of rows that reached the
// spreadsheet.
func (e *Emitter) FlushAll(ctx context.Context, run *asignacion.HarvestRun) (int, error) {
	if !e.prepared {
		return 0, fmt.Errorf("sheets not prepared: call PrepareSheets before FlushAll")
	}

	written := 0
	for _, label := range e.order {
		rows := e.batches[label]
		if len(rows) == 0 {
			e.log.WithField("periodo", label).Debug("No rows to flush")
			continue
		}

		start := time.Now()
		err := e.store.AppendRows(ctx, e.spreadsheetID, label, rows)
		if e.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			e.metrics.RecordSheetFlush(status, time.Since(start).Seconds())
		}
		if err != nil {
			msg := fmt.Sprintf("flush %s: %v", label, err)
			run.CriticalErrors = append(run.CriticalErrors, msg)
			e.log.WithError(err).
				WithField("periodo", label).
				WithField("rows", len(rows)).
				Error("Sheet flush failed")
			continue
		}

		written += len(rows)
		e.log.WithField("periodo", label).
			WithField("rows", len(rows)).
			WithField("duration", time.Since(start)).
			Info("Sheet flushed")
	}

	if e.metrics != nil {
		for categoria, count := range e.counts {
			e.metrics.RecordRowsEmitted(categoria, count)
		}
	}

	return written, nil
}
