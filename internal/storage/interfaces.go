// Package storage persists harvested documents, spreadsheet tab
// metadata and run summaries in SQLite. The repository interfaces
// decouple the harvest and API layers from the concrete DB for testing.
package storage

import (
	"context"
	"time"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
)

// DocumentRepository defines cached-document operations.
type DocumentRepository interface {
	SaveDocument(ctx context.Context, doc *asignacion.FacultyDocument) error
	SaveDocumentsBatch(ctx context.Context, docs []*asignacion.FacultyDocument) error
	GetDocument(ctx context.Context, cedula, periodo string) (*asignacion.FacultyDocument, error)
	GetDocumentsByCedula(ctx context.Context, cedula string) ([]*asignacion.FacultyDocument, error)
	GetDocumentsByPeriodo(ctx context.Context, periodo string) ([]*asignacion.FacultyDocument, error)
	GetAllDocuments(ctx context.Context) ([]*asignacion.FacultyDocument, error)
	SearchDocumentsByName(ctx context.Context, name string) ([]Document, error)
	PeriodoCounts(ctx context.Context) ([]PeriodoCount, error)
	DeleteExpiredDocuments(ctx context.Context, ttl time.Duration) (int64, error)
	CountDocuments(ctx context.Context) (int, error)
}

// SheetMetaRepository defines spreadsheet tab metadata caching.
type SheetMetaRepository interface {
	SaveSheetMeta(ctx context.Context, meta *SheetMeta) error
	GetSheetMeta(ctx context.Context, spreadsheetID, title string, ttl time.Duration) (*SheetMeta, error)
	DeleteSheetMeta(ctx context.Context, spreadsheetID string) error
}

// RunRepository defines harvest run summary operations.
type RunRepository interface {
	SaveRunSummary(ctx context.Context, run *RunSummary) error
	GetRunSummary(ctx context.Context, id string) (*RunSummary, error)
	ListRunSummaries(ctx context.Context, limit int) ([]RunSummary, error)
	PruneRunSummaries(ctx context.Context, keep int) (int64, error)
}

// HealthRepository defines the health check operations.
type HealthRepository interface {
	// Ping verifies the database connections are alive.
	Ping(ctx context.Context) error

	// Ready checks the database can serve queries, more thorough than Ping.
	Ready(ctx context.Context) error
}

// Repository combines all repository interfaces. The DB type implements
// it, providing a single entry point for data operations.
type Repository interface {
	DocumentRepository
	SheetMetaRepository
	RunRepository
	HealthRepository
	Close() error
}

// Ensure DB implements all repository interfaces at compile time.
var (
	_ DocumentRepository  = (*DB)(nil)
	_ SheetMetaRepository = (*DB)(nil)
	_ RunRepository       = (*DB)(nil)
	_ HealthRepository    = (*DB)(nil)
	_ Repository          = (*DB)(nil)
)
