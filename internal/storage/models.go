package storage

// Document is the metadata of one cached (cedula, periodo) document.
// The parsed payload travels separately as *asignacion.FacultyDocument.
type Document struct {
	Cedula   string `json:"cedula"`
	Periodo  string `json:"periodo"`
	Nombre   string `json:"nombre,omitempty"`
	Unidad   string `json:"unidad,omitempty"`
	CachedAt int64  `json:"cached_at"`
}

// PeriodoCount is the number of cached documents for one period label.
type PeriodoCount struct {
	Periodo string `json:"periodo"`
	Count   int    `json:"count"`
}

// SheetMeta caches one spreadsheet tab's identity and current row count.
type SheetMeta struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Title         string `json:"title"`
	SheetID       int64  `json:"sheet_id"`
	RowCount      int64  `json:"row_count"`
	CachedAt      int64  `json:"cached_at"`
}

// Harvest run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunSummary is the persisted outcome of one harvest run.
type RunSummary struct {
	ID           string   `json:"id"`
	StartedAt    int64    `json:"started_at"`
	FinishedAt   int64    `json:"finished_at,omitempty"` // zero while running
	Periods      []string `json:"periods"`
	TotalCedulas int      `json:"total_cedulas"`
	Fetched      int      `json:"fetched"`
	CacheHits    int      `json:"cache_hits"`
	Empty        int      `json:"empty"`
	Failed       int      `json:"failed"`
	RowsEmitted  int      `json:"rows_emitted"`
	Status       string   `json:"status"`
	LastError    string   `json:"last_error,omitempty"`
}
