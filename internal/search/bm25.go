// Package search provides BM25 keyword search over the cached document
// corpus: professor names plus the names of every assigned activity.
package search

import (
	"context"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/iwilltry42/bm25-go/bm25"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	"github.com/univalle-dev/asignacion-go/internal/logger"
	"github.com/univalle-dev/asignacion-go/internal/storage"
	"github.com/univalle-dev/asignacion-go/internal/stringutil"
)

// MaxResults is the default result cap per period. Each searched period
// independently returns up to this many documents.
const MaxResults = 10

// Result is one matching document with a relative confidence score.
// Confidence is the BM25 score divided by the best score within the
// same period, so the top match of each period is always 1.0.
type Result struct {
	Cedula     string  `json:"cedula"`
	Nombre     string  `json:"nombre"`
	Unidad     string  `json:"unidad,omitempty"`
	Periodo    string  `json:"periodo"`
	Activities int     `json:"activities"`
	Confidence float32 `json:"confidence"`
}

// periodKey identifies one academic period for indexing.
type periodKey struct {
	Year int
	Term int
}

// docMeta is the displayable slice of an indexed document.
type docMeta struct {
	Nombre     string
	Unidad     string
	Periodo    string
	Activities int
}

// periodIndex is the BM25 engine for a single period. Per-period
// engines keep IDF independent: a term common in 2026-1 but rare in
// 2025-2 weighs differently in each.
type periodIndex struct {
	engine  *bm25.BM25Okapi
	corpus  []string
	cedulas []string           // cedula at each corpus index
	label   string             // period label, e.g. "2026-1"
	meta    map[string]docMeta // cedula -> metadata
}

// Index holds one BM25 engine per period over the cached corpus.
type Index struct {
	periods     map[periodKey]*periodIndex
	sortedKeys  []periodKey // newest first
	logger      *logger.Logger
	mu          sync.RWMutex
	initialized bool
}

// NewIndex creates an empty index.
func NewIndex(log *logger.Logger) *Index {
	return &Index{
		periods: make(map[periodKey]*periodIndex),
		logger:  log,
	}
}

// Initialize rebuilds every per-period engine from the given documents.
func (idx *Index) Initialize(docs []*asignacion.FacultyDocument) error {
	if idx == nil {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.periods = make(map[periodKey]*periodIndex)
	idx.sortedKeys = nil

	groups := make(map[periodKey][]*asignacion.FacultyDocument)
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		key := periodKey{Year: doc.Period.Year, Term: doc.Period.Term}
		groups[key] = append(groups[key], doc)
	}

	total := 0
	for key, group := range groups {
		pidx := &periodIndex{meta: make(map[string]docMeta)}
		for _, doc := range group {
			pidx.label = doc.Period.Label
			if _, exists := pidx.meta[doc.Cedula]; exists {
				continue
			}
			content := contentForIndexing(doc)
			if strings.TrimSpace(content) == "" {
				continue
			}
			pidx.meta[doc.Cedula] = metaFor(doc)
			pidx.corpus = append(pidx.corpus, content)
			pidx.cedulas = append(pidx.cedulas, doc.Cedula)
		}
		if len(pidx.corpus) == 0 {
			continue
		}

		engine, err := bm25.NewBM25Okapi(pidx.corpus, tokenizeSpanish, 1.5, 0.75, nil)
		if err != nil {
			return err
		}
		pidx.engine = engine
		idx.periods[key] = pidx
		idx.sortedKeys = append(idx.sortedKeys, key)
		total += len(pidx.corpus)
	}

	slices.SortFunc(idx.sortedKeys, func(a, b periodKey) int {
		if a.Year != b.Year {
			return b.Year - a.Year
		}
		return b.Term - a.Term
	})

	idx.initialized = true
	idx.logger.WithField("documents", total).
		WithField("periods", len(idx.periods)).
		Info("Search index initialized")
	return nil
}

// RebuildFromDB reloads the cached corpus and rebuilds every engine.
// Called after harvests and snapshot swaps so searches see fresh data.
func (idx *Index) RebuildFromDB(ctx context.Context, db *storage.DB) error {
	if idx == nil {
		return nil
	}
	docs, err := db.GetAllDocuments(ctx)
	if err != nil {
		return err
	}
	return idx.Initialize(docs)
}

// Add indexes a single freshly scraped document. BM25 needs a full IDF
// recalculation, so the document's period engine is rebuilt; batch
// loads should use Initialize instead.
func (idx *Index) Add(doc *asignacion.FacultyDocument) error {
	if idx == nil || doc == nil {
		return nil
	}

	content := contentForIndexing(doc)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := periodKey{Year: doc.Period.Year, Term: doc.Period.Term}
	pidx := idx.periods[key]
	if pidx == nil {
		pidx = &periodIndex{meta: make(map[string]docMeta), label: doc.Period.Label}
		idx.periods[key] = pidx
		idx.sortedKeys = append(idx.sortedKeys, key)
		slices.SortFunc(idx.sortedKeys, func(a, b periodKey) int {
			if a.Year != b.Year {
				return b.Year - a.Year
			}
			return b.Term - a.Term
		})
	}

	if _, exists := pidx.meta[doc.Cedula]; exists {
		return nil
	}

	pidx.meta[doc.Cedula] = metaFor(doc)
	pidx.corpus = append(pidx.corpus, content)
	pidx.cedulas = append(pidx.cedulas, doc.Cedula)

	engine, err := bm25.NewBM25Okapi(pidx.corpus, tokenizeSpanish, 1.5, 0.75, nil)
	if err != nil {
		return err
	}
	pidx.engine = engine
	idx.initialized = true
	return nil
}

// Search queries the newest two periods independently and combines
// their results. Confidence is relative within each period, so both
// periods surface their own best matches.
func (idx *Index) Search(_ context.Context, query string, topN int) ([]Result, error) {
	if idx == nil {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topN <= 0 {
		topN = MaxResults
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.initialized || len(idx.sortedKeys) == 0 {
		return nil, nil
	}

	newest := idx.sortedKeys[:min(2, len(idx.sortedKeys))]
	var results []Result
	for _, key := range newest {
		results = append(results, idx.periods[key].search(query, topN)...)
	}
	return results, nil
}

// SearchPeriod queries a single period's engine.
func (idx *Index) SearchPeriod(_ context.Context, query, periodo string, topN int) ([]Result, error) {
	if idx == nil {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topN <= 0 {
		topN = MaxResults
	}

	period, err := asignacion.ParsePeriodLabel(periodo)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	pidx := idx.periods[periodKey{Year: period.Year, Term: period.Term}]
	if pidx == nil {
		return nil, nil
	}
	return pidx.search(query, topN), nil
}

// IsEnabled reports whether the index holds at least one engine.
func (idx *Index) IsEnabled() bool {
	if idx == nil {
		return false
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.initialized && len(idx.periods) > 0
}

// Count returns the number of indexed documents across all periods.
func (idx *Index) Count() int {
	if idx == nil {
		return 0
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	total := 0
	for _, pidx := range idx.periods {
		total += len(pidx.corpus)
	}
	return total
}

// search runs one period's engine. Caller holds at least a read lock.
func (pidx *periodIndex) search(query string, topN int) []Result {
	if pidx == nil || pidx.engine == nil || len(pidx.corpus) == 0 {
		return nil
	}

	tokens := tokenizeSpanish(query)
	if len(tokens) == 0 {
		return nil
	}

	scores, err := pidx.engine.GetScores(tokens)
	if err != nil {
		return nil
	}

	type scored struct {
		docID int
		score float64
	}
	var hits []scored
	for docID, score := range scores {
		if score != 0 {
			hits = append(hits, scored{docID: docID, score: score})
		}
	}
	slices.SortFunc(hits, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
	if len(hits) > topN {
		hits = hits[:topN]
	}
	if len(hits) == 0 {
		return nil
	}

	maxScore := hits[0].score
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.docID >= len(pidx.cedulas) {
			continue
		}
		cedula := pidx.cedulas[h.docID]
		meta := pidx.meta[cedula]
		results = append(results, Result{
			Cedula:     cedula,
			Nombre:     meta.Nombre,
			Unidad:     meta.Unidad,
			Periodo:    meta.Periodo,
			Activities: meta.Activities,
			Confidence: relativeConfidence(h.score, maxScore),
		})
	}
	return results
}

// relativeConfidence maps a BM25 score to [0,1] against the period's
// best score. Absolute BM25 scores are not comparable across queries,
// relative ones are.
func relativeConfidence(score, maxScore float64) float32 {
	if maxScore == 0 {
		return 0
	}
	if maxScore > 0 && score > 0 {
		c := score / maxScore
		if c > 1 {
			c = 1
		}
		return float32(c)
	}
	if maxScore < 0 && score < 0 {
		c := maxScore / score
		if c > 1 {
			c = 1
		}
		if c < 0 {
			c = 0
		}
		return float32(c)
	}
	return 0
}

func metaFor(doc *asignacion.FacultyDocument) docMeta {
	return docMeta{
		Nombre:     doc.Personal.FullName(),
		Unidad:     doc.Personal.UnidadAcademica,
		Periodo:    doc.Period.Label,
		Activities: doc.TotalActivities(),
	}
}

// contentForIndexing builds one searchable string per document: the
// professor's name followed by the name of every activity.
func contentForIndexing(doc *asignacion.FacultyDocument) string {
	var b strings.Builder
	write := func(s string) {
		if strings.TrimSpace(s) == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}

	write(doc.Personal.FullName())
	write(doc.Personal.UnidadAcademica)
	for _, row := range asignacion.Flatten(*doc) {
		write(row.NombreActividad)
	}
	return b.String()
}

// tokenizeSpanish lowercases, folds accents, and splits on every
// non-alphanumeric rune. "Investigación" and "investigacion" produce
// the same token, matching how the portal mixes the two spellings.
func tokenizeSpanish(text string) []string {
	text = stringutil.NormalizeQuery(text)

	var tokens []string
	var word strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
			continue
		}
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	if word.Len() > 0 {
		tokens = append(tokens, word.String())
	}
	return tokens
}
