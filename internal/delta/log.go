// Package delta keeps an append-only object log of documents scraped
// on demand by API servers. The next harvest run merges the log into
// its database before uploading a snapshot, so nothing a server
// scraped between runs is lost.
package delta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/univalle-dev/asignacion-go/internal/archive"
	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	"github.com/univalle-dev/asignacion-go/internal/storage"
)

// Recorder captures on-demand scrape results for later merging.
type Recorder interface {
	RecordDocuments(ctx context.Context, docs []*asignacion.FacultyDocument) error
}

// MergeStats summarizes one merge pass.
type MergeStats struct {
	ObjectsProcessed int
	ObjectsMerged    int
	ObjectsSkipped   int
}

// Entry is a single append-only log record.
type Entry struct {
	Type      string          `json:"type"`
	CreatedAt int64           `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// EntryTypeDocuments marks a batch of faculty documents.
const EntryTypeDocuments = "documents"

// Log writes and merges delta entries stored in the archive bucket.
// Every writer gets its own key subtree so concurrent servers never
// contend on object names.
type Log struct {
	client     *archive.Client
	prefix     string
	instanceID string
}

// NewLog creates a delta log rooted at prefix.
func NewLog(client *archive.Client, prefix, instanceID string) (*Log, error) {
	if client == nil {
		return nil, errors.New("delta: archive client is required")
	}
	prefix = normalizePrefix(prefix)
	if prefix == "" {
		return nil, errors.New("delta: prefix must not be empty")
	}
	if instanceID == "" {
		instanceID = "unknown"
	}
	return &Log{client: client, prefix: prefix, instanceID: instanceID}, nil
}

// RecordDocuments appends one batch of scraped documents to the log.
func (l *Log) RecordDocuments(ctx context.Context, docs []*asignacion.FacultyDocument) error {
	if len(docs) == 0 {
		return nil
	}
	return l.record(ctx, EntryTypeDocuments, docs)
}

// MergeIntoDB applies every pending entry to db in creation order and
// deletes entries that merged cleanly. Entries that fail to download,
// decode, or apply are skipped and left in place for the next pass.
func (l *Log) MergeIntoDB(ctx context.Context, db *storage.DB) (MergeStats, error) {
	keys, err := l.client.ListObjects(ctx, l.objectPrefix())
	if err != nil {
		return MergeStats{}, fmt.Errorf("delta: list objects: %w", err)
	}

	sort.Slice(keys, func(i, j int) bool {
		ti, okI := parseEntryTimestamp(keys[i])
		tj, okJ := parseEntryTimestamp(keys[j])
		if okI && okJ {
			return ti < tj
		}
		return keys[i] < keys[j]
	})

	stats := MergeStats{}
	for _, key := range keys {
		stats.ObjectsProcessed++
		if err := l.mergeObject(ctx, db, key); err != nil {
			stats.ObjectsSkipped++
			continue
		}
		stats.ObjectsMerged++
	}
	return stats, nil
}

func (l *Log) mergeObject(ctx context.Context, db *storage.DB, key string) error {
	body, _, err := l.client.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer func() {
		_ = body.Close()
	}()

	var entry Entry
	if err := json.NewDecoder(body).Decode(&entry); err != nil {
		return fmt.Errorf("decode entry %s: %w", key, err)
	}

	if err := applyEntry(ctx, db, entry); err != nil {
		return fmt.Errorf("apply entry %s: %w", key, err)
	}

	if err := l.client.DeleteObject(ctx, key); err != nil {
		return fmt.Errorf("delete entry %s: %w", key, err)
	}
	return nil
}

func applyEntry(ctx context.Context, db *storage.DB, entry Entry) error {
	switch entry.Type {
	case EntryTypeDocuments:
		var docs []asignacion.FacultyDocument
		if err := json.Unmarshal(entry.Payload, &docs); err != nil {
			return fmt.Errorf("decode documents: %w", err)
		}
		if len(docs) == 0 {
			return nil
		}
		ptrs := make([]*asignacion.FacultyDocument, len(docs))
		for i := range docs {
			ptrs[i] = &docs[i]
		}
		return db.SaveDocumentsBatch(ctx, ptrs)

	default:
		return fmt.Errorf("unknown entry type: %s", entry.Type)
	}
}

func (l *Log) record(ctx context.Context, entryType string, payload any) error {
	payloadData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("delta: marshal payload: %w", err)
	}

	entry := Entry{
		Type:      entryType,
		CreatedAt: time.Now().UTC().Unix(),
		Payload:   payloadData,
	}
	entryData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("delta: marshal entry: %w", err)
	}

	key := l.objectKey()
	if _, err := l.client.Upload(ctx, key, bytes.NewReader(entryData), "application/json"); err != nil {
		return fmt.Errorf("delta: upload entry: %w", err)
	}
	return nil
}

func (l *Log) objectPrefix() string {
	return l.prefix + "/"
}

// objectKey embeds a nanosecond timestamp so merge order follows
// creation order, and a UUID so two writes in the same nanosecond
// cannot collide.
func (l *Log) objectKey() string {
	return fmt.Sprintf("%s/%s/%d-%s.json", l.prefix, l.instanceID, time.Now().UnixNano(), uuid.NewString())
}

// parseEntryTimestamp extracts the leading nanosecond timestamp from an
// entry key's basename.
func parseEntryTimestamp(key string) (int64, bool) {
	base := filepath.Base(key)
	parts := strings.SplitN(base, "-", 2)
	if len(parts) == 0 {
		return 0, false
	}
	var ts int64
	if _, err := fmt.Sscan(parts[0], &ts); err != nil {
		return 0, false
	}
	return ts, true
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}
