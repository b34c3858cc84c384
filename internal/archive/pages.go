package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/univalle-dev/asignacion-go/internal/logger"
)

// pageUploadTimeout bounds one raw page upload so a slow bucket cannot
// stall the harvest worker that fetched the page.
const pageUploadTimeout = 30 * time.Second

// PageArchiver copies every fetched portal page into the bucket,
// zstd-compressed, keyed under the run that fetched it. Parse
// regressions are then replayable offline without re-hitting the
// portal. Archive failures are logged and swallowed; the harvest never
// depends on the archive.
type PageArchiver struct {
	client *Client
	runID  string
	log    *logger.Logger
}

// NewPageArchiver scopes an archiver to one harvest run.
func NewPageArchiver(client *Client, runID string, log *logger.Logger) *PageArchiver {
	return &PageArchiver{client: client, runID: runID, log: log}
}

// PageKey is the object key for one archived page.
func PageKey(runID, periodLabel, cedula string) string {
	return fmt.Sprintf("runs/%s/%s/%s.html.zst", runID, periodLabel, cedula)
}

// ArchivePage compresses and uploads one page. Never returns an error:
// a lost page costs a replay, not a run.
func (a *PageArchiver) ArchivePage(ctx context.Context, cedula, periodLabel, page string) {
	if a == nil || a.client == nil {
		return
	}

	compressed, err := compressBytes([]byte(page))
	if err != nil {
		a.log.WithError(err).
			WithField("cedula", cedula).
			WithField("periodo", periodLabel).
			Warn("Failed to compress page for archive")
		return
	}

	uploadCtx, cancel := context.WithTimeout(ctx, pageUploadTimeout)
	defer cancel()

	key := PageKey(a.runID, periodLabel, cedula)
	if _, err := a.client.Upload(uploadCtx, key, bytes.NewReader(compressed), "application/zstd"); err != nil {
		a.log.WithError(err).
			WithField("key", key).
			Warn("Failed to archive page")
	}
}
