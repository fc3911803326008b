package storage

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Migrator copies provider-hosted media into the object store before the
// ephemeral URLs expire. Keys are derived deterministically from the job, so
// two concurrent migrations of the same output land on the same key and the
// second write is a harmless overwrite.
type Migrator struct {
	store      ObjectStore
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewMigrator builds a Migrator over the given store.
func NewMigrator(store ObjectStore, httpClient *http.Client, logger zerolog.Logger) *Migrator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Migrator{store: store, httpClient: httpClient, logger: logger}
}

// Migrate downloads the source URL and uploads it under a key derived from
// owner, job, and output index. It returns the durable URL.
func (m *Migrator) Migrate(ctx context.Context, ownerID, jobID string, index int, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("storage: build download request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: download %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("storage: download %s: status %d", sourceURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	key := objectKey(ownerID, jobID, index, sourceURL, contentType)

	url, err := m.store.Upload(ctx, key, resp.Body, contentType)
	if err != nil {
		return "", err
	}
	m.logger.Info().Str("job_id", jobID).Str("key", key).Msg("migrated asset to durable storage")
	return url, nil
}

// objectKey derives the storage key. The extension comes from the source URL
// path when present, from the content type otherwise.
func objectKey(ownerID, jobID string, index int, sourceURL, contentType string) string {
	ext := path.Ext(strings.SplitN(path.Base(sourceURL), "?", 2)[0])
	if ext == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("assets/%s/%s/%d%s", ownerID, jobID, index, ext)
}
