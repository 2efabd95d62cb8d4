// Package media provides the rehosting pipeline that turns a provider's
// ephemeral result URL into a durable artifact: stream-download to a
// transient file, upload to the blob store, and unconditionally remove the
// transient copy.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/vidforge/vidforge-api/internal/storage"
)

// Static errors for the rehosting pipeline. The two classes stay distinct
// so a capture failure after provider success is tellable apart from a
// provider-side failure in logs and task messages.
var (
	// ErrDownload is returned when the remote artifact cannot be fetched.
	ErrDownload = errors.New("media: download failed")
	// ErrStore is returned when the blob store upload fails.
	ErrStore = errors.New("media: blob store upload failed")
)

// Rehoster defines the interface for capturing a remote artifact into
// durable storage.
type Rehoster interface {
	// Rehost downloads the resource at remoteURL and uploads it to the
	// blob store under an owner-scoped key, returning the durable URL.
	Rehost(ctx context.Context, remoteURL, ownerID, taskID string) (string, error)
}

// HTTPRehoster is the HTTP implementation of Rehoster.
type HTTPRehoster struct {
	storage    storage.Storage
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// RehosterOption is a function that configures an HTTPRehoster.
type RehosterOption func(*HTTPRehoster)

// WithHTTPClient sets a custom HTTP client for downloads.
func WithHTTPClient(c *http.Client) RehosterOption {
	return func(r *HTTPRehoster) {
		r.httpClient = c
	}
}

// WithDownloadTimeout bounds the time spent fetching the remote artifact.
func WithDownloadTimeout(d time.Duration) RehosterOption {
	return func(r *HTTPRehoster) {
		r.timeout = d
	}
}

// NewHTTPRehoster creates a new rehosting pipeline over the given storage.
func NewHTTPRehoster(store storage.Storage, logger *slog.Logger, opts ...RehosterOption) *HTTPRehoster {
	if logger == nil {
		logger = slog.Default()
	}
	r := &HTTPRehoster{
		storage:    store,
		httpClient: &http.Client{},
		timeout:    60 * time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rehost downloads the remote resource to a transient file, uploads the
// bytes to the blob store, and removes the transient file on every path.
// Cleanup failures are logged and never mask the pipeline result.
func (r *HTTPRehoster) Rehost(ctx context.Context, remoteURL, ownerID, taskID string) (string, error) {
	downloadCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrDownload, err)
	}
	req.Header.Set("User-Agent", "vidforge/1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: unexpected status %d", ErrDownload, resp.StatusCode)
	}

	tempPath, err := r.storage.SaveTemp(downloadCtx, "video_"+taskID, resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer r.cleanup(ctx, tempPath)

	info, err := os.Stat(tempPath)
	if err != nil {
		return "", fmt.Errorf("%w: stat transient file: %v", ErrDownload, err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%w: downloaded file is empty", ErrDownload)
	}

	f, err := r.storage.LoadTemp(ctx, tempPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer func() { _ = f.Close() }()

	key := fmt.Sprintf("videos/%s/%s.mp4", ownerID, taskID)
	url, err := r.storage.Upload(ctx, key, "video/mp4", f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStore, err)
	}

	r.logger.Info("artifact rehosted",
		slog.String("task_id", taskID),
		slog.String("key", key),
		slog.Int64("size_bytes", info.Size()),
	)

	return url, nil
}

// cleanup removes the transient file. Runs on success and failure alike;
// a failed removal is logged and swallowed.
func (r *HTTPRehoster) cleanup(ctx context.Context, path string) {
	if err := r.storage.CleanupTemp(context.WithoutCancel(ctx), []string{path}); err != nil {
		r.logger.Warn("transient file cleanup failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
