// Package download streams catalogue products to disk. Files are written to
// a temporary name and renamed into place only after the full payload
// arrived, so a partial download never sits under the final filename.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/glorpus-work/ecget/internal/logger"
	"github.com/glorpus-work/ecget/pkg/auth"
	pkgerrors "github.com/glorpus-work/ecget/pkg/errors"
	"github.com/glorpus-work/ecget/pkg/fsutil"
	"github.com/glorpus-work/ecget/pkg/model"
)

// Progress is invoked at bounded intervals while a file streams in. It must
// return quickly; a slow callback stalls the engine and that is the caller's
// responsibility.
type Progress func(bytesSoFar, totalBytes int64)

// Options control a single fetch.
type Options struct {
	Dir      string // destination directory; created when absent
	Override bool   // re-fetch and overwrite an existing file
	Auth     auth.Authenticator
	Progress Progress
}

// progressInterval bounds how often the Progress callback fires.
const progressInterval = 250 * time.Millisecond

const (
	defaultMaxRetries = 3
	defaultBackoff    = 2 * time.Second
)

// Engine is a sequential HTTP download engine. An interrupted transfer is
// retried up to the configured bound before the file is reported as failed.
type Engine struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	backoff    time.Duration
}

// Config configures an Engine.
type Config struct {
	// Timeout bounds one whole transfer attempt; zero means unbounded.
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
	Backoff    time.Duration
}

// New creates a download engine.
func New(cfg Config) *Engine {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ecget/1.0"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Engine{
		client:     &http.Client{Timeout: cfg.Timeout},
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// Fetch downloads one descriptor into opts.Dir. A file that already exists
// under the descriptor's name yields a Skipped result without touching the
// network, unless Override is set. The returned result always accounts for
// the descriptor, whatever the outcome.
func (e *Engine) Fetch(ctx context.Context, desc model.FileDescriptor, opts Options) model.DownloadResult {
	start := time.Now()
	result := model.DownloadResult{Descriptor: desc}

	fail := func(err error) model.DownloadResult {
		result.Outcome = model.OutcomeFailed
		result.Reason = err
		result.Duration = time.Since(start)
		return result
	}

	if desc.RemoteURL == nil {
		return fail(pkgerrors.Wrap(pkgerrors.ErrDownloadFailed, "descriptor has no remote URL"))
	}
	if err := os.MkdirAll(opts.Dir, fsutil.DirModeDefault); err != nil {
		return fail(pkgerrors.Wrap(err, "could not create download dir"))
	}

	finalPath := filepath.Join(opts.Dir, desc.Name)
	if _, err := os.Stat(finalPath); err == nil && !opts.Override {
		result.Outcome = model.OutcomeSkipped
		result.Duration = time.Since(start)
		return result
	}

	written, err := e.fetchWithRetry(ctx, desc, finalPath, opts)
	if err != nil {
		return fail(err)
	}

	result.Outcome = model.OutcomeSuccess
	result.BytesWritten = written
	result.Duration = time.Since(start)
	return result
}

// fetchWithRetry re-runs the whole transfer on failure, up to the configured
// bound. Each attempt streams to a fresh temp file, so a retried failure never
// leaves a partial file under the final name.
func (e *Engine) fetchWithRetry(ctx context.Context, desc model.FileDescriptor, finalPath string, opts Options) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		written, err := e.fetchToTemp(ctx, desc, finalPath, opts)
		if err == nil {
			return written, nil
		}
		if ctx.Err() != nil {
			return 0, err
		}
		lastErr = err
		if attempt < e.maxRetries {
			logger.Warnf("download of %s failed (attempt %d/%d): %v", desc.Name, attempt, e.maxRetries, err)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(e.backoff):
			}
		}
	}
	return 0, lastErr
}

// fetchToTemp streams the payload to a temp file next to finalPath, verifies
// the byte count and renames it into place. The temp file is removed on any
// failure.
func (e *Engine) fetchToTemp(ctx context.Context, desc model.FileDescriptor, finalPath string, opts Options) (int64, error) {
	resp, err := e.doRequest(ctx, desc, opts.Auth)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	total := desc.SizeBytes
	if total == 0 && resp.ContentLength > 0 {
		total = resp.ContentLength
	}

	tmp, err := os.CreateTemp(opts.Dir, "dl-*.tmp")
	if err != nil {
		return 0, pkgerrors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()
	discard := func(err error) (int64, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, err
	}

	counter := &progressWriter{w: tmp, total: total, report: opts.Progress}
	if _, err := io.Copy(counter, resp.Body); err != nil {
		if ctx.Err() != nil {
			return discard(ctx.Err())
		}
		return discard(pkgerrors.Wrap(err, "could not write file"))
	}
	if err := tmp.Sync(); err != nil {
		return discard(pkgerrors.Wrap(err, "could not sync file"))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, pkgerrors.Wrap(err, "could not close file")
	}

	if desc.SizeBytes > 0 && counter.written != desc.SizeBytes {
		_ = os.Remove(tmpPath)
		return 0, pkgerrors.Wrapf(pkgerrors.ErrSizeMismatch, "got %d bytes, catalog says %d", counter.written, desc.SizeBytes)
	}

	// permissions are set before the rename so the move stays the final step
	if err := os.Chmod(tmpPath, fsutil.FileModeDefault); err != nil {
		_ = os.Remove(tmpPath)
		return 0, pkgerrors.Wrap(err, "could not set permissions")
	}
	if err := fsutil.Move(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, pkgerrors.Wrap(err, "could not finalize file")
	}

	counter.flush()
	return counter.written, nil
}

func (e *Engine) doRequest(ctx context.Context, desc model.FileDescriptor, creds auth.Authenticator) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.RemoteURL.String(), http.NoBody)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", e.userAgent)
	if creds != nil {
		if err := creds.Apply(req); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to apply credentials")
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "download failed")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d: %w", resp.StatusCode, pkgerrors.ErrDownloadFailed)
	}
	return resp, nil
}

// progressWriter counts bytes and reports progress no more often than
// progressInterval, plus once at completion via flush.
type progressWriter struct {
	w       io.Writer
	written int64
	total   int64
	report  Progress
	last    time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.report != nil && time.Since(p.last) >= progressInterval {
		p.last = time.Now()
		p.report(p.written, p.total)
	}
	return n, err
}

func (p *progressWriter) flush() {
	if p.report != nil {
		p.report(p.written, p.total)
	}
}
