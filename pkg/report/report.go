// Package report accumulates per-file download results into a run summary.
package report

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/glorpus-work/ecget/pkg/errors"
	"github.com/glorpus-work/ecget/pkg/fsutil"
	"github.com/glorpus-work/ecget/pkg/model"
)

// Reporter records download results as they arrive. Recording is
// order-independent and safe for concurrent use; Finalize is idempotent.
type Reporter struct {
	mu        sync.Mutex
	start     time.Time
	files     []model.FileStatus
	errs      []string
	succeeded int
	skipped   int
	failed    int
	bytes     int64
	finalized bool
	summary   model.Summary
}

// New creates a reporter with the run clock started.
func New() *Reporter {
	return &Reporter{start: time.Now()}
}

// Record accounts for one download result.
func (r *Reporter) Record(res model.DownloadResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}

	status := model.FileStatus{
		Name:      res.Descriptor.Name,
		Product:   res.Descriptor.ProductCode,
		Baseline:  res.Descriptor.Baseline,
		Outcome:   res.Outcome.String(),
		Bytes:     res.BytesWritten,
		Timestamp: res.Descriptor.Observation.Timestamp,
	}

	switch res.Outcome {
	case model.OutcomeSuccess:
		r.succeeded++
		r.bytes += res.BytesWritten
	case model.OutcomeSkipped:
		r.skipped++
	case model.OutcomeFailed:
		r.failed++
		if res.Reason != nil {
			status.Reason = res.Reason.Error()
		}
	}

	r.files = append(r.files, status)
}

// RecordError notes a run-level error (a row that failed to parse, a search
// that errored out) without aborting the run.
func (r *Reporter) RecordError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.errs = append(r.errs, msg)
}

// Finalize freezes and returns the summary. Repeated calls return the same
// summary without double-counting.
func (r *Reporter) Finalize() model.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return r.summary
	}

	r.summary = model.Summary{
		TotalRequested: r.succeeded + r.skipped + r.failed,
		Succeeded:      r.succeeded,
		Skipped:        r.skipped,
		Failed:         r.failed,
		TotalBytes:     r.bytes,
		Elapsed:        time.Since(r.start),
		Files:          r.files,
		Errors:         r.errs,
	}
	r.finalized = true
	return r.summary
}

// WriteJSON writes a machine-readable summary next to the downloads.
func WriteJSON(summary model.Summary, path string) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal summary")
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, fsutil.FileModeDefault); err != nil {
		return errors.Wrapf(err, "failed to write summary to %s", path)
	}
	return nil
}
