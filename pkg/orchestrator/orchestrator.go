//go:generate mockgen -destination=./mocks/orchestrator.go . Searcher,Fetcher,Extractor

// Package orchestrator drives a whole run: parse the observation table,
// search the catalogue per point, download every hit and account for each
// outcome. Failures are isolated per file and per point; only a table parse
// failure or a credential rejection aborts the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/glorpus-work/ecget/internal/logger"
	"github.com/glorpus-work/ecget/pkg/auth"
	"github.com/glorpus-work/ecget/pkg/catalog"
	"github.com/glorpus-work/ecget/pkg/download"
	pkgerrors "github.com/glorpus-work/ecget/pkg/errors"
	"github.com/glorpus-work/ecget/pkg/ingest"
	"github.com/glorpus-work/ecget/pkg/model"
	"github.com/glorpus-work/ecget/pkg/report"
)

// Searcher is the subset of the catalogue client used by the orchestrator.
type Searcher interface {
	Search(ctx context.Context, q catalog.Query, creds auth.Authenticator) ([]model.FileDescriptor, error)
}

// Fetcher is the subset of the download engine used by the orchestrator.
type Fetcher interface {
	Fetch(ctx context.Context, desc model.FileDescriptor, opts download.Options) model.DownloadResult
}

// Extractor unpacks downloaded bundles when extraction is enabled.
type Extractor interface {
	CanExtract(path string) bool
	ExtractAll(ctx context.Context, archivePath, destDir string) error
}

// Event represents a simple progress notification.
type Event struct {
	Phase string // parsing|searching|downloading|extracting|done|error
	ID    string // file or point the event refers to
	Msg   string
}

// Hooks carries callbacks for progress events. Front ends (CLI, GUIs)
// implement these independently; the core never renders progress itself.
type Hooks struct {
	OnEvent  func(Event)
	Progress download.Progress
}

// RunRequest describes one bulk-download run.
type RunRequest struct {
	CSVPath     string
	Selection   model.ProductSelection
	Spatial     model.SpatialFilter
	OrbitColumn string
	Dir         string
	Override    bool
	Extract     bool
	Tolerance   time.Duration
	Credentials auth.Credentials
	SummaryPath string // optional machine-readable summary
}

// Orchestrator ties ingest, catalogue, download and report together.
type Orchestrator struct {
	Catalog Searcher
	Engine  Fetcher
	Extract Extractor
	Hooks   Hooks
}

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// Run executes the whole download run and always returns a finalized
// summary, even on early abort. Cancellation is honored between fetches; an
// in-progress fetch finishes or fails first.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (model.Summary, error) {
	reporter := report.New()

	if o.Catalog == nil || o.Engine == nil {
		return reporter.Finalize(), fmt.Errorf("catalogue client and download engine must be configured")
	}
	if req.Dir == "" || !filepath.IsAbs(req.Dir) {
		return reporter.Finalize(), pkgerrors.Wrapf(pkgerrors.ErrInvalidPath, "download dir must be absolute: %q", req.Dir)
	}

	emit(o.Hooks, Event{Phase: "parsing", Msg: req.CSVPath})
	source, err := ingest.Open(req.CSVPath, ingest.Options{OrbitColumn: req.OrbitColumn})
	if err != nil {
		return reporter.Finalize(), err
	}
	points, rowErrs, err := source.Points()
	if err != nil {
		return reporter.Finalize(), err
	}
	for _, rowErr := range rowErrs {
		logger.Warnf("skipping %v", rowErr)
		reporter.RecordError(rowErr.Error())
	}
	logger.Info("parsed observation table", logger.Fields{
		"points":    len(points),
		"delimiter": string(source.Delimiter()),
	})

	runErr := o.processPoints(ctx, req, points, reporter)

	summary := reporter.Finalize()
	if req.SummaryPath != "" {
		if err := report.WriteJSON(summary, req.SummaryPath); err != nil {
			logger.Errorf("could not write summary: %v", err)
		}
	}
	if runErr != nil {
		emit(o.Hooks, Event{Phase: "error", Msg: runErr.Error()})
		return summary, runErr
	}
	emit(o.Hooks, Event{Phase: "done"})
	return summary, nil
}

func (o *Orchestrator) processPoints(ctx context.Context, req RunRequest, points []model.ObservationPoint, reporter *report.Reporter) error {
	for _, point := range points {
		if err := ctx.Err(); err != nil {
			return err
		}

		pointID := point.Timestamp.UTC().Format(time.RFC3339)
		emit(o.Hooks, Event{Phase: "searching", ID: pointID})

		query := catalog.BuildQuery(point, req.Selection, req.Spatial, req.Tolerance)
		descriptors, err := o.Catalog.Search(ctx, query, req.Credentials)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrAuth) || errors.Is(err, context.Canceled) {
				return err
			}
			logger.Errorf("search for %s failed: %v", pointID, err)
			reporter.RecordError(fmt.Sprintf("search %s: %v", pointID, err))
			continue
		}

		descriptors, baseline := catalog.FilterBaseline(descriptors, req.Selection.Baseline)
		if len(descriptors) == 0 {
			// no match is not an error; the point is recorded as zero files
			logger.Debug("no products found", logger.Fields{"point": pointID})
			continue
		}
		logger.Info("found products", logger.Fields{
			"point":    pointID,
			"count":    len(descriptors),
			"baseline": baseline,
		})

		if err := o.fetchAll(ctx, req, point, descriptors, reporter); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) fetchAll(ctx context.Context, req RunRequest, point model.ObservationPoint, descriptors []model.FileDescriptor, reporter *report.Reporter) error {
	opts := download.Options{
		Dir:      req.Dir,
		Override: req.Override,
		Auth:     req.Credentials,
		Progress: o.Hooks.Progress,
	}

	for _, desc := range descriptors {
		// cooperative cancellation between fetches
		if err := ctx.Err(); err != nil {
			return err
		}

		desc.Observation = point
		emit(o.Hooks, Event{Phase: "downloading", ID: desc.Name})

		result := o.Engine.Fetch(ctx, desc, opts)
		reporter.Record(result)

		switch result.Outcome {
		case model.OutcomeSkipped:
			logger.Debug("already present, skipping", logger.Fields{"file": desc.Name})
		case model.OutcomeFailed:
			logger.Errorf("download of %s failed: %v", desc.Name, result.Reason)
		case model.OutcomeSuccess:
			logger.Success("downloaded", logger.Fields{"file": desc.Name, "bytes": result.BytesWritten})
			if req.Extract && o.Extract != nil && o.Extract.CanExtract(desc.Name) {
				o.extract(ctx, req.Dir, desc.Name, reporter)
			}
		}
	}
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, dir, name string, reporter *report.Reporter) {
	emit(o.Hooks, Event{Phase: "extracting", ID: name})
	bundle := filepath.Join(dir, name)
	dest := filepath.Join(dir, trimArchiveExt(name))
	if err := o.Extract.ExtractAll(ctx, bundle, dest); err != nil {
		logger.Errorf("extraction of %s failed: %v", name, err)
		reporter.RecordError(fmt.Sprintf("extract %s: %v", name, err))
	}
}

func trimArchiveExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}
