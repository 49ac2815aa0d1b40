// Package model defines the shared data types passed between the ingest,
// catalog, download and report layers.
package model

import (
	"fmt"
	"net/url"
	"time"
)

// ObservationPoint is one timestamp extracted from the input table, with
// optional geolocation and orbit number. It is immutable after creation.
type ObservationPoint struct {
	Timestamp time.Time
	Latitude  *float64
	Longitude *float64
	Orbit     *int
	Row       int // 1-based data row in the source file
}

// HasGeo reports whether both latitude and longitude are set.
func (p ObservationPoint) HasGeo() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// ProductSelection is the user-supplied product configuration, constant
// for a run.
type ProductSelection struct {
	Collection string
	Products   []string // normalized product codes, e.g. ATL_NOM_1B
	Baseline   string   // two-letter code or BaselineAuto
}

// BaselineAuto accepts any baseline and prefers the latest one present.
const BaselineAuto = "auto"

// FileDescriptor describes one catalog search hit. It is consumed exactly
// once by the download engine.
type FileDescriptor struct {
	Name        string
	RemoteURL   *url.URL
	SizeBytes   int64 // 0 when the catalog did not report a size
	ProductCode string
	Baseline    string
	Observation ObservationPoint
}

// Outcome classifies the result of one fetch.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

// String returns the lower-case name used in summaries and logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// DownloadResult is produced by the download engine, one per FileDescriptor.
type DownloadResult struct {
	Descriptor   FileDescriptor
	Outcome      Outcome
	Reason       error // set when Outcome is OutcomeFailed
	BytesWritten int64
	Duration     time.Duration
}

// FileStatus is one per-file entry in the machine-readable run summary.
type FileStatus struct {
	Name      string    `json:"name"`
	Product   string    `json:"product"`
	Baseline  string    `json:"baseline,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Bytes     int64     `json:"bytes"`
	Timestamp time.Time `json:"observation"`
}

// Summary aggregates a whole run. It is finalized once and read-only
// thereafter.
type Summary struct {
	TotalRequested int           `json:"total_requested"`
	Succeeded      int           `json:"succeeded"`
	Skipped        int           `json:"skipped"`
	Failed         int           `json:"failed"`
	TotalBytes     int64         `json:"total_bytes"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	Files          []FileStatus  `json:"files"`
	Errors         []string      `json:"errors,omitempty"`
}

// RadiusSearch constrains a catalog query to a circle around a point.
type RadiusSearch struct {
	Meters    int
	Latitude  float64
	Longitude float64
}

// BoundingBox constrains a catalog query to a lat/lon rectangle.
type BoundingBox struct {
	South float64
	West  float64
	North float64
	East  float64
}

// SpatialFilter carries at most one of the two spatial constraint kinds.
type SpatialFilter struct {
	Radius *RadiusSearch
	Box    *BoundingBox
}
