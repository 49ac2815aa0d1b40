package catalog

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/ecget/pkg/model"
)

// DefaultTolerance widens the search window around an observation timestamp.
// Exact-match timestamps rarely exist in the archive.
const DefaultTolerance = time.Second

// Query is a fully-built catalogue search. It is pure data; no I/O happens
// until a Client executes it.
type Query struct {
	Products []string
	Start    time.Time
	End      time.Time
	Orbit    *int
	Spatial  model.SpatialFilter
	Count    int
}

// BuildQuery derives the search for one observation point. The time window is
// [timestamp-tolerance, timestamp+tolerance]; orbit and spatial constraints
// are added when present.
func BuildQuery(point model.ObservationPoint, sel model.ProductSelection, spatial model.SpatialFilter, tolerance time.Duration) Query {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	q := Query{
		Products: sel.Products,
		Start:    point.Timestamp.Add(-tolerance),
		End:      point.Timestamp.Add(tolerance),
		Orbit:    point.Orbit,
		Spatial:  spatial,
	}
	if spatial.Radius == nil && spatial.Box == nil && point.HasGeo() {
		// geographic columns in the table act as a point constraint
		q.Spatial = model.SpatialFilter{Radius: &model.RadiusSearch{
			Meters:    0,
			Latitude:  *point.Latitude,
			Longitude: *point.Longitude,
		}}
	}
	return q
}

// Parameters maps the query onto OpenSearch parameter names, keyed the way
// the catalogue's URL templates spell them.
func (q Query) Parameters() map[string]string {
	params := map[string]string{
		"eo:productType": "[" + strings.Join(q.Products, ",") + "]",
		"time:start":     q.Start.UTC().Format("2006-01-02T15:04:05Z"),
		"time:end":       q.End.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if q.Orbit != nil {
		params["eo:orbitNumber"] = strconv.Itoa(*q.Orbit)
	}
	if r := q.Spatial.Radius; r != nil {
		if r.Meters > 0 {
			params["geo:radius"] = strconv.Itoa(r.Meters)
		}
		params["geo:lat"] = strconv.FormatFloat(r.Latitude, 'f', -1, 64)
		params["geo:lon"] = strconv.FormatFloat(r.Longitude, 'f', -1, 64)
	}
	if b := q.Spatial.Box; b != nil {
		coords := []string{
			strconv.FormatFloat(b.South, 'f', -1, 64),
			strconv.FormatFloat(b.West, 'f', -1, 64),
			strconv.FormatFloat(b.North, 'f', -1, 64),
			strconv.FormatFloat(b.East, 'f', -1, 64),
		}
		params["geo:box"] = strings.Join(coords, ",")
	}
	if q.Count > 0 {
		params["count"] = strconv.Itoa(q.Count)
	}
	return params
}

var (
	unusedParamPattern = regexp.MustCompile(`&?[a-zA-Z]*=\{[^}]*\}`)
	leftoverPattern    = regexp.MustCompile(`.?\{[^}]*\}`)
)

// FillTemplate substitutes parameter values into an OpenSearch URL template
// and strips the optional slots that were not supplied. Values may use square
// brackets for set syntax; the trailing bracket swap turns them into the
// braces the catalogue expects.
func FillTemplate(template string, params map[string]string) string {
	for name, value := range params {
		slot := regexp.MustCompile(`\{` + regexp.QuoteMeta(name) + `[^}]*\}`)
		if slot.MatchString(template) {
			template = slot.ReplaceAllString(template, value)
			continue
		}
		// try again with the default opensearch namespace
		slot = regexp.MustCompile(`\{os:` + regexp.QuoteMeta(name) + `[^}]*\}`)
		template = slot.ReplaceAllString(template, value)
	}

	template = unusedParamPattern.ReplaceAllString(template, "")
	template = leftoverPattern.ReplaceAllString(template, "")
	template = strings.ReplaceAll(template, "[", "{")
	template = strings.ReplaceAll(template, "]", "}")
	return template
}
