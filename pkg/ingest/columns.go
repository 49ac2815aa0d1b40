package ingest

import (
	"regexp"
	"strings"

	"github.com/glorpus-work/ecget/pkg/errors"
)

// Column detection runs an explicit ranked list of rules in a fixed order and
// takes the first match, so there is no hidden precedence between header
// aliases and value probing.

type columnRule struct {
	name  string
	match func(header, sample []string) int // column index, or -1
}

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}`)
)

var dateRules = []columnRule{
	{name: "exact header", match: exactHeader("yyyy-mm-dd")},
	{name: "header alias", match: partialHeader("date", "fecha", "day")},
	{name: "value shape", match: valueShape(datePattern)},
}

var timeRules = []columnRule{
	{name: "exact header", match: exactHeader("hh:mm:ss.sss", "hh:mm:ss")},
	{name: "header alias", match: partialHeader("time", "hora", "hour")},
	{name: "value shape", match: valueShape(timePattern)},
}

var latRules = []columnRule{
	{name: "header alias", match: partialHeader("latitude", "lat")},
}

var lonRules = []columnRule{
	{name: "header alias", match: partialHeader("longitude", "long", "lon")},
}

func exactHeader(aliases ...string) func(header, sample []string) int {
	return func(header, _ []string) int {
		for i, col := range header {
			name := strings.ToLower(strings.TrimSpace(col))
			for _, alias := range aliases {
				if name == alias {
					return i
				}
			}
		}
		return -1
	}
}

func partialHeader(aliases ...string) func(header, sample []string) int {
	return func(header, _ []string) int {
		for i, col := range header {
			name := strings.ToLower(strings.TrimSpace(col))
			if name == "" {
				continue
			}
			for _, alias := range aliases {
				if strings.Contains(name, alias) || strings.Contains(alias, name) {
					return i
				}
			}
		}
		return -1
	}
}

func valueShape(pattern *regexp.Regexp) func(header, sample []string) int {
	return func(_, sample []string) int {
		for i, cell := range sample {
			if pattern.MatchString(strings.TrimSpace(cell)) {
				return i
			}
		}
		return -1
	}
}

func firstMatch(rules []columnRule, header, sample []string, taken ...int) int {
	for _, rule := range rules {
		idx := rule.match(header, sample)
		if idx >= 0 && !contains(taken, idx) {
			return idx
		}
	}
	return -1
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func detectColumns(header, sample []string, opts Options) (columns, error) {
	cols := columns{lat: -1, lon: -1, orbit: -1}

	cols.date = firstMatch(dateRules, header, sample)
	if cols.date < 0 {
		return cols, errors.Wrapf(errors.ErrNoDatetimeColumn, "no date column among %v", header)
	}
	cols.time = firstMatch(timeRules, header, sample, cols.date)
	if cols.time < 0 {
		return cols, errors.Wrapf(errors.ErrNoDatetimeColumn, "no time column among %v", header)
	}

	cols.lat = firstMatch(latRules, header, sample, cols.date, cols.time)
	cols.lon = firstMatch(lonRules, header, sample, cols.date, cols.time, cols.lat)

	if opts.OrbitColumn != "" {
		for i, col := range header {
			if strings.EqualFold(strings.TrimSpace(col), opts.OrbitColumn) {
				cols.orbit = i
				break
			}
		}
		if cols.orbit < 0 {
			return cols, errors.Wrapf(errors.ErrParse, "orbit column %q not found among %v", opts.OrbitColumn, header)
		}
	} else {
		cols.orbit = firstMatch([]columnRule{{name: "header alias", match: exactHeader("orbit")}}, header, sample)
	}

	return cols, nil
}
