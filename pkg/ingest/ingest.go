// Package ingest parses the user-supplied observation table. It auto-detects
// the field delimiter and the date/time (and optional lat/lon/orbit) columns
// and produces one ObservationPoint per data row, in file order.
package ingest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/ecget/pkg/errors"
	"github.com/glorpus-work/ecget/pkg/model"
)

// delimiters are the candidates tried against the header row, in fixed order.
var delimiters = []rune{',', ';', '\t', '|'}

// Options tune column detection.
type Options struct {
	// OrbitColumn names the column carrying orbit numbers. When empty the
	// header alias "orbit" is tried instead.
	OrbitColumn string
}

// Source is an opened observation table. Each call to Points re-reads the
// file, so repeated passes reproduce the same sequence.
type Source struct {
	path  string
	delim rune
	opts  Options

	header []string
	cols   columns
}

type columns struct {
	date  int
	time  int
	lat   int
	lon   int
	orbit int
}

// RowError reports a data row that could not be turned into an
// ObservationPoint. Row errors do not abort the pass.
type RowError struct {
	Row int // 1-based data row
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// Open reads the header (and first data row, for value probing) and resolves
// the delimiter and column layout. It fails with a parse error when no
// delimiter yields a header or no date/time columns can be found.
func Open(path string, opts Options) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrParse, "cannot open %s: %v", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return nil, errors.Wrapf(errors.ErrParse, "%s: empty file", path)
	}
	headerLine := scanner.Text()

	delim, err := DetectDelimiter(headerLine)
	if err != nil {
		return nil, err
	}

	header := splitRow(headerLine, delim)
	var sample []string
	if scanner.Scan() {
		sample = splitRow(scanner.Text(), delim)
	}

	cols, err := detectColumns(header, sample, opts)
	if err != nil {
		return nil, err
	}

	return &Source{path: path, delim: delim, opts: opts, header: header, cols: cols}, nil
}

// Delimiter returns the detected field delimiter.
func (s *Source) Delimiter() rune { return s.delim }

// Header returns the parsed header row.
func (s *Source) Header() []string { return s.header }

// Points reads the whole table and returns one point per parseable data row,
// in file order, plus a RowError for every row that failed.
func (s *Source) Points() ([]model.ObservationPoint, []RowError, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, nil, errors.Wrapf(errors.ErrParse, "cannot open %s: %v", s.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = s.delim
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// header
	if _, err := reader.Read(); err != nil {
		return nil, nil, errors.Wrapf(errors.ErrParse, "%s: cannot re-read header: %v", s.path, err)
	}

	var points []model.ObservationPoint
	var rowErrs []RowError
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: row, Err: err})
			continue
		}
		point, err := s.parseRow(record, row)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: row, Err: err})
			continue
		}
		points = append(points, point)
	}
	return points, rowErrs, nil
}

func (s *Source) parseRow(record []string, row int) (model.ObservationPoint, error) {
	if s.cols.date >= len(record) || s.cols.time >= len(record) {
		return model.ObservationPoint{}, fmt.Errorf("short row: %d fields", len(record))
	}

	ts, err := ParseTimestamp(record[s.cols.date], record[s.cols.time])
	if err != nil {
		return model.ObservationPoint{}, err
	}

	point := model.ObservationPoint{Timestamp: ts, Row: row}

	if v, ok := fieldAt(record, s.cols.lat); ok {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.ObservationPoint{}, fmt.Errorf("column %q: %w", s.header[s.cols.lat], err)
		}
		point.Latitude = &lat
	}
	if v, ok := fieldAt(record, s.cols.lon); ok {
		lon, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.ObservationPoint{}, fmt.Errorf("column %q: %w", s.header[s.cols.lon], err)
		}
		point.Longitude = &lon
	}
	if v, ok := fieldAt(record, s.cols.orbit); ok {
		// orbit numbers sometimes come out of spreadsheets as "12345.0"
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.ObservationPoint{}, fmt.Errorf("column %q: %w", s.header[s.cols.orbit], err)
		}
		orbit := int(f)
		point.Orbit = &orbit
	}

	return point, nil
}

func fieldAt(record []string, idx int) (string, bool) {
	if idx < 0 || idx >= len(record) {
		return "", false
	}
	v := strings.TrimSpace(record[idx])
	if v == "" {
		return "", false
	}
	return v, true
}

// DetectDelimiter picks the candidate delimiter that splits the header line
// into the most non-empty columns. The candidate order is fixed and the
// comparison strict, so detection is deterministic.
func DetectDelimiter(headerLine string) (rune, error) {
	best := rune(0)
	bestCols := 1
	for _, d := range delimiters {
		cols := 0
		for _, cell := range strings.Split(headerLine, string(d)) {
			if strings.TrimSpace(cell) != "" {
				cols++
			}
		}
		if cols > bestCols {
			bestCols = cols
			best = d
		}
	}
	if best == 0 {
		return 0, errors.Wrapf(errors.ErrNoDelimiter, "header %q", headerLine)
	}
	return best, nil
}

// ParseTimestamp combines a date cell and a time cell into a UTC timestamp.
// Fractional seconds beyond milliseconds are truncated.
func ParseTimestamp(dateCell, timeCell string) (time.Time, error) {
	dateCell = strings.TrimSpace(dateCell)
	timeCell = strings.TrimSpace(timeCell)

	if i := strings.IndexByte(timeCell, '.'); i >= 0 {
		frac := timeCell[i+1:]
		if len(frac) > 3 {
			timeCell = timeCell[:i+1] + frac[:3]
		}
	}

	layouts := []string{"2006-01-02 15:04:05.000", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		ts, err := time.ParseInLocation(layout, dateCell+" "+timeCell, time.UTC)
		if err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q %q", dateCell, timeCell)
}

func splitRow(line string, delim rune) []string {
	parts := strings.Split(line, string(delim))
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
