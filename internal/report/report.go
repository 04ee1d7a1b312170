// Package report defines the summary tables produced by internal/analysis
// and their CSV representation.
//
// A Report is a small labelled matrix: one index column of row labels and any
// number of float columns. NaN marks an undefined cell (for example the
// median of an empty group) and is written as an empty CSV cell.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"devsurvey/internal/frame"
)

// Report is a write-once summary table.
type Report struct {
	// Name is the stable artifact name, e.g. "salary_by_language".
	Name      string
	IndexName string
	Index     []string
	Columns   []string
	// Values[row][col]; len(Values) == len(Index).
	Values [][]float64
}

// New returns an empty report with the given layout.
func New(name, indexName string, columns ...string) *Report {
	return &Report{Name: name, IndexName: indexName, Columns: columns}
}

// Add appends a row. len(vals) must equal len(r.Columns).
func (r *Report) Add(label string, vals ...float64) {
	if len(vals) != len(r.Columns) {
		panic(fmt.Sprintf("report %s: row %q has %d values, want %d", r.Name, label, len(vals), len(r.Columns)))
	}
	r.Index = append(r.Index, label)
	r.Values = append(r.Values, vals)
}

func (r *Report) Len() int { return len(r.Index) }

// Empty reports whether the report has no rows.
func (r *Report) Empty() bool { return len(r.Index) == 0 }

// Col returns the position of a column, or -1.
func (r *Report) Col(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell for the row labelled label in column col.
func (r *Report) Value(label, col string) (float64, bool) {
	c := r.Col(col)
	if c < 0 {
		return math.NaN(), false
	}
	for i, l := range r.Index {
		if l == label {
			return r.Values[i][c], true
		}
	}
	return math.NaN(), false
}

// Series returns column col as parallel label/value slices.
func (r *Report) Series(col string) ([]string, []float64, error) {
	c := r.Col(col)
	if c < 0 {
		return nil, nil, &frame.MissingColumnError{Column: col}
	}
	vals := make([]float64, len(r.Index))
	for i := range r.Values {
		vals[i] = r.Values[i][c]
	}
	return append([]string(nil), r.Index...), vals, nil
}

// FileName is the CSV artifact name.
func (r *Report) FileName() string { return r.Name + ".csv" }

// WriteCSV writes the report with a header row; the index is the first column.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	hdr := append([]string{r.IndexName}, r.Columns...)
	if err := cw.Write(hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rec := make([]string, len(hdr))
	for i, label := range r.Index {
		rec[0] = label
		for j, v := range r.Values[i] {
			rec[j+1] = frame.FormatFloat(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a report previously written by WriteCSV.
func ReadCSV(name string, rd io.Reader) (*Report, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = 0

	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", name, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("read report %s: %w", name, io.ErrUnexpectedEOF)
	}

	r := New(name, recs[0][0], recs[0][1:]...)
	for li, rec := range recs[1:] {
		vals := make([]float64, len(rec)-1)
		for j, cell := range rec[1:] {
			if strings.TrimSpace(cell) == "" {
				vals[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("read report %s line %d: %w", name, li+2, err)
			}
			vals[j] = v
		}
		r.Add(rec[0], vals...)
	}
	return r, nil
}
