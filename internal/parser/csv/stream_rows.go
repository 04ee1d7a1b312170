package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"devsurvey/internal/config"
	"devsurvey/internal/transformer"
)

// DefaultNAValues are the cell values read as missing, matching what survey
// exports produced by pandas treat as NaN.
var DefaultNAValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// Reader is a header-aware CSV reader producing pooled rows.
//
// Options (config.Options):
//   - comma (string, default ","): field delimiter
//   - lazy_quotes (bool, default false)
//   - trim_space (bool, default true): trim cells with edge whitespace
//   - na_values ([]string, default DefaultNAValues): tokens read as missing
//   - header_map (map): rename source headers
type Reader struct {
	cr     *csv.Reader
	header []string
	na     map[string]struct{}
	trim   bool
	line   int
}

// NewReader wraps src and consumes the header row.
//
// Errors:
//   - io.EOF wrapped as "read header" when src is empty.
//   - Duplicate header names after mapping.
func NewReader(src io.Reader, opt config.Options) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	r := &Reader{
		cr:   cr,
		trim: opt.Bool("trim_space", true),
		na:   make(map[string]struct{}),
	}
	for _, v := range opt.Strings("na_values", DefaultNAValues) {
		r.na[v] = struct{}{}
	}

	hdr, err := r.read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	hm := opt.StringMap("header_map")
	seen := make(map[string]bool, len(hdr))
	r.header = make([]string, len(hdr))
	for i, h := range hdr {
		if hasEdgeSpace(h) {
			h = strings.TrimSpace(h)
		}
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if mapped, ok := hm[h]; ok {
			h = mapped
		}
		if seen[h] {
			return nil, fmt.Errorf("read header: duplicate column %q", h)
		}
		seen[h] = true
		r.header[i] = h
	}
	return r, nil
}

func (r *Reader) read() ([]string, error) {
	r.line++
	return r.cr.Read()
}

// Header returns the (mapped) column names in file order.
func (r *Reader) Header() []string { return r.header }

// StreamRows sends one pooled row per record to out, aligned to Header().
// Short records are padded with nil; extra fields are ignored.
//
// Malformed records are reported through onErr and skipped. StreamRows does
// not close out.
//
// NOTE on cancellation:
// On ctx cancellation in-flight rows are dropped, never re-pooled.
func (r *Reader) StreamRows(
	ctx context.Context,
	out chan<- *transformer.Row,
	onErr func(line int, err error),
) error {
	n := len(r.header)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := r.read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(r.line, fmt.Errorf("csv read: %w", err))
			}
			if _, ok := err.(*csv.ParseError); ok {
				continue
			}
			return err
		}

		row := transformer.GetRow(n)
		row.Line = r.line
		for i := 0; i < n && i < len(rec); i++ {
			v := rec[i]
			if r.trim && hasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			if _, missing := r.na[v]; missing {
				continue
			}
			row.V[i] = strings.Clone(v)
		}

		select {
		case out <- row:
		case <-ctx.Done():
			// IMPORTANT: do not re-pool on cancellation
			row.Drop()
			return ctx.Err()
		}
	}
}

func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return s[0] == ' ' || s[len(s)-1] == ' ' || s[0] == '\t' || s[len(s)-1] == '\t'
}
