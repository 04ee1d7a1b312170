// Package loader reads the survey archive: a zip file holding the respondent
// CSV and the question-schema CSV.
package loader

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"devsurvey/internal/config"
	"devsurvey/internal/frame"
	csvparser "devsurvey/internal/parser/csv"
	"devsurvey/internal/probe"
	"devsurvey/internal/transformer"
)

// DataAccessError reports an archive that is missing, unreadable, malformed,
// or lacks an expected entry. Entry is empty for archive-level failures.
type DataAccessError struct {
	Path  string
	Entry string
	Err   error
}

func (e *DataAccessError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("data access %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("data access %s!%s: %v", e.Path, e.Entry, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// ErrEntryNotFound is wrapped by DataAccessError when an entry is absent.
var ErrEntryNotFound = errors.New("entry not found in archive")

// Options selects the archive entries and CSV parser options.
type Options struct {
	RespondentsEntry string
	SchemaEntry      string
	Parser           config.Options

	// Verbose logs per-entry row and column counts.
	Verbose bool
}

// OptionsFromConfig maps the pipeline config onto loader Options.
func OptionsFromConfig(p config.Pipeline) Options {
	return Options{
		RespondentsEntry: p.Source.RespondentsEntry,
		SchemaEntry:      p.Source.SchemaEntry,
		Parser:           p.Parser.Options,
	}
}

// Dataset is the loaded respondent table and schema table.
type Dataset struct {
	Respondents *frame.Table
	Schema      *frame.Table
}

// Load opens the zip archive at path and parses both entries.
//
// Errors:
//   - *DataAccessError for a missing/unreadable archive, a missing entry or
//     a malformed CSV entry.
//   - ctx.Err() when canceled mid-parse.
func Load(ctx context.Context, path string, opt Options) (*Dataset, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &DataAccessError{Path: path, Err: err}
	}
	defer zr.Close()

	respondents, err := readEntry(ctx, &zr.Reader, path, opt.RespondentsEntry, opt)
	if err != nil {
		return nil, err
	}
	schema, err := readEntry(ctx, &zr.Reader, path, opt.SchemaEntry, opt)
	if err != nil {
		return nil, err
	}

	return &Dataset{Respondents: respondents, Schema: schema}, nil
}

func findEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	// Archives built on some platforms nest entries under a folder.
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/"+name) {
			return f
		}
	}
	return nil
}

func readEntry(ctx context.Context, zr *zip.Reader, path, name string, opt Options) (*frame.Table, error) {
	f := findEntry(zr, name)
	if f == nil {
		return nil, &DataAccessError{Path: path, Entry: name, Err: ErrEntryNotFound}
	}

	rc, err := f.Open()
	if err != nil {
		return nil, &DataAccessError{Path: path, Entry: name, Err: err}
	}
	defer rc.Close()

	t, err := ReadTable(ctx, rc, opt.Parser)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &DataAccessError{Path: path, Entry: name, Err: err}
	}
	if opt.Verbose {
		log.Printf("loader: entry=%s rows=%d cols=%d", name, t.NumRows(), t.NumCols())
	}
	return t, nil
}

// ReadTable parses a whole CSV stream into a table, inferring a number or
// text kind per column. The first malformed record aborts the read.
func ReadTable(ctx context.Context, src io.Reader, opt config.Options) (*frame.Table, error) {
	r, err := csvparser.NewReader(src, opt)
	if err != nil {
		return nil, err
	}
	header := r.Header()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan *transformer.Row, 256)
	var parseErr error
	streamErr := make(chan error, 1)
	go func() {
		defer close(rows)
		streamErr <- r.StreamRows(ctx, rows, func(line int, err error) {
			if parseErr == nil {
				parseErr = fmt.Errorf("parse error at line %d: %w", line, err)
				cancel()
			}
		})
	}()

	vals := make([][]string, len(header))
	valid := make([][]bool, len(header))
	for row := range rows {
		for i := range header {
			s, ok := row.Str(i)
			vals[i] = append(vals[i], s)
			valid[i] = append(valid[i], ok)
		}
		row.Free()
	}

	if err := <-streamErr; err != nil && parseErr == nil {
		return nil, err
	}
	if parseErr != nil {
		return nil, parseErr
	}

	cols := make([]*frame.Column, len(header))
	for i, name := range header {
		cols[i] = buildColumn(name, vals[i], valid[i])
	}
	return frame.New(cols...)
}

func buildColumn(name string, vals []string, valid []bool) *frame.Column {
	if vals == nil {
		vals, valid = []string{}, []bool{}
	}
	if probe.KindOf(vals, valid) != frame.KindNumber {
		return frame.NewTextColumn(name, vals, valid)
	}

	nums := make([]float64, len(vals))
	for i, s := range vals {
		if !valid[i] {
			nums[i] = math.NaN()
			continue
		}
		// KindOf guarantees the parse succeeds.
		nums[i], _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	return frame.NewNumberColumn(name, nums)
}
