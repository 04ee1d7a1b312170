package loader

import (
	"archive/zip"
	"context"
	"strings"

	"devsurvey/internal/config"
	csvparser "devsurvey/internal/parser/csv"
	"devsurvey/internal/probe"
	"devsurvey/internal/transformer"
)

// EntryProfile describes one CSV entry of an archive.
type EntryProfile struct {
	Name             string
	CompressedSize   uint64
	UncompressedSize uint64
	SampledRows      int
	Columns          []probe.ColumnProfile
}

// Inspect profiles up to sampleRows records of every .csv entry in the
// archive. sampleRows <= 0 reads whole entries.
func Inspect(ctx context.Context, path string, sampleRows int, opt config.Options) ([]EntryProfile, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &DataAccessError{Path: path, Err: err}
	}
	defer zr.Close()

	var out []EntryProfile
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(extOf(f.Name), ".csv") {
			continue
		}
		ep, err := inspectEntry(ctx, f, sampleRows, opt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &DataAccessError{Path: path, Entry: f.Name, Err: err}
		}
		out = append(out, ep)
	}
	return out, nil
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

func inspectEntry(ctx context.Context, f *zip.File, sampleRows int, opt config.Options) (EntryProfile, error) {
	ep := EntryProfile{
		Name:             f.Name,
		CompressedSize:   f.CompressedSize64,
		UncompressedSize: f.UncompressedSize64,
	}

	rc, err := f.Open()
	if err != nil {
		return ep, err
	}
	defer rc.Close()

	r, err := csvparser.NewReader(rc, opt)
	if err != nil {
		return ep, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan *transformer.Row, 64)
	done := make(chan error, 1)
	go func() {
		defer close(rows)
		done <- r.StreamRows(ctx, rows, nil)
	}()

	var sample [][]any
	for row := range rows {
		if sampleRows > 0 && len(sample) >= sampleRows {
			row.Drop()
			cancel()
			continue
		}
		sample = append(sample, append([]any(nil), row.V...))
		row.Free()
	}
	truncated := sampleRows > 0 && len(sample) >= sampleRows
	if err := <-done; err != nil && !(truncated && err == context.Canceled) {
		return ep, err
	}

	ep.SampledRows = len(sample)
	ep.Columns = probe.Profile(r.Header(), sample)
	return ep, nil
}
