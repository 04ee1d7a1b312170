// Package csvfile writes each report to <dir>/<name>.csv.
package csvfile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"devsurvey/internal/report"
	"devsurvey/internal/storage"
)

func init() {
	storage.Register("csv", func(_ context.Context, cfg storage.Config) (storage.Sink, error) {
		return New(cfg.DSN)
	})
}

// Sink writes reports as CSV files into one directory.
type Sink struct {
	dir string
}

// New creates dir (and parents) if needed.
func New(dir string) (*Sink, error) {
	if dir == "" {
		return nil, fmt.Errorf("csvfile: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvfile: create %s: %w", dir, err)
	}
	return &Sink{dir: dir}, nil
}

// Dir returns the output directory.
func (s *Sink) Dir() string { return s.dir }

// WriteReport replaces <dir>/<name>.csv. The file is written to a temporary
// name first and renamed, so readers never observe a partial report.
func (s *Sink) WriteReport(ctx context.Context, r *report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := r.WriteCSV(&buf); err != nil {
		return fmt.Errorf("csvfile: encode %s: %w", r.Name, err)
	}

	path := filepath.Join(s.dir, r.FileName())
	tmp, err := os.CreateTemp(s.dir, "."+r.Name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("csvfile: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csvfile: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csvfile: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("csvfile: write %s: %w", path, err)
	}
	return nil
}

func (s *Sink) Close() error { return nil }
