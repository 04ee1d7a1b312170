// Package xlsx collects reports into one Excel workbook, a sheet per report.
package xlsx

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"devsurvey/internal/report"
	"devsurvey/internal/storage"
)

const maxSheetName = 31

func init() {
	storage.Register("xlsx", func(_ context.Context, cfg storage.Config) (storage.Sink, error) {
		return New(cfg.DSN)
	})
}

// Sink buffers reports in memory and builds the workbook on Close, a sheet
// per report in the order they first arrived.
type Sink struct {
	path string

	mu      sync.Mutex
	order   []string
	reports map[string]*report.Report
}

// New prepares a workbook that Close saves to path.
func New(path string) (*Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("xlsx: empty path")
	}
	return &Sink{path: path, reports: map[string]*report.Report{}}, nil
}

// SheetName maps a report name to a valid sheet name.
func SheetName(report string) string {
	if len(report) > maxSheetName {
		return report[:maxSheetName]
	}
	return report
}

// WriteReport queues r; a later report with the same name replaces it.
func (s *Sink) WriteReport(ctx context.Context, r *report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[r.Name]; !ok {
		s.order = append(s.order, r.Name)
	}
	s.reports[r.Name] = r
	return nil
}

// Close saves the workbook. Nothing is written if no report was received.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return nil
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range s.order {
		sheet := SheetName(name)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("xlsx: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("xlsx: new sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, s.reports[name]); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("xlsx: save %s: %w", s.path, err)
	}
	return nil
}

// writeSheet puts the header in row 1 and one row per report row below it.
// Undefined cells stay blank.
func writeSheet(f *excelize.File, sheet string, r *report.Report) error {
	hdr := make([]any, 0, len(r.Columns)+1)
	hdr = append(hdr, r.IndexName)
	for _, c := range r.Columns {
		hdr = append(hdr, c)
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return fmt.Errorf("xlsx: %s header: %w", sheet, err)
	}

	for i, label := range r.Index {
		row := make([]any, 0, len(hdr))
		row = append(row, label)
		for _, v := range r.Values[i] {
			if math.IsNaN(v) {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx: %s row %d: %w", sheet, i, err)
		}
	}
	return nil
}
