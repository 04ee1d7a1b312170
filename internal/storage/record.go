package storage

import (
	"math"

	"devsurvey/internal/report"
)

// Record is one cell of a report in long format, the shape the database
// sinks store: one row per (report, row, metric).
type Record struct {
	RunID      string
	Report     string
	RowOrd     int
	IndexName  string
	IndexValue string
	Metric     string
	// Value is nil for an undefined cell.
	Value *float64
}

// Records flattens r. RowOrd preserves the report's row order.
func Records(runID string, r *report.Report) []Record {
	out := make([]Record, 0, r.Len()*len(r.Columns))
	for i, label := range r.Index {
		for j, col := range r.Columns {
			rec := Record{
				RunID:      runID,
				Report:     r.Name,
				RowOrd:     i,
				IndexName:  r.IndexName,
				IndexValue: label,
				Metric:     col,
			}
			if v := r.Values[i][j]; !math.IsNaN(v) {
				rec.Value = &v
			}
			out = append(out, rec)
		}
	}
	return out
}

// RecordColumns is the column order of the long-format table.
var RecordColumns = []string{"run_id", "report", "row_ord", "index_name", "index_value", "metric", "value"}

// Args returns the record as positional SQL arguments in RecordColumns order.
func (r Record) Args() []any {
	var v any
	if r.Value != nil {
		v = *r.Value
	}
	return []any{r.RunID, r.Report, r.RowOrd, r.IndexName, r.IndexValue, r.Metric, v}
}
