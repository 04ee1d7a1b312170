package visualize

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"devsurvey/internal/analysis"
	"devsurvey/internal/frame"
	"devsurvey/internal/preprocess"
	"devsurvey/internal/stats"
)

// Pivot is a dense label-indexed matrix; Z[r][c] is NaN where undefined.
type Pivot struct {
	Rows []string
	Cols []string
	Z    [][]float64
}

// MedianPivot computes the median of value per (row, col) key pair. Rows and
// columns whose cells are all undefined are dropped. Row keys are sorted;
// column keys follow the column's declared levels when it has any.
func MedianPivot(t *frame.Table, rowCol, colCol, valueCol string) (Pivot, error) {
	cols, err := t.Columns(rowCol, colCol, valueCol)
	if err != nil {
		return Pivot{}, err
	}
	rc, cc, vc := cols[0], cols[1], cols[2]

	cells := map[[2]string][]float64{}
	rowSet, colSet := map[string]bool{}, map[string]bool{}
	for i := 0; i < t.NumRows(); i++ {
		r, rok := rc.String(i)
		c, cok := cc.String(i)
		v, vok := vc.Float(i)
		if !rok || !cok || !vok {
			continue
		}
		k := [2]string{r, c}
		cells[k] = append(cells[k], v)
		rowSet[r], colSet[c] = true, true
	}

	rows := sortedSet(rowSet)
	colKeys := sortedSet(colSet)
	if lv := cc.Levels(); len(lv) > 0 {
		sort.SliceStable(colKeys, func(a, b int) bool {
			return cc.LevelIndex(colKeys[a]) < cc.LevelIndex(colKeys[b])
		})
	}

	// Every kept row and column has at least one observed value by
	// construction, so no all-undefined row or column can appear.
	p := Pivot{Rows: rows, Cols: colKeys, Z: make([][]float64, len(rows))}
	for ri, r := range rows {
		p.Z[ri] = make([]float64, len(colKeys))
		for ci, c := range colKeys {
			p.Z[ri][ci] = stats.Median(cells[[2]string{r, c}])
		}
	}
	return p, nil
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// pivotGrid adapts a Pivot to plotter.GridXYZ.
type pivotGrid struct{ p Pivot }

func (g pivotGrid) Dims() (c, r int)   { return len(g.p.Cols), len(g.p.Rows) }
func (g pivotGrid) Z(c, r int) float64 { return g.p.Z[r][c] }
func (g pivotGrid) X(c int) float64    { return float64(c) }
func (g pivotGrid) Y(r int) float64    { return float64(r) }

// IndustryPythonHeatmap draws median salary by Industry and PythonKnowledge
// as an annotated blue-red colour grid.
func IndustryPythonHeatmap(t *frame.Table, st Style) (Figure, error) {
	pv, err := MedianPivot(t, analysis.ColIndustry, preprocess.ColPythonKnowledge, analysis.ColSalary)
	if err != nil {
		return nil, err
	}
	if len(pv.Rows) == 0 || len(pv.Cols) == 0 {
		return nil, fmt.Errorf("industry heatmap: %w", frame.ErrEmptyResult)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range pv.Z {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if hi <= lo {
		hi = lo + 1
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMin(lo)
	cm.SetMax(hi)

	hm := plotter.NewHeatMap(pivotGrid{pv}, cm.Palette(255))
	hm.Min, hm.Max = lo, hi
	hm.NaN = color.White

	p := plot.New()
	p.Title.Text = "Median Salary by Industry and Python Knowledge"
	p.X.Label.Text = preprocess.ColPythonKnowledge
	p.Y.Label.Text = analysis.ColIndustry
	p.Add(hm)
	p.NominalX(pv.Cols...)
	p.NominalY(pv.Rows...)

	var xys plotter.XYs
	var txt []string
	for r, row := range pv.Z {
		for c, v := range row {
			if math.IsNaN(v) {
				continue
			}
			xys = append(xys, plotter.XY{X: float64(c), Y: float64(r)})
			txt = append(txt, fmt.Sprintf("%.0f", v))
		}
	}
	if err := addLabels(p, xys, txt, text.XCenter, vg.Point{}); err != nil {
		return nil, fmt.Errorf("industry heatmap: %w", err)
	}

	return newRaster(FigureIndustryHeatmap, p, 10*vg.Inch, 8*vg.Inch, st), nil
}
