package visualize

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"devsurvey/internal/analysis"
	"devsurvey/internal/frame"
	"devsurvey/internal/report"
)

// Series is an ordered list of labelled values.
type Series struct {
	Labels []string
	Values []float64
}

func (s Series) Len() int { return len(s.Labels) }

// defined drops entries whose value is NaN or infinite.
func (s Series) defined() Series {
	var out Series
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out.Labels = append(out.Labels, s.Labels[i])
		out.Values = append(out.Values, v)
	}
	return out
}

// SeriesFromReport adapts one report column into a Series in report order.
func SeriesFromReport(r *report.Report, column string) (Series, error) {
	labels, vals, err := r.Series(column)
	if err != nil {
		return Series{}, err
	}
	return Series{Labels: labels, Values: vals}, nil
}

// BarOptions configures RankedBar.
type BarOptions struct {
	Name   string
	Title  string
	XLabel string
	YLabel string
	Width  vg.Length
	Height vg.Length
	Style
}

// RankedBar draws s as horizontal bars, the first entry on top, each bar
// annotated with its value. Undefined values are skipped; a series with no
// defined value yields frame.ErrEmptyResult.
func RankedBar(s Series, opt BarOptions) (Figure, error) {
	s = s.defined()
	if s.Len() == 0 {
		return nil, fmt.Errorf("ranked bar %s: %w", opt.Name, frame.ErrEmptyResult)
	}
	if opt.YLabel == "" {
		opt.YLabel = "Category"
	}
	if opt.Width == 0 {
		opt.Width = 12 * vg.Inch
	}
	if opt.Height == 0 {
		opt.Height = 7 * vg.Inch
	}

	// gonum stacks horizontal bars bottom-up; reverse so s[0] is on top.
	n := s.Len()
	vals := make(plotter.Values, n)
	labels := make([]string, n)
	for i := range s.Values {
		vals[n-1-i] = s.Values[i]
		labels[n-1-i] = s.Labels[i]
	}

	p := plot.New()
	p.Title.Text = opt.Title
	p.X.Label.Text = opt.XLabel
	p.Y.Label.Text = opt.YLabel

	bars, err := plotter.NewBarChart(vals, barWidth(opt.Height, n))
	if err != nil {
		return nil, fmt.Errorf("ranked bar %s: %w", opt.Name, err)
	}
	bars.Horizontal = true
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(labels...)
	p.X.Min = math.Min(0, p.X.Min)

	xys := make(plotter.XYs, n)
	txt := make([]string, n)
	for i, v := range vals {
		xys[i] = plotter.XY{X: v, Y: float64(i)}
		txt[i] = frame.FormatFloat(v)
	}
	if err := addLabels(p, xys, txt, text.XLeft, vg.Point{X: vg.Points(3)}); err != nil {
		return nil, fmt.Errorf("ranked bar %s: %w", opt.Name, err)
	}
	// leave room for the value labels
	p.X.Max *= 1.1

	return newRaster(opt.Name, p, opt.Width, opt.Height, opt.Style), nil
}

// AgeDistribution counts respondents per Age bucket, buckets in ascending
// label order, drawn as horizontal bars.
func AgeDistribution(t *frame.Table, st Style) (Figure, error) {
	age, err := t.Column(analysis.ColAge)
	if err != nil {
		return nil, err
	}

	counts := map[string]float64{}
	for i := 0; i < age.Len(); i++ {
		if s, ok := age.String(i); ok {
			counts[s]++
		}
	}
	labels := make([]string, 0, len(counts))
	for k := range counts {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	s := Series{Labels: labels, Values: make([]float64, len(labels))}
	for i, l := range labels {
		s.Values[i] = counts[l]
	}

	return RankedBar(s, BarOptions{
		Name:   FigureAgeDistribution,
		Title:  "Age Distribution of Respondents",
		XLabel: "Number of respondents",
		YLabel: "Age",
		Width:  8 * vg.Inch,
		Height: 6 * vg.Inch,
		Style:  st,
	})
}

// SalaryByExperienceBars draws the salary_by_experience_level report as
// grouped vertical bars, one group per level, average and median side by side.
func SalaryByExperienceBars(r *report.Report, st Style) (Figure, error) {
	avgIdx, medIdx := r.Col("Average salary"), r.Col("Median salary")
	if avgIdx < 0 {
		return nil, &frame.MissingColumnError{Column: "Average salary"}
	}
	if medIdx < 0 {
		return nil, &frame.MissingColumnError{Column: "Median salary"}
	}
	if r.Empty() {
		return nil, fmt.Errorf("salary by experience: %w", frame.ErrEmptyResult)
	}

	p := plot.New()
	p.Title.Text = "Average and Median Salary by Experience Level"
	p.X.Label.Text = "Experience Level"
	p.Y.Label.Text = "Salary (USD)"
	p.Legend.Top = true

	w := vg.Points(28)
	for k, col := range []int{avgIdx, medIdx} {
		vals := make(plotter.Values, r.Len())
		for i := range r.Values {
			v := r.Values[i][col]
			if math.IsNaN(v) {
				v = 0
			}
			vals[i] = v
		}
		bars, err := plotter.NewBarChart(vals, w)
		if err != nil {
			return nil, err
		}
		bars.Color = plotutil.Color(k)
		bars.LineStyle.Width = 0
		bars.Offset = w * vg.Length(2*k-1) / 2
		p.Add(bars)
		p.Legend.Add(r.Columns[col], bars)
	}
	p.NominalX(r.Index...)
	p.Y.Min = 0

	return newRaster(FigureSalaryByExperience, p, 10*vg.Inch, 6*vg.Inch, st), nil
}

// barWidth fits n bars into a plot of the given height.
func barWidth(height vg.Length, n int) vg.Length {
	w := height * 0.6 / vg.Length(n)
	if w > vg.Points(40) {
		w = vg.Points(40)
	}
	return w
}

// addLabels annotates the plot with txt at xys.
func addLabels(p *plot.Plot, xys plotter.XYs, txt []string, xalign text.XAlignment, off vg.Point) error {
	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: txt})
	if err != nil {
		return err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = xalign
		l.TextStyle[i].YAlign = text.YCenter
	}
	l.Offset = off
	p.Add(l)
	return nil
}
