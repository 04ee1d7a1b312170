package visualize

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"devsurvey/internal/analysis"
	"devsurvey/internal/frame"
	"devsurvey/internal/preprocess"
	"devsurvey/internal/report"
)

func textCol(name string, vals ...string) *frame.Column {
	valid := make([]bool, len(vals))
	for i, v := range vals {
		valid[i] = v != ""
	}
	return frame.NewTextColumn(name, vals, valid)
}

func respondents(t *testing.T) *frame.Table {
	t.Helper()

	tbl, err := frame.New(
		textCol(analysis.ColAge, "25-34 years old", "18-24 years old", "25-34 years old", ""),
		textCol(analysis.ColCountry, "Germany", "United States of America", "Germany", "Côte d'Ivoire"),
		textCol(analysis.ColIndustry, "Fintech", "Fintech", "Healthcare", "Healthcare"),
		frame.NewCategoryColumn(preprocess.ColPythonKnowledge,
			[]string{"Know Python", "Don't know Python", "Know Python", "Know Python"}, nil,
			[]string{"Don't know Python", "Know Python"}),
		frame.NewNumberColumn(analysis.ColSalary, []float64{100000, 60000, 80000, math.NaN()}),
	)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	return tbl
}

func render(t *testing.T, fig Figure) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := fig.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo %s: %v", fig.FileName(), err)
	}
	return buf.Bytes()
}

// TestRankedBar_PNGSizeFollowsDPI checks the PNG pixel size is inches x DPI.
func TestRankedBar_PNGSizeFollowsDPI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dpi        int
		wantW, wantH int
	}{
		{dpi: 50, wantW: 600, wantH: 350},
		{dpi: 100, wantW: 1200, wantH: 700},
	}
	for _, tc := range tests {
		fig, err := RankedBar(
			Series{Labels: []string{"Python", "SQL", "C#"}, Values: []float64{90000, 80000, math.NaN()}},
			BarOptions{Name: "salary_by_language_bar", Title: "t", XLabel: "x", Style: Style{DPI: tc.dpi}},
		)
		if err != nil {
			t.Fatalf("RankedBar error: %v", err)
		}
		if fig.FileName() != "salary_by_language_bar.png" {
			t.Fatalf("FileName = %q", fig.FileName())
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(render(t, fig)))
		if err != nil {
			t.Fatalf("DecodeConfig: %v", err)
		}
		if cfg.Width != tc.wantW || cfg.Height != tc.wantH {
			t.Fatalf("dpi %d: size = %dx%d, want %dx%d", tc.dpi, cfg.Width, cfg.Height, tc.wantW, tc.wantH)
		}
	}
}

func TestRankedBar_EmptySeries(t *testing.T) {
	t.Parallel()

	_, err := RankedBar(Series{Labels: []string{"R"}, Values: []float64{math.NaN()}}, BarOptions{Name: "x"})
	if !errors.Is(err, frame.ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
}

func TestSeriesFromReport(t *testing.T) {
	t.Parallel()

	r := report.New("remote_work_salary", "RemoteWork", "MedianSalary")
	r.Add("remote", 1)
	r.Add("hybrid", 2)

	s, err := SeriesFromReport(r, "MedianSalary")
	if err != nil {
		t.Fatalf("SeriesFromReport error: %v", err)
	}
	if s.Len() != 2 || s.Labels[0] != "remote" || s.Values[1] != 2 {
		t.Fatalf("series = %+v", s)
	}
	if _, err := SeriesFromReport(r, "nope"); !errors.As(err, new(*frame.MissingColumnError)) {
		t.Fatalf("missing column err = %v", err)
	}
}

func TestRasterFigures_Render(t *testing.T) {
	t.Parallel()

	tbl := respondents(t)
	st := Style{DPI: 30}

	exp := report.New(analysis.ReportSalaryByExperience, "ExperienceLevel", "Average salary", "Median salary")
	exp.Add("Junior", 40000, 39000)
	exp.Add("Senior", 90000, math.NaN())

	figs := map[string]func() (Figure, error){
		"age":     func() (Figure, error) { return AgeDistribution(tbl, st) },
		"heatmap": func() (Figure, error) { return IndustryPythonHeatmap(tbl, st) },
		"bars":    func() (Figure, error) { return SalaryByExperienceBars(exp, st) },
	}
	for name, f := range figs {
		fig, err := f()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if _, err := png.DecodeConfig(bytes.NewReader(render(t, fig))); err != nil {
			t.Fatalf("%s: not a PNG: %v", name, err)
		}
	}
}

func TestMedianPivot(t *testing.T) {
	t.Parallel()

	pv, err := MedianPivot(respondents(t), analysis.ColIndustry, preprocess.ColPythonKnowledge, analysis.ColSalary)
	if err != nil {
		t.Fatalf("MedianPivot error: %v", err)
	}
	if strings.Join(pv.Rows, "|") != "Fintech|Healthcare" {
		t.Fatalf("rows = %v", pv.Rows)
	}
	if strings.Join(pv.Cols, "|") != "Don't know Python|Know Python" {
		t.Fatalf("cols = %v", pv.Cols)
	}
	// Healthcare / Don't know Python has no respondents
	if pv.Z[0][0] != 60000 || pv.Z[0][1] != 100000 || !math.IsNaN(pv.Z[1][0]) || pv.Z[1][1] != 80000 {
		t.Fatalf("Z = %v", pv.Z)
	}
}

func TestRespondentsWorldMap_HTML(t *testing.T) {
	t.Parallel()

	fig, err := RespondentsWorldMap(respondents(t))
	if err != nil {
		t.Fatalf("RespondentsWorldMap error: %v", err)
	}
	if fig.FileName() != "respondents_world_map.html" {
		t.Fatalf("FileName = %q", fig.FileName())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(render(t, fig)))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	if doc.Find("#respondents-map").Length() != 1 {
		t.Fatalf("map container missing")
	}
	if src, _ := doc.Find("script[src]").Attr("src"); src != PlotlyJS {
		t.Fatalf("plotly src = %q", src)
	}

	got := map[string]string{}
	doc.Find("#respondents-table tbody tr").Each(func(_ int, s *goquery.Selection) {
		tds := s.Find("td")
		got[tds.Eq(0).Text()] = tds.Eq(1).Text()
	})
	want := map[string]string{"Germany": "2", "United States of America": "1", "Côte d'Ivoire": "1"}
	if len(got) != len(want) {
		t.Fatalf("table rows = %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("count[%s] = %q, want %q", k, got[k], v)
		}
	}

	script := doc.Find("script:not([src])").Text()
	for _, s := range []string{`"country names"`, `"Germany"`, `"rgb(92, 83, 165)"`} {
		if !strings.Contains(script, s) {
			t.Fatalf("script lacks %s", s)
		}
	}
}

func TestCountRespondents_Order(t *testing.T) {
	t.Parallel()

	got, err := CountRespondents(respondents(t))
	if err != nil {
		t.Fatalf("CountRespondents error: %v", err)
	}
	if got[0].Country != "Germany" || got[1].Country != "Côte d'Ivoire" || got[2].Country != "United States of America" {
		t.Fatalf("order = %+v", got)
	}
}

func TestRender_Catalog(t *testing.T) {
	t.Parallel()

	tbl := respondents(t)
	if _, err := Render(FigureSalaryByLanguage, tbl, nil, Style{DPI: 20}); !errors.Is(err, ErrMissingReport) {
		t.Fatalf("missing source report err = %v", err)
	}
	if _, err := Render("nope", tbl, nil, Style{DPI: 20}); !errors.Is(err, ErrUnknownFigure) {
		t.Fatalf("unknown figure err = %v", err)
	}

	lang := report.New(analysis.ReportSalaryByLanguage, "Language", "MedianSalary")
	lang.Add("Python", 90000)
	fig, err := Render(FigureSalaryByLanguage, tbl, map[string]*report.Report{lang.Name: lang}, Style{DPI: 20})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if fig.FileName() != "salary_by_language_bar.png" {
		t.Fatalf("FileName = %q", fig.FileName())
	}
}

func TestSave_CreatesDirAndReplaces(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "figures")
	fig := &htmlFigure{name: "doc", doc: []byte("<p>one</p>")}

	path, err := Save(fig, dir)
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if path != filepath.Join(dir, "doc.html") {
		t.Fatalf("path = %q", path)
	}

	fig.doc = []byte("<p>two</p>")
	if _, err := Save(fig, dir); err != nil {
		t.Fatalf("second Save error: %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "<p>two</p>" {
		t.Fatalf("content = %q", b)
	}

	if err := (NopDisplay{}).Display(path); err != nil {
		t.Fatalf("NopDisplay error: %v", err)
	}
}
