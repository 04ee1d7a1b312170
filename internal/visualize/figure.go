// Package visualize renders survey charts.
//
// Rendering and persistence are separate steps. Renderers are pure: they
// return an in-memory Figure. Save writes a Figure into a directory and a
// Displayer optionally shows the saved file.
package visualize

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Figure is a rendered chart.
type Figure interface {
	// FileName is the artifact name including extension.
	FileName() string
	WriteTo(w io.Writer) (int64, error)
}

// Style controls raster output.
type Style struct {
	DPI int
}

// DefaultDPI matches the print resolution of the published figures.
const DefaultDPI = 300

// DefaultStyle returns a Style at DefaultDPI.
func DefaultStyle() Style { return Style{DPI: DefaultDPI} }

func (s Style) dpi() int {
	if s.DPI <= 0 {
		return DefaultDPI
	}
	return s.DPI
}

// rasterFigure is a gonum plot drawn to PNG on demand.
type rasterFigure struct {
	name          string
	p             *plot.Plot
	width, height vg.Length
	dpi           int
}

func newRaster(name string, p *plot.Plot, width, height vg.Length, st Style) *rasterFigure {
	return &rasterFigure{name: name, p: p, width: width, height: height, dpi: st.dpi()}
}

func (f *rasterFigure) FileName() string { return f.name + ".png" }

func (f *rasterFigure) WriteTo(w io.Writer) (int64, error) {
	c := vgimg.NewWith(vgimg.UseWH(f.width, f.height), vgimg.UseDPI(f.dpi))
	f.p.Draw(draw.New(c))
	return vgimg.PngCanvas{Canvas: c}.WriteTo(w)
}

// htmlFigure is a prerendered HTML document.
type htmlFigure struct {
	name string
	doc  []byte
}

func (f *htmlFigure) FileName() string { return f.name + ".html" }

func (f *htmlFigure) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.doc)
	return int64(n), err
}

// Save writes fig to dir/fig.FileName(), creating dir if needed, and returns
// the path written. An existing file is replaced.
func Save(fig Figure, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("visualize: create %s: %w", dir, err)
	}

	var buf bytes.Buffer
	if _, err := fig.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("visualize: render %s: %w", fig.FileName(), err)
	}

	path := filepath.Join(dir, fig.FileName())
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("visualize: write %s: %w", path, err)
	}
	return path, nil
}

// Displayer shows a saved figure.
type Displayer interface {
	Display(path string) error
}

// NopDisplay shows nothing. It is the default for batch runs.
type NopDisplay struct{}

func (NopDisplay) Display(string) error { return nil }

// LogDisplay logs where each figure was written.
type LogDisplay struct {
	Logger *log.Logger
}

func (d LogDisplay) Display(path string) error {
	l := d.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf("figure: path=%s", path)
	return nil
}
