// Package pipeline runs one survey batch: load the archive, preprocess the
// respondent table, compute the configured reports and render the figures.
//
// Load and preprocessing failures abort the run. Every later task (the
// completeness count, each report, each figure) is isolated: its error is
// recorded, siblings keep running, and Run returns the joined failures next
// to a Summary of what was produced.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"devsurvey/internal/analysis"
	"devsurvey/internal/config"
	"devsurvey/internal/frame"
	"devsurvey/internal/loader"
	"devsurvey/internal/metrics"
	"devsurvey/internal/preprocess"
	"devsurvey/internal/report"
	"devsurvey/internal/storage"
	"devsurvey/internal/visualize"

	// The CSV table sink is always on.
	_ "devsurvey/internal/storage/csvfile"
)

// Logger is the minimal logging interface used by the runner.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Summary describes a finished run.
type Summary struct {
	RunID       string
	Respondents int
	// CompleteResponses is -1 when the count failed.
	CompleteResponses int
	// Reports lists the report names saved, in catalog order.
	Reports []string
	// Figures lists the figure paths written, in catalog order.
	Figures []string
	// Failed names every task that returned an error.
	Failed   []string
	Duration time.Duration
}

// Runner executes a pipeline configuration.
type Runner struct {
	Config  config.Pipeline
	Display visualize.Displayer
	Logger  Logger
	// Verbose logs every task, not only failures.
	Verbose bool
	// RunID tags stored rows and metrics; generated when empty.
	RunID string

	// NewSink is a storage factory seam; storage.New when nil.
	NewSink func(ctx context.Context, cfg storage.Config) (storage.Sink, error)
}

// New returns a Runner for cfg with defaults applied.
func New(cfg config.Pipeline) *Runner {
	cfg.ApplyDefaults()
	return &Runner{Config: cfg}
}

// taskErrors collects isolated failures from concurrent tasks.
type taskErrors struct {
	mu    sync.Mutex
	names []string
	errs  []error
	logf  func(format string, v ...any)
}

func (te *taskErrors) add(name string, err error) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.names = append(te.names, name)
	te.errs = append(te.errs, err)
	te.logf("pipeline: task=%s status=error err=%v", name, err)
}

// Run executes the batch. The returned Summary is non-nil whenever loading
// and preprocessing succeeded, even when some tasks failed.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	cfg := r.Config
	cfg.ApplyDefaults()
	logf := r.logger()

	runID := r.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	sum := &Summary{RunID: runID, CompleteResponses: -1}
	logf("pipeline: stage=start run_id=%s job=%s archive=%s workers=%d", runID, cfg.Job, cfg.Source.Archive, cfg.Runtime.Workers)

	stepStart := time.Now()
	ds, err := loader.Load(ctx, cfg.Source.Archive, loader.OptionsFromConfig(cfg))
	metrics.RecordStep("load", stepStart, err)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load: %w", err)
	}
	sum.Respondents = ds.Respondents.NumRows()
	metrics.AddRecords("respondents", ds.Respondents.NumRows())
	metrics.AddRecords("schema", ds.Schema.NumRows())
	logf("pipeline: stage=load ok respondents=%d questions=%d duration=%s",
		ds.Respondents.NumRows(), ds.Schema.NumRows(), durMS(stepStart))

	stepStart = time.Now()
	table, err := preprocess.Preprocess(ds.Respondents, preprocess.CatalogFromConfig(cfg.Catalog))
	metrics.RecordStep("preprocess", stepStart, err)
	if err != nil {
		return nil, fmt.Errorf("pipeline: preprocess: %w", err)
	}
	logf("pipeline: stage=preprocess ok columns=%d duration=%s", len(table.Names()), durMS(stepStart))

	failed := &taskErrors{logf: logf}

	stepStart = time.Now()
	n, err := analysis.CompleteResponses(ds.Respondents, ds.Schema)
	metrics.RecordStep("completeness", stepStart, err)
	if err != nil {
		failed.add("complete_responses", err)
	} else {
		sum.CompleteResponses = n
		logf("pipeline: stage=completeness ok complete=%d", n)
	}

	sink, err := r.openSinks(ctx, cfg, runID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: storage: %w", err)
	}

	reports := r.runReports(ctx, cfg, table, sink, failed, sum)

	if err := sink.Close(); err != nil {
		failed.add("storage_close", err)
	}

	r.runFigures(ctx, cfg, table, reports, failed, sum)

	sum.Failed = failed.names
	sum.Duration = time.Since(start)
	logf("pipeline: stage=done run_id=%s reports=%d figures=%d failed=%d duration=%s",
		runID, len(sum.Reports), len(sum.Figures), len(sum.Failed), durMS(start))

	return sum, errors.Join(failed.errs...)
}

// openSinks opens the CSV table sink plus every configured mirror. When a
// mirror fails to open, the sinks opened so far are closed.
func (r *Runner) openSinks(ctx context.Context, cfg config.Pipeline, runID string) (storage.Sink, error) {
	newSink := r.NewSink
	if newSink == nil {
		newSink = storage.New
	}

	cfgs := []storage.Config{{Kind: "csv", DSN: cfg.Output.TablesDir, RunID: runID}}
	for _, s := range cfg.Storage {
		cfgs = append(cfgs, storage.Config{Kind: strings.ToLower(strings.TrimSpace(s.Kind)), DSN: s.DSN, Table: s.Table, RunID: runID})
	}

	sinks := make([]storage.Sink, 0, len(cfgs))
	for _, sc := range cfgs {
		s, err := newSink(ctx, sc)
		if err != nil {
			_ = storage.Multi(sinks...).Close()
			return nil, fmt.Errorf("open %s sink: %w", sc.Kind, err)
		}
		sinks = append(sinks, s)
	}
	return storage.Multi(sinks...), nil
}

func (r *Runner) runReports(ctx context.Context, cfg config.Pipeline, t *frame.Table, sink storage.Sink, failed *taskErrors, sum *Summary) map[string]*report.Report {
	names := cfg.Catalog.Reports
	if len(names) == 0 {
		names = analysis.Catalog
	}
	an := analysis.New(analysis.Options{
		Languages:   cfg.Catalog.Languages,
		TopQuantile: cfg.Catalog.TopQuantile,
		TopN:        cfg.Catalog.TopN,
	}, sink)

	done := make([]*report.Report, len(names))
	saved := make([]bool, len(names))

	g := &errgroup.Group{}
	g.SetLimit(cfg.Runtime.Workers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failed.add("report:"+name, err)
				return nil
			}
			start := time.Now()
			rep, err := an.Run(ctx, t, name)
			metrics.RecordStep("report", start, err)
			metrics.RecordArtifact("report", err)
			// A computed report still feeds the figures when saving failed.
			done[i] = rep
			if err != nil {
				failed.add("report:"+name, err)
				return nil
			}
			saved[i] = true
			if r.Verbose {
				r.logger()("pipeline: task=report:%s status=ok rows=%d duration=%s", name, rep.Len(), durMS(start))
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]*report.Report, len(names))
	for i, rep := range done {
		if rep != nil {
			out[rep.Name] = rep
		}
		if saved[i] {
			sum.Reports = append(sum.Reports, names[i])
		}
	}
	return out
}

func (r *Runner) runFigures(ctx context.Context, cfg config.Pipeline, t *frame.Table, reports map[string]*report.Report, failed *taskErrors, sum *Summary) {
	names := cfg.Catalog.Figures
	if len(names) == 0 {
		names = visualize.Catalog
	}
	display := r.Display
	if display == nil {
		display = visualize.NopDisplay{}
	}
	st := visualize.Style{DPI: cfg.Output.DPI}

	paths := make([]string, len(names))

	g := &errgroup.Group{}
	g.SetLimit(cfg.Runtime.Workers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failed.add("figure:"+name, err)
				return nil
			}
			start := time.Now()
			path, err := r.figure(name, t, reports, st, cfg.Output.FiguresDir, display)
			metrics.RecordStep("figure", start, err)
			metrics.RecordArtifact("figure", err)
			if err != nil {
				failed.add("figure:"+name, err)
				return nil
			}
			paths[i] = path
			if r.Verbose {
				r.logger()("pipeline: task=figure:%s status=ok path=%s duration=%s", name, path, durMS(start))
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range paths {
		if p != "" {
			sum.Figures = append(sum.Figures, p)
		}
	}
}

func (r *Runner) figure(name string, t *frame.Table, reports map[string]*report.Report, st visualize.Style, dir string, display visualize.Displayer) (string, error) {
	fig, err := visualize.Render(name, t, reports, st)
	if err != nil {
		return "", err
	}
	path, err := visualize.Save(fig, dir)
	if err != nil {
		return "", err
	}
	if err := display.Display(path); err != nil {
		return path, fmt.Errorf("display %s: %w", path, err)
	}
	return path, nil
}

func (r *Runner) logger() func(format string, v ...any) {
	if r.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return r.Logger.Printf
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }
