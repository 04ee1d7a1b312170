package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"devsurvey/internal/config"
	"devsurvey/internal/metrics"
	"devsurvey/internal/metrics/datadog"
	"devsurvey/internal/metrics/prompush"
	"devsurvey/internal/pipeline"
	"devsurvey/internal/visualize"

	// register all report sinks with the storage factory.
	// config specifies which mirrors to use but we need to build in support for all of them.
	_ "devsurvey/internal/storage/all"
)

// runner is the part of *pipeline.Runner the CLI drives.
type runner interface {
	Run(ctx context.Context) (*pipeline.Summary, error)
}

// metricsBackend is a metrics.Backend that owns a background flush loop.
type metricsBackend interface {
	metrics.Backend
	Close() error
}

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	loadConfig  func(path string) (config.Pipeline, error)
	initMetrics func(ctx context.Context, opts metricsOptions) (func(), error)
	newRunner   func(cfg config.Pipeline, runID string, verbose bool) runner
	newRunID    func() string
}

type metricsOptions struct {
	Backend    string
	JobName    string
	GatewayURL string
	RunID      string
}

// Package-level seams used by initMetrics.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	newPushBackend = func(job, url string, grouping map[string]string) (metrics.Backend, error) {
		return prompush.NewBackend(job, url, grouping)
	}
	setMetricsBackend = metrics.SetBackend
	flushMetrics      = metrics.Flush
	logPrintf         = log.Printf
)

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		initMetrics: initMetrics,
		newRunner: func(cfg config.Pipeline, runID string, verbose bool) runner {
			r := pipeline.New(cfg)
			r.RunID = runID
			r.Logger = log.Default()
			r.Verbose = verbose
			if verbose {
				r.Display = visualize.LogDisplay{Logger: log.Default()}
			}
			return r
		},
		newRunID: uuid.NewString,
	}
}

// main is the entry point for the survey binary. It loads the pipeline
// config, optionally initializes a metrics backend, and executes one batch.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// runMain returns the process exit code: 0 ok, 1 config or run failure,
// 2 usage error.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("survey", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath           string
		archive           string
		outDir            string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
		verbose           bool
	)
	fs.StringVar(&cfgPath, "config", "", "pipeline config path (.json, .yaml or .yml)")
	fs.StringVar(&archive, "archive", "", "survey zip archive (overrides source.archive)")
	fs.StringVar(&outDir, "out", "", "output root; tables and figures go to <out>/tables and <out>/figures")
	fs.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend: none|datadog|pushgateway")
	fs.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	fs.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfgPath = strings.TrimSpace(cfgPath)
	archive = strings.TrimSpace(archive)
	if cfgPath == "" && archive == "" {
		fmt.Fprintln(stderr, "usage: survey -config path/to/pipeline.yaml | -archive path/to/survey.zip [-out dir]")
		return 2
	}

	p := config.Default()
	if cfgPath != "" {
		var err error
		if p, err = deps.loadConfig(cfgPath); err != nil {
			fmt.Fprintf(stderr, "read config: %v\n", err)
			return 1
		}
	}
	if archive != "" {
		p.Source.Archive = archive
	}
	if outDir != "" {
		p.Output.TablesDir = filepath.Join(outDir, "tables")
		p.Output.FiguresDir = filepath.Join(outDir, "figures")
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", cfgPath)
		return 1
	}
	if validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	runID := deps.newRunID()
	cleanup, err := deps.initMetrics(ctx, metricsOptions{
		Backend:    metricsBackendFlg,
		JobName:    p.Job,
		GatewayURL: pushGatewayURLFlg,
		RunID:      runID,
	})
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	sum, err := deps.newRunner(p, runID, verbose).Run(ctx)
	if sum != nil {
		fmt.Fprintf(stdout, "run_id=%s respondents=%d complete=%d reports=%d figures=%d failed=%d duration=%s\n",
			sum.RunID, sum.Respondents, sum.CompleteResponses, len(sum.Reports), len(sum.Figures),
			len(sum.Failed), sum.Duration.Truncate(time.Millisecond))
	}
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}
	return 0
}

// initMetrics wires the selected backend into the metrics package. The
// returned cleanup is never nil and flushes or closes the backend.
func initMetrics(ctx context.Context, opts metricsOptions) (func(), error) {
	nop := func() {}

	jobName := opts.JobName
	if jobName == "" {
		jobName = "dev_survey"
	}

	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "none", "noop":
		return nop, nil

	case "pushgateway", "prom":
		// Decide Pushgateway URL: flag → env → default.
		gwURL := opts.GatewayURL
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		b, err := newPushBackend(jobName, gwURL, map[string]string{"run_id": opts.RunID})
		if err != nil {
			return nop, fmt.Errorf("pushgateway: %w", err)
		}
		logPrintf("metrics: backend=pushgateway url=%s job_name=%s", gwURL, jobName)
		setMetricsBackend(b)
		return func() {
			if err := flushMetrics(); err != nil {
				logPrintf("metrics: pushgateway flush error: %v", err)
			}
		}, nil

	case "datadog", "dd":
		tags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		if opts.RunID != "" {
			tags = append(tags, "run_id:"+opts.RunID)
		}

		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return nop, fmt.Errorf("datadog: %w", err)
		}
		logPrintf("metrics: backend=datadog job_name=%s tags=%v", jobName, tags)
		setMetricsBackend(b)

		// Close stops the periodic flush loop and performs a final flush.
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil
	}

	return nop, fmt.Errorf("unknown metrics backend %q (want none|datadog|pushgateway)", opts.Backend)
}
