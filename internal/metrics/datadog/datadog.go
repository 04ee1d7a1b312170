// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Flushing:
//   - metrics are buffered in memory under a mutex
//   - Flush() runs periodically on a ticker (default: once per minute)
//   - Close() stops the ticker and flushes one final time
//
// A survey run is usually short, so most runs submit exactly once, from
// Close. The ticker keeps a time series flowing for large archives.
//
// Counters are submitted as COUNT series. Histograms are summarised per
// flush into gauges: <name>.p50, .p90, .p95, .p99, .max and .samples.
//
// The API key and site are read by the Datadog client itself
// (DD_API_KEY, DD_SITE).
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"gonum.org/v1/gonum/stat"

	"devsurvey/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "dev_survey".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"team:data", "run_id:..."}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams; production leaves them nil.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the slice of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// metricDef maps a facade metric onto its Datadog name. Events missing a
// required label are dropped.
type metricDef struct {
	name     string
	required string
}

var knownMetrics = map[string]metricDef{
	metrics.StepTotal:           {name: "survey.step.total", required: "step"},
	metrics.StepDurationSeconds: {name: "survey.step.duration_seconds", required: "step"},
	metrics.RecordsTotal:        {name: "survey.records.total", required: "kind"},
	metrics.ArtifactsTotal:      {name: "survey.artifacts.total", required: "kind"},
}

// seriesKey identifies one buffered series: Datadog name plus its label
// tags, sorted and joined with tagSep.
type seriesKey struct {
	metric string
	tags   string
}

const tagSep = "\x00"

// buffer holds what accumulated since the last flush.
type buffer struct {
	counts  map[seriesKey]float64
	samples map[seriesKey][]float64
}

func newBuffer() buffer {
	return buffer{counts: map[seriesKey]float64{}, samples: map[seriesKey][]float64{}}
}

func (b buffer) empty() bool { return len(b.counts) == 0 && len(b.samples) == 0 }

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu  sync.Mutex
	buf buffer
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "dev_survey".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//
// Network errors surface from Flush, not from NewBackend.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "dev_survey"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	b := &Backend{
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   append([]string{resolveEnvTag(), "job:" + job}, opts.Tags...),
		now:        opts.now,
		newTicker:  opts.newTicker,
		api:        opts.submitter,
		buf:        newBuffer(),
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.newTicker == nil {
		b.newTicker = time.NewTicker
	}
	if b.api == nil {
		b.api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush().
// Call once; a second Close panics.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// key resolves a facade event to its series, or false when it is dropped.
func key(name string, labels metrics.Labels) (seriesKey, bool) {
	def, ok := knownMetrics[name]
	if !ok || labels[def.required] == "" {
		return seriesKey{}, false
	}
	tags := make([]string, 0, len(labels))
	for k, v := range labels {
		if v != "" {
			tags = append(tags, k+":"+v)
		}
	}
	sort.Strings(tags)
	return seriesKey{metric: def.name, tags: strings.Join(tags, tagSep)}, true
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	k, ok := key(name, labels)
	if !ok {
		return
	}
	b.mu.Lock()
	b.buf.counts[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	k, ok := key(name, labels)
	if !ok {
		return
	}
	b.mu.Lock()
	b.buf.samples[k] = append(b.buf.samples[k], value)
	b.mu.Unlock()
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Edge cases:
//   - Returns nil without submitting when nothing is buffered.
//   - Buffers are reset even if submission fails; delivery is at most once.
func (b *Backend) Flush() error {
	b.mu.Lock()
	snap := b.buf
	b.buf = newBuffer()
	b.mu.Unlock()

	if snap.empty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries turns a snapshot into Datadog series at a fixed timestamp, in
// a stable order: counters first, then histogram summaries, each sorted by
// name and tags.
func (b *Backend) buildSeries(s buffer, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.counts)+len(summaryGauges)*len(s.samples))

	for _, k := range sortedKeys(s.counts) {
		series = append(series, point(k.metric, datadogV2.METRICINTAKETYPE_COUNT, s.counts[k], b.tagsFor(k), nowUnix))
	}
	for _, k := range sortedKeys(s.samples) {
		series = append(series, summarize(k.metric, s.samples[k], b.tagsFor(k), nowUnix)...)
	}
	return series
}

func (b *Backend) tagsFor(k seriesKey) []string {
	out := make([]string, 0, len(b.baseTags)+4)
	out = append(out, b.baseTags...)
	if k.tags != "" {
		out = append(out, strings.Split(k.tags, tagSep)...)
	}
	return out
}

// summaryGauges are the percentiles reported per histogram.
var summaryGauges = []struct {
	suffix string
	p      float64
}{
	{".p50", 0.50},
	{".p90", 0.90},
	{".p95", 0.95},
	{".p99", 0.99},
}

// summarize returns the percentile, max and sample-count gauges for one
// histogram. samples is not modified.
func summarize(metric string, samples []float64, tags []string, nowUnix int64) []datadogV2.MetricSeries {
	if len(samples) == 0 {
		return nil
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	out := make([]datadogV2.MetricSeries, 0, len(summaryGauges)+2)
	for _, g := range summaryGauges {
		v := stat.Quantile(g.p, stat.Empirical, sorted, nil)
		out = append(out, point(metric+g.suffix, datadogV2.METRICINTAKETYPE_GAUGE, v, tags, nowUnix))
	}
	return append(out,
		point(metric+".max", datadogV2.METRICINTAKETYPE_GAUGE, sorted[len(sorted)-1], tags, nowUnix),
		point(metric+".samples", datadogV2.METRICINTAKETYPE_GAUGE, float64(len(sorted)), tags, nowUnix),
	)
}

func point(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func sortedKeys[V any](m map[seriesKey]V) []seriesKey {
	out := make([]seriesKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].metric != out[j].metric {
			return out[i].metric < out[j].metric
		}
		return out[i].tags < out[j].tags
	})
	return out
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,team:data".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
