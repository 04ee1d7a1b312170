// Package prompush exports pipeline metrics to a Prometheus Pushgateway.
//
// Metrics are registered on a private registry and pushed (HTTP PUT, replacing
// the job's group) on every Flush. Batch jobs have no scrape window, so push is
// the only way their metrics reach Prometheus.
package prompush

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"devsurvey/internal/metrics"
)

// Backend implements metrics.Backend on top of client_golang collectors.
type Backend struct {
	pusher *push.Pusher
	reg    *prometheus.Registry

	steps     *prometheus.CounterVec
	records   *prometheus.CounterVec
	artifacts *prometheus.CounterVec
	durations *prometheus.HistogramVec

	mu sync.Mutex // serializes pushes
}

// NewBackend builds a backend pushing to gatewayURL under job. grouping adds
// extra grouping labels (for example run_id) to the pushed group.
func NewBackend(job, gatewayURL string, grouping map[string]string) (*Backend, error) {
	if job == "" {
		return nil, fmt.Errorf("prompush: empty job name")
	}
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}

	b := &Backend{
		reg: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions by outcome.",
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Rows loaded or counted, by kind.",
		}, []string{"kind"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ArtifactsTotal,
			Help: "Reports and figures produced, by outcome.",
		}, []string{"kind", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Pipeline step duration.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"step", "status"}),
	}

	for _, c := range []prometheus.Collector{b.steps, b.records, b.artifacts, b.durations} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}

	b.pusher = push.New(gatewayURL, job).Gatherer(b.reg)
	for k, v := range grouping {
		b.pusher = b.pusher.Grouping(k, v)
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.records.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.ArtifactsTotal:
		b.artifacts.WithLabelValues(labels["kind"], labels["status"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.StepDurationSeconds {
		return
	}
	b.durations.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current values of every collector.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: %w", err)
	}
	return nil
}

var _ metrics.Backend = (*Backend)(nil)
