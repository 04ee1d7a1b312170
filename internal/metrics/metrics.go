// Package metrics is the backend-agnostic instrumentation facade.
//
// Pipeline code calls the package-level helpers; a binary installs a concrete
// exporter once with SetBackend. Until then every call goes to a nop backend.
package metrics

import (
	"sync"
	"time"
)

// Metric names. Exporters translate these into their own naming scheme.
const (
	StepTotal           = "survey_step_total"
	StepDurationSeconds = "survey_step_duration_seconds"
	RecordsTotal        = "survey_records_total"
	ArtifactsTotal      = "survey_artifacts_total"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Labels are metric dimensions, e.g. {"step": "load", "status": "ok"}.
type Labels map[string]string

// Backend receives metric events. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b; nil restores the nop backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush pushes buffered metrics through the installed backend.
func Flush() error { return current().Flush() }

// Status maps an error to StatusOK or StatusError.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// RecordStep counts one execution of a pipeline step and its duration.
func RecordStep(step string, start time.Time, err error) {
	l := Labels{"step": step, "status": Status(err)}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, time.Since(start).Seconds(), l)
}

// AddRecords counts rows of the given kind ("respondents", "schema", "complete").
func AddRecords(kind string, n int) {
	IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordArtifact counts one produced (or failed) report or figure.
func RecordArtifact(kind string, err error) {
	IncCounter(ArtifactsTotal, 1, Labels{"kind": kind, "status": Status(err)})
}
