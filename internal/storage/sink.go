// Package storage persists analysis reports.
//
// A Sink receives finished reports. Backends register themselves under a kind
// ("csv", "xlsx", "sqlite", "postgres", "mssql") from an init function and are
// constructed through New. Import internal/storage/all to link every backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"devsurvey/internal/report"
)

// Sink persists reports.
//
// Concurrency:
//   - WriteReport may be called from several goroutines at once; backends
//     serialize internally where they need to.
//
// Edge cases:
//   - Writing a report with the same Name twice replaces the earlier copy.
//     Re-running a pipeline over the same destination is idempotent.
//   - An empty report is still written (header only, or zero rows).
type Sink interface {
	WriteReport(ctx context.Context, r *report.Report) error

	// Close flushes buffered output and releases backend resources. Call once.
	Close() error
}

// Config selects and parameterizes a backend.
//
// DSN is backend specific: a directory for csv, a file path for xlsx and
// sqlite, a connection string for postgres and mssql. Table names the
// long-format table for the database backends; DefaultTable when empty.
// RunID tags every stored row so several runs can share one table.
type Config struct {
	Kind  string
	DSN   string
	Table string
	RunID string
}

// DefaultTable is the long-format table the database sinks write to.
const DefaultTable = "survey_report_values"

// TableName returns cfg.Table or DefaultTable.
func (cfg Config) TableName() string {
	if cfg.Table == "" {
		return DefaultTable
	}
	return cfg.Table
}

type factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register makes a backend available under kind.
//
// Panics:
//   - If kind is empty or f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New constructs the Sink registered for cfg.Kind.
//
// Errors:
//   - cfg.Kind is empty or not registered.
//   - Whatever the backend factory returns (bad DSN, unreachable server).
func New(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Multi fans reports out to every sink. A write is attempted on all sinks
// even when one fails; the errors are joined.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) WriteReport(ctx context.Context, r *report.Report) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteReport(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
