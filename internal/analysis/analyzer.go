// Package analysis computes the survey's aggregate reports.
//
// Every report is a pure function over a preprocessed *frame.Table. Analyzer
// binds the functions to stable names so the set of reports to run can come
// from configuration, and persists each result through a storage.Sink.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"devsurvey/internal/frame"
	"devsurvey/internal/report"
	"devsurvey/internal/storage"
)

// ErrUnknownReport is returned by Run for a name outside Catalog.
var ErrUnknownReport = errors.New("analysis: unknown report")

// Catalog lists every report name in the order the pipeline runs them.
var Catalog = []string{
	ReportWorkExpStats,
	ReportSalaryByExperience,
	ReportPythonVsNonPython,
	ReportRemoteWorkSalary,
	ReportSalaryByLanguage,
	ReportHighPaidRemoteIndustry,
}

// Options parameterizes the reports that take arguments.
type Options struct {
	Languages   []string
	TopQuantile float64
	TopN        int
}

// Analyzer runs named reports and saves them.
type Analyzer struct {
	opt  Options
	sink storage.Sink
}

// New returns an Analyzer writing to sink. A nil sink computes without saving.
func New(opt Options, sink storage.Sink) *Analyzer {
	return &Analyzer{opt: opt, sink: sink}
}

// Compute runs the report called name without persisting it.
func (a *Analyzer) Compute(t *frame.Table, name string) (*report.Report, error) {
	switch name {
	case ReportWorkExpStats:
		return WorkExpStats(t)
	case ReportSalaryByExperience:
		return SalaryByExperienceLevel(t)
	case ReportPythonVsNonPython:
		return PythonVsNonPythonSalary(t)
	case ReportRemoteWorkSalary:
		return RemoteWorkSalary(t)
	case ReportSalaryByLanguage:
		return SalaryByLanguage(t, a.opt.Languages)
	case ReportHighPaidRemoteIndustry:
		return HighPaidRemoteByIndustry(t, a.opt.TopQuantile, a.opt.TopN)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownReport, name)
}

// Run computes the report called name and writes it to the sink.
func (a *Analyzer) Run(ctx context.Context, t *frame.Table, name string) (*report.Report, error) {
	r, err := a.Compute(t, name)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", name, err)
	}
	if a.sink == nil {
		return r, nil
	}
	if err := a.sink.WriteReport(ctx, r); err != nil {
		return r, fmt.Errorf("save report %s: %w", name, err)
	}
	return r, nil
}
