package config

import (
	"fmt"
	"strings"
)

// Severity classifies a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single finding from ValidatePipeline. Path is a dotted config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// storageKinds lists the sink kinds cmd/survey links in via storage/all.
var storageKinds = map[string]bool{
	"xlsx":     true,
	"sqlite":   true,
	"postgres": true,
	"mssql":    true,
}

// ValidatePipeline checks p (after ApplyDefaults) and returns every issue
// found. A nil result means the configuration is usable.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(p.Source.Archive) == "" {
		add(SeverityError, "source.archive", "archive path is required")
	}
	if p.Source.RespondentsEntry == p.Source.SchemaEntry {
		add(SeverityError, "source.schema_entry", "schema entry must differ from respondents entry %q", p.Source.RespondentsEntry)
	}

	seen := map[string]bool{}
	for i, lang := range p.Catalog.Languages {
		path := fmt.Sprintf("catalog.languages[%d]", i)
		if strings.TrimSpace(lang) == "" {
			add(SeverityError, path, "language is empty")
			continue
		}
		if seen[lang] {
			add(SeverityWarning, path, "duplicate language %q", lang)
		}
		seen[lang] = true
	}

	bins := p.Catalog.ExperienceBins
	for i := 1; i < len(bins); i++ {
		if bins[i] <= bins[i-1] {
			add(SeverityError, fmt.Sprintf("catalog.experience_bins[%d]", i), "bin edges must be strictly increasing")
			break
		}
	}
	if len(bins) < 2 {
		add(SeverityError, "catalog.experience_bins", "need at least two bin edges")
	} else if len(p.Catalog.ExperienceLabels) != len(bins)-1 {
		add(SeverityError, "catalog.experience_labels", "got %d labels for %d bins", len(p.Catalog.ExperienceLabels), len(bins)-1)
	}

	if q := p.Catalog.TopQuantile; q < 0 || q > 1 {
		add(SeverityError, "catalog.top_quantile", "quantile %v outside [0,1]", q)
	}
	if p.Catalog.TopN < 0 {
		add(SeverityError, "catalog.top_n", "top_n must be positive")
	}
	if p.Output.DPI < 0 {
		add(SeverityError, "output.dpi", "dpi must be positive")
	} else if p.Output.DPI > 1200 {
		add(SeverityWarning, "output.dpi", "dpi %d renders very large images", p.Output.DPI)
	}
	if p.Output.TablesDir == "" || p.Output.FiguresDir == "" {
		add(SeverityError, "output", "tables_dir and figures_dir are required")
	}

	for i, s := range p.Storage {
		path := fmt.Sprintf("storage[%d]", i)
		kind := strings.ToLower(strings.TrimSpace(s.Kind))
		if !storageKinds[kind] {
			add(SeverityError, path+".kind", "unsupported storage kind %q", s.Kind)
			continue
		}
		if strings.TrimSpace(s.DSN) == "" {
			add(SeverityError, path+".dsn", "%s storage needs a dsn", kind)
		}
	}

	if p.Runtime.Workers > 64 {
		add(SeverityWarning, "runtime.workers", "%d workers is more than the catalog has tasks", p.Runtime.Workers)
	}

	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
