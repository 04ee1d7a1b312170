// Package config defines the survey pipeline configuration file, its
// defaults, loading (JSON or YAML) and validation.
package config

// Pipeline is the top-level configuration for one survey run.
type Pipeline struct {
	Job     string        `json:"job" yaml:"job"`
	Source  Source        `json:"source" yaml:"source"`
	Parser  Parser        `json:"parser" yaml:"parser"`
	Catalog Catalog       `json:"catalog" yaml:"catalog"`
	Output  Output        `json:"output" yaml:"output"`
	Storage []Storage     `json:"storage" yaml:"storage"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// Source names the zip archive and the two CSV entries inside it.
type Source struct {
	Archive          string `json:"archive" yaml:"archive"`
	RespondentsEntry string `json:"respondents_entry" yaml:"respondents_entry"`
	SchemaEntry      string `json:"schema_entry" yaml:"schema_entry"`
}

// Parser carries CSV options (comma, lazy_quotes, na_values, header_map).
type Parser struct {
	Options Options `json:"options" yaml:"options"`
}

// Catalog is the fixed data the preprocessor and analyzer work from.
type Catalog struct {
	Languages        []string  `json:"languages" yaml:"languages"`
	ExperienceBins   []float64 `json:"experience_bins" yaml:"experience_bins"`
	ExperienceLabels []string  `json:"experience_labels" yaml:"experience_labels"`
	TopQuantile      float64   `json:"top_quantile" yaml:"top_quantile"`
	TopN             int       `json:"top_n" yaml:"top_n"`

	// Reports and Figures select which catalog entries run; empty means all.
	Reports []string `json:"reports" yaml:"reports"`
	Figures []string `json:"figures" yaml:"figures"`
}

// Output holds the artifact roots. Directories are created on first write.
type Output struct {
	TablesDir  string `json:"tables_dir" yaml:"tables_dir"`
	FiguresDir string `json:"figures_dir" yaml:"figures_dir"`
	DPI        int    `json:"dpi" yaml:"dpi"`
}

// Storage configures an additional report sink ("xlsx", "sqlite",
// "postgres", "mssql"). The CSV table sink is always enabled.
type Storage struct {
	Kind  string `json:"kind" yaml:"kind"`
	DSN   string `json:"dsn" yaml:"dsn"`
	Table string `json:"table" yaml:"table"`
}

// RuntimeConfig controls pipeline execution behavior.
type RuntimeConfig struct {
	// Workers bounds concurrent report/figure tasks. 1 runs them in order.
	Workers int `json:"workers" yaml:"workers"`
}

const (
	DefaultRespondentsEntry = "survey_results_public.csv"
	DefaultSchemaEntry      = "survey_results_schema.csv"
	DefaultTablesDir        = "output/tables"
	DefaultFiguresDir       = "output/figures"
	DefaultDPI              = 300
	DefaultTopQuantile      = 0.75
	DefaultTopN             = 5
)

// Default returns a pipeline populated with the stock catalog.
func Default() Pipeline {
	var p Pipeline
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (p *Pipeline) ApplyDefaults() {
	if p.Job == "" {
		p.Job = "dev_survey"
	}
	if p.Source.RespondentsEntry == "" {
		p.Source.RespondentsEntry = DefaultRespondentsEntry
	}
	if p.Source.SchemaEntry == "" {
		p.Source.SchemaEntry = DefaultSchemaEntry
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	if len(p.Catalog.Languages) == 0 {
		p.Catalog.Languages = []string{"Python", "JavaScript", "SQL", "C#", "R"}
	}
	if len(p.Catalog.ExperienceBins) == 0 {
		p.Catalog.ExperienceBins = []float64{0, 3, 6, 10, 15, 50}
	}
	if len(p.Catalog.ExperienceLabels) == 0 {
		p.Catalog.ExperienceLabels = []string{"Junior", "Middle", "Senior", "Lead", "Principal"}
	}
	if p.Catalog.TopQuantile == 0 {
		p.Catalog.TopQuantile = DefaultTopQuantile
	}
	if p.Catalog.TopN == 0 {
		p.Catalog.TopN = DefaultTopN
	}
	if p.Output.TablesDir == "" {
		p.Output.TablesDir = DefaultTablesDir
	}
	if p.Output.FiguresDir == "" {
		p.Output.FiguresDir = DefaultFiguresDir
	}
	if p.Output.DPI == 0 {
		p.Output.DPI = DefaultDPI
	}
	if p.Runtime.Workers <= 0 {
		p.Runtime.Workers = 1
	}
}
