package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	p := Default()

	if got, want := p.Catalog.Languages, []string{"Python", "JavaScript", "SQL", "C#", "R"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Languages = %v, want %v", got, want)
	}
	if got, want := p.Catalog.ExperienceBins, []float64{0, 3, 6, 10, 15, 50}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ExperienceBins = %v, want %v", got, want)
	}
	if p.Output.DPI != 300 {
		t.Fatalf("DPI = %d, want 300", p.Output.DPI)
	}
	if p.Runtime.Workers != 1 {
		t.Fatalf("Workers = %d, want 1", p.Runtime.Workers)
	}
	if p.Source.RespondentsEntry != "survey_results_public.csv" || p.Source.SchemaEntry != "survey_results_schema.csv" {
		t.Fatalf("entries = %q/%q", p.Source.RespondentsEntry, p.Source.SchemaEntry)
	}
}

func TestValidatePipeline(t *testing.T) {
	t.Parallel()

	valid := func() Pipeline {
		p := Default()
		p.Source.Archive = "survey.zip"
		return p
	}

	tests := []struct {
		name     string
		mutate   func(p *Pipeline)
		wantPath string
	}{
		{name: "ok", mutate: func(p *Pipeline) {}},
		{name: "missing_archive", mutate: func(p *Pipeline) { p.Source.Archive = " " }, wantPath: "source.archive"},
		{name: "bins_not_increasing", mutate: func(p *Pipeline) { p.Catalog.ExperienceBins = []float64{0, 5, 5, 10, 15, 50} }, wantPath: "catalog.experience_bins[2]"},
		{name: "label_count", mutate: func(p *Pipeline) { p.Catalog.ExperienceLabels = []string{"a"} }, wantPath: "catalog.experience_labels"},
		{name: "quantile_range", mutate: func(p *Pipeline) { p.Catalog.TopQuantile = 1.5 }, wantPath: "catalog.top_quantile"},
		{name: "unknown_storage", mutate: func(p *Pipeline) { p.Storage = []Storage{{Kind: "redis", DSN: "x"}} }, wantPath: "storage[0].kind"},
		{name: "storage_without_dsn", mutate: func(p *Pipeline) { p.Storage = []Storage{{Kind: "sqlite"}} }, wantPath: "storage[0].dsn"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := valid()
			tc.mutate(&p)
			issues := ValidatePipeline(p)

			if tc.wantPath == "" {
				if HasErrors(issues) {
					t.Fatalf("unexpected issues: %+v", issues)
				}
				return
			}
			for _, iss := range issues {
				if iss.Path == tc.wantPath && iss.Severity == SeverityError {
					return
				}
			}
			t.Fatalf("no error at %s; issues=%+v", tc.wantPath, issues)
		})
	}
}

func TestDecode_JSONAndYAML(t *testing.T) {
	t.Parallel()

	jsonSrc := `{"job":"j","source":{"archive":"a.zip"},"catalog":{"languages":["Go"]},"parser":{"options":{"comma":";"}}}`
	yamlSrc := "job: j\nsource:\n  archive: a.zip\ncatalog:\n  languages: [Go]\nparser:\n  options:\n    comma: \";\"\n"

	for name, in := range map[string]struct {
		src    string
		isYAML bool
	}{
		"json": {jsonSrc, false},
		"yaml": {yamlSrc, true},
	} {
		t.Run(name, func(t *testing.T) {
			p, err := Decode(strings.NewReader(in.src), in.isYAML)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if p.Source.Archive != "a.zip" || !reflect.DeepEqual(p.Catalog.Languages, []string{"Go"}) {
				t.Fatalf("decoded = %+v", p)
			}
			if got := p.Parser.Options.Rune("comma", ','); got != ';' {
				t.Fatalf("comma = %q, want ';'", got)
			}
			// defaults still applied for untouched fields
			if p.Output.TablesDir != DefaultTablesDir {
				t.Fatalf("TablesDir = %q", p.Output.TablesDir)
			}
		})
	}
}

func TestDecode_UnknownJSONField(t *testing.T) {
	t.Parallel()

	if _, err := Decode(strings.NewReader(`{"nope":1}`), false); err == nil {
		t.Fatalf("Decode() error = nil, want unknown field error")
	}
}

func TestLoad_PicksDecoderByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yml")
	if err := os.WriteFile(path, []byte("source:\n  archive: s.zip\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if p.Source.Archive != "s.zip" {
		t.Fatalf("Archive = %q", p.Source.Archive)
	}
}

// TestLoad_SamplePipeline keeps the shipped sample config loadable and valid.
func TestLoad_SamplePipeline(t *testing.T) {
	t.Parallel()

	p, err := Load(filepath.Join("..", "..", "configs", "pipelines", "survey.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if issues := ValidatePipeline(p); HasErrors(issues) {
		t.Fatalf("issues = %+v", issues)
	}
	if len(p.Storage) != 2 || p.Runtime.Workers != 4 {
		t.Fatalf("storage = %+v workers = %d", p.Storage, p.Runtime.Workers)
	}
	if got := p.Parser.Options.Strings("na_values", nil); len(got) != 4 {
		t.Fatalf("na_values = %v", got)
	}
}

func TestOptions_Accessors(t *testing.T) {
	t.Parallel()

	o := Options{
		"b":  "true",
		"n":  float64(3),
		"ss": []any{"x", 1, "y"},
		"m":  map[string]any{"A": "a", "B": 2},
	}

	if !o.Bool("b", false) {
		t.Fatalf("Bool(b) = false")
	}
	if got := o.Int("n", 0); got != 3 {
		t.Fatalf("Int(n) = %d", got)
	}
	if got := o.Strings("ss", nil); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("Strings(ss) = %v", got)
	}
	if got := o.StringMap("m"); !reflect.DeepEqual(got, map[string]string{"A": "a"}) {
		t.Fatalf("StringMap(m) = %v", got)
	}
	if got := o.Rune("missing", ','); got != ',' {
		t.Fatalf("Rune default = %q", got)
	}
}
