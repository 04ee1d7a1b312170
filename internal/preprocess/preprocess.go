// Package preprocess cleans and enriches the raw respondent table.
//
// Steps (see Preprocess):
//   - RemoteWork: trim + lowercase
//   - LanguageHaveWorkedWith, LearnCode: missing -> ""
//   - EdLevel: missing -> "Unknown"
//   - WorkExp: missing -> median of the original non-missing values
//   - know_<Language>, PythonKnowledge, learn_by_courses, ExperienceLevel
package preprocess

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"devsurvey/internal/config"
	"devsurvey/internal/frame"
	"devsurvey/internal/stats"
)

// Source columns the preprocessor reads.
const (
	ColRemoteWork = "RemoteWork"
	ColLanguages  = "LanguageHaveWorkedWith"
	ColLearnCode  = "LearnCode"
	ColEdLevel    = "EdLevel"
	ColWorkExp    = "WorkExp"
)

// Derived columns the preprocessor writes.
const (
	ColPythonKnowledge = "PythonKnowledge"
	ColLearnByCourses  = "learn_by_courses"
	ColExperienceLevel = "ExperienceLevel"
	KnowPrefix         = "know_"
)

// KnowColumn returns the derived column name for a tracked language.
func KnowColumn(lang string) string { return KnowPrefix + lang }

// Catalog is the fixed data enrichment works from.
type Catalog struct {
	// Languages are tracked with a know_<Language> column each.
	Languages []string
	// ExperienceBins are the bucket edges; len(ExperienceLabels) == len(ExperienceBins)-1.
	ExperienceBins   []float64
	ExperienceLabels []string

	// PythonLanguage is the language whose know_ column drives PythonKnowledge.
	PythonLanguage string
	KnowPython     string
	NoPython       string

	CoursesMarker  string
	UnknownEdLevel string
}

// DefaultCatalog returns the stock survey catalog.
func DefaultCatalog() Catalog {
	return CatalogFromConfig(config.Default().Catalog)
}

// CatalogFromConfig builds a Catalog from the pipeline configuration.
func CatalogFromConfig(c config.Catalog) Catalog {
	return Catalog{
		Languages:        append([]string(nil), c.Languages...),
		ExperienceBins:   append([]float64(nil), c.ExperienceBins...),
		ExperienceLabels: append([]string(nil), c.ExperienceLabels...),
		PythonLanguage:   "Python",
		KnowPython:       "Know Python",
		NoPython:         "Don't know Python",
		CoursesMarker:    "Online Courses",
		UnknownEdLevel:   "Unknown",
	}
}

// SchemaValidationError lists every source column Preprocess needs but the
// input lacks. It unwraps to a *frame.MissingColumnError for the first one.
type SchemaValidationError struct {
	Missing []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation: missing columns %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaValidationError) Unwrap() error {
	if len(e.Missing) == 0 {
		return nil
	}
	return &frame.MissingColumnError{Column: e.Missing[0]}
}

// RequiredColumns returns the source columns Preprocess reads.
func RequiredColumns() []string {
	return []string{ColRemoteWork, ColLanguages, ColLearnCode, ColEdLevel, ColWorkExp}
}

// Preprocess returns an enriched copy of raw. raw itself is not modified and
// the result has exactly raw.NumRows() rows.
func Preprocess(raw *frame.Table, cat Catalog) (*frame.Table, error) {
	var missing []string
	for _, name := range RequiredColumns() {
		if !raw.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaValidationError{Missing: missing}
	}
	if len(cat.ExperienceLabels) != len(cat.ExperienceBins)-1 {
		return nil, fmt.Errorf("preprocess: %d experience labels for %d bins", len(cat.ExperienceLabels), len(cat.ExperienceBins)-1)
	}

	cols, _ := raw.Columns(RequiredColumns()...)
	remote, langs, learn, ed, workExp := cols[0], cols[1], cols[2], cols[3], cols[4]

	// Median first: it must reflect the original data, not any filled value.
	workExpFilled := fillNumber(workExp, stats.Median(validNumbers(workExp)))

	langsFilled := fillText(langs, "")
	learnFilled := fillText(learn, "")

	derived := []*frame.Column{
		normalizeRemote(remote),
		langsFilled,
		learnFilled,
		fillText(ed, cat.UnknownEdLevel),
		workExpFilled,
	}

	knowPython := containsColumn(KnowColumn(cat.PythonLanguage), langsFilled, cat.PythonLanguage)
	derived = append(derived,
		knowPython,
		pythonKnowledge(knowPython, cat),
		containsColumn(ColLearnByCourses, learnFilled, cat.CoursesMarker),
	)
	for _, lang := range cat.Languages {
		if lang == cat.PythonLanguage {
			continue
		}
		derived = append(derived, containsColumn(KnowColumn(lang), langsFilled, lang))
	}
	derived = append(derived, ExperienceLevels(workExpFilled, cat.ExperienceBins, cat.ExperienceLabels))

	out := raw
	for _, c := range derived {
		var err error
		if out, err = out.With(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func normalizeRemote(c *frame.Column) *frame.Column {
	// A Caser is stateful; keep one per call.
	lower := cases.Lower(language.Und)
	n := c.Len()
	vals := make([]string, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		s, ok := c.String(i)
		if !ok {
			continue
		}
		vals[i], valid[i] = lower.String(strings.TrimSpace(s)), true
	}
	return frame.NewTextColumn(c.Name(), vals, valid)
}

// fillText returns a text copy of c with missing values replaced by fill.
func fillText(c *frame.Column, fill string) *frame.Column {
	n := c.Len()
	vals := make([]string, n)
	for i := 0; i < n; i++ {
		if s, ok := c.String(i); ok {
			vals[i] = s
		} else {
			vals[i] = fill
		}
	}
	return frame.NewTextColumn(c.Name(), vals, nil)
}

// fillNumber returns a number copy of c with missing values replaced by fill.
// A NaN fill (no data to take a median from) leaves values missing.
func fillNumber(c *frame.Column, fill float64) *frame.Column {
	n := c.Len()
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		v, ok := c.Float(i)
		if !ok {
			v = fill
		}
		vals[i] = v
	}
	return frame.NewNumberColumn(c.Name(), vals)
}

func containsColumn(name string, src *frame.Column, needle string) *frame.Column {
	n := src.Len()
	vals := make([]bool, n)
	for i := 0; i < n; i++ {
		s, ok := src.String(i)
		vals[i] = ok && s != "" && strings.Contains(s, needle)
	}
	return frame.NewBoolColumn(name, vals, nil)
}

func pythonKnowledge(know *frame.Column, cat Catalog) *frame.Column {
	n := know.Len()
	vals := make([]string, n)
	for i := 0; i < n; i++ {
		if b, _ := know.Bool(i); b {
			vals[i] = cat.KnowPython
		} else {
			vals[i] = cat.NoPython
		}
	}
	return frame.NewCategoryColumn(ColPythonKnowledge, vals, nil, []string{cat.NoPython, cat.KnowPython})
}

// ExperienceLevels buckets c into right-open intervals [bins[i], bins[i+1]),
// with the last interval closed on the right. Values outside
// [bins[0], bins[len-1]] and missing values get no bucket.
func ExperienceLevels(c *frame.Column, bins []float64, labels []string) *frame.Column {
	n := c.Len()
	vals := make([]string, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		v, ok := c.Float(i)
		if !ok {
			continue
		}
		if b := Bucket(v, bins); b >= 0 {
			vals[i], valid[i] = labels[b], true
		}
	}
	return frame.NewCategoryColumn(ColExperienceLevel, vals, valid, labels)
}

// Bucket returns the interval index of v in bins, or -1.
func Bucket(v float64, bins []float64) int {
	last := len(bins) - 1
	if last < 1 || math.IsNaN(v) || v < bins[0] || v > bins[last] {
		return -1
	}
	if v == bins[last] {
		return last - 1
	}
	// first edge strictly greater than v closes v's interval
	i := sort.Search(len(bins), func(i int) bool { return bins[i] > v })
	return i - 1
}

func validNumbers(c *frame.Column) []float64 {
	out := make([]float64, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if v, ok := c.Float(i); ok {
			out = append(out, v)
		}
	}
	return out
}
