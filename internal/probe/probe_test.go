package probe

import (
	"reflect"
	"strings"
	"testing"

	"devsurvey/internal/frame"
)

// TestInferKinds verifies column kind inference across mixed samples.
//
// This test ensures that:
//   - integer and float columns are numbers
//   - missing cells do not break number detection
//   - all-missing columns fall back to text
func TestInferKinds(t *testing.T) {
	t.Parallel()

	header := []string{"id", "salary", "country", "empty"}
	rows := [][]any{
		{"1", "1000.5", "Germany", nil},
		{"2", nil, "France", nil},
		{"3", "2e3", nil, nil},
	}

	got := InferKinds(header, rows)
	want := []frame.Kind{frame.KindNumber, frame.KindNumber, frame.KindText, frame.KindText}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("InferKinds() = %v, want %v", got, want)
	}
}

func TestInferKinds_ShortRows(t *testing.T) {
	t.Parallel()

	got := InferKinds([]string{"a", "b"}, [][]any{{"1"}})
	want := []frame.Kind{frame.KindNumber, frame.KindText}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("InferKinds() = %v, want %v", got, want)
	}
}

func TestProfile(t *testing.T) {
	t.Parallel()

	rows := [][]any{{"x"}, {"y"}, {"x"}, {nil}}
	ps := Profile([]string{"c"}, rows)
	if len(ps) != 1 {
		t.Fatalf("len = %d", len(ps))
	}
	p := ps[0]
	if p.NonNull != 3 || p.Distinct != 2 || p.Rows != 4 {
		t.Fatalf("profile = %+v", p)
	}
	if p.NullRatio() != 0.25 {
		t.Fatalf("NullRatio = %v", p.NullRatio())
	}
	if !reflect.DeepEqual(p.Examples, []string{"x", "y"}) {
		t.Fatalf("Examples = %v", p.Examples)
	}

	report := FormatReport("entry.csv", ps)
	if !strings.Contains(report, "== entry.csv (1 columns)") || !strings.Contains(report, "null= 25.0%") {
		t.Fatalf("report = %q", report)
	}
}
