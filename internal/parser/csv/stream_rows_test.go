package csv

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"devsurvey/internal/config"
	"devsurvey/internal/transformer"
)

// collect streams every row of input and returns its values as strings,
// with "<nil>" for missing cells.
func collect(t *testing.T, input string, opt config.Options) ([]string, [][]string, []int) {
	t.Helper()

	r, err := NewReader(strings.NewReader(input), opt)
	if err != nil {
		t.Fatalf("NewReader error: %v", err)
	}

	out := make(chan *transformer.Row, 16)
	var errLines []int
	errc := make(chan error, 1)
	go func() {
		errc <- r.StreamRows(context.Background(), out, func(line int, err error) {
			errLines = append(errLines, line)
		})
		close(out)
	}()

	var rows [][]string
	for row := range out {
		vals := make([]string, len(row.V))
		for i, v := range row.V {
			if v == nil {
				vals[i] = "<nil>"
			} else {
				vals[i] = v.(string)
			}
		}
		rows = append(rows, vals)
		row.Free()
	}
	if err := <-errc; err != nil {
		t.Fatalf("StreamRows error: %v", err)
	}
	return r.Header(), rows, errLines
}

func TestStreamRows_NAAndPadding(t *testing.T) {
	t.Parallel()

	input := "\uFEFFResponseId, WorkExp ,Country\n1,NA,Germany\n2, 5 \n3,,N/A\n"
	hdr, rows, _ := collect(t, input, config.Options{})

	if want := []string{"ResponseId", "WorkExp", "Country"}; !reflect.DeepEqual(hdr, want) {
		t.Fatalf("header = %v, want %v", hdr, want)
	}

	want := [][]string{
		{"1", "<nil>", "Germany"},
		{"2", "5", "<nil>"},
		{"3", "<nil>", "<nil>"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestStreamRows_CustomOptions(t *testing.T) {
	t.Parallel()

	opt := config.Options{
		"comma":      ";",
		"na_values":  []any{"-"},
		"header_map": map[string]any{"id": "ResponseId"},
	}
	hdr, rows, _ := collect(t, "id;x\n1;NA\n2;-\n", opt)

	if want := []string{"ResponseId", "x"}; !reflect.DeepEqual(hdr, want) {
		t.Fatalf("header = %v, want %v", hdr, want)
	}
	// "NA" is only missing with the default token set.
	want := [][]string{{"1", "NA"}, {"2", "<nil>"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestStreamRows_QuotedMultiline(t *testing.T) {
	t.Parallel()

	_, rows, _ := collect(t, "a,b\n\"x;y, z\",\"line1\nline2\"\n", config.Options{})
	if len(rows) != 1 || rows[0][0] != "x;y, z" || rows[0][1] != "line1\nline2" {
		t.Fatalf("rows = %q", rows)
	}
}

func TestStreamRows_MalformedRecordSkipped(t *testing.T) {
	t.Parallel()

	_, rows, errLines := collect(t, "a,b\n1,\"bad\"x\n2,3\n", config.Options{})
	if len(errLines) != 1 {
		t.Fatalf("onErr calls = %v, want 1", errLines)
	}
	if len(rows) != 1 || rows[0][0] != "2" {
		t.Fatalf("rows = %v, want only the valid record", rows)
	}
}

func TestNewReader_Errors(t *testing.T) {
	t.Parallel()

	if _, err := NewReader(strings.NewReader(""), config.Options{}); err == nil {
		t.Fatalf("empty input: error = nil")
	}
	if _, err := NewReader(strings.NewReader("a,a\n"), config.Options{}); err == nil {
		t.Fatalf("duplicate header: error = nil")
	}
}

func TestStreamRows_Canceled(t *testing.T) {
	t.Parallel()

	r, err := NewReader(strings.NewReader("a\n1\n2\n"), config.Options{})
	if err != nil {
		t.Fatalf("NewReader error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan *transformer.Row)
	if err := r.StreamRows(ctx, out, nil); err != context.Canceled {
		t.Fatalf("StreamRows err = %v, want context.Canceled", err)
	}
}
