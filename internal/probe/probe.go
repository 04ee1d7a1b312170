// Package probe infers column kinds and light profiles from parsed CSV rows.
//
// The loader uses InferKinds to decide which columns become number columns;
// cmd/probe uses Profile to print a per-column summary of an archive entry.
//
// All inference is best-effort and never fails.
package probe

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"devsurvey/internal/frame"
)

// distinctCap bounds per-column distinct tracking in Profile.
const distinctCap = 10000

// InferKinds returns a kind per column of row-major sample rows. Values are
// nil (missing) or string.
func InferKinds(header []string, rows [][]any) []frame.Kind {
	out := make([]frame.Kind, len(header))
	vals := make([]string, len(rows))
	valid := make([]bool, len(rows))

	for col := range header {
		for i, r := range rows {
			vals[i], valid[i] = "", false
			if col >= len(r) {
				continue
			}
			if s, ok := r[col].(string); ok {
				vals[i], valid[i] = s, true
			}
		}
		out[col] = KindOf(vals, valid)
	}
	return out
}

// KindOf infers the kind of a single column. A column is KindNumber when
// every present value parses as a float and at least one value is present;
// everything else is KindText.
func KindOf(vals []string, valid []bool) frame.Kind {
	seen := false
	for i, s := range vals {
		if !valid[i] {
			continue
		}
		seen = true
		if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return frame.KindText
		}
	}
	if !seen {
		return frame.KindText
	}
	return frame.KindNumber
}

// ColumnProfile summarizes one column of a sample.
type ColumnProfile struct {
	Name     string
	Kind     frame.Kind
	Rows     int
	NonNull  int
	Distinct int
	// Capped is true when Distinct stopped counting at the internal cap.
	Capped bool
	// Examples holds up to three most frequent values.
	Examples []string
}

// NullRatio returns the fraction of missing values.
func (p ColumnProfile) NullRatio() float64 {
	if p.Rows == 0 {
		return 0
	}
	return float64(p.Rows-p.NonNull) / float64(p.Rows)
}

// Profile computes a ColumnProfile per column of rows.
func Profile(header []string, rows [][]any) []ColumnProfile {
	kinds := InferKinds(header, rows)
	out := make([]ColumnProfile, len(header))

	for col, name := range header {
		p := ColumnProfile{Name: name, Kind: kinds[col], Rows: len(rows)}
		counts := map[string]int{}

		for _, r := range rows {
			if col >= len(r) || r[col] == nil {
				continue
			}
			p.NonNull++
			s := fmt.Sprint(r[col])
			if _, ok := counts[s]; !ok && len(counts) >= distinctCap {
				p.Capped = true
				continue
			}
			counts[s]++
		}
		p.Distinct = len(counts)
		p.Examples = topValues(counts, 3)
		out[col] = p
	}
	return out
}

func topValues(counts map[string]int, n int) []string {
	vals := make([]string, 0, len(counts))
	for v := range counts {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool {
		if counts[vals[i]] != counts[vals[j]] {
			return counts[vals[i]] > counts[vals[j]]
		}
		return vals[i] < vals[j]
	})
	if len(vals) > n {
		vals = vals[:n]
	}
	return vals
}

// FormatReport renders profiles as an aligned text table.
func FormatReport(entry string, profiles []ColumnProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s (%d columns)\n", entry, len(profiles))
	for _, p := range profiles {
		distinct := strconv.Itoa(p.Distinct)
		if p.Capped {
			distinct += "+"
		}
		fmt.Fprintf(&b, "%-32s %-7s null=%5.1f%% distinct=%-7s e.g. %s\n",
			p.Name, p.Kind, 100*p.NullRatio(), distinct, strings.Join(p.Examples, " | "))
	}
	return b.String()
}
