package analysis

import (
	"math"
	"sort"
	"strings"

	"devsurvey/internal/frame"
	"devsurvey/internal/stats"
)

// group is one key of a group-by with the row positions that carry it.
type group struct {
	key  string
	rows []int
}

// groupBy partitions rows by the value of c. Rows where c is missing are
// dropped. Groups come back in the key's natural order: declared level order
// for categories, numeric order for numbers, False before True for bools and
// byte order for text.
func groupBy(c *frame.Column, rows []int) []group {
	pos := map[string]int{}
	var out []group
	var num []float64

	for _, i := range rows {
		if c.IsNull(i) {
			continue
		}
		k := c.Format(i)
		gi, ok := pos[k]
		if !ok {
			gi = len(out)
			pos[k] = gi
			out = append(out, group{key: k})
			if c.Kind() == frame.KindNumber {
				v, _ := c.Float(i)
				num = append(num, v)
			}
		}
		out[gi].rows = append(out[gi].rows, i)
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := out[order[a]].key, out[order[b]].key
		switch c.Kind() {
		case frame.KindCategory:
			la, lb := c.LevelIndex(ka), c.LevelIndex(kb)
			if la != lb {
				return la < lb
			}
		case frame.KindNumber:
			return num[order[a]] < num[order[b]]
		}
		return ka < kb
	})

	sorted := make([]group, len(out))
	for i, o := range order {
		sorted[i] = out[o]
	}
	return sorted
}

// presentRows returns every row position where c has a value.
func presentRows(c *frame.Column) []int {
	out := make([]int, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if !c.IsNull(i) {
			out = append(out, i)
		}
	}
	return out
}

// valuesAt gathers the present values of c at rows.
func valuesAt(c *frame.Column, rows []int) []float64 {
	out := make([]float64, 0, len(rows))
	for _, i := range rows {
		if v, ok := c.Float(i); ok {
			out = append(out, v)
		}
	}
	return out
}

func medianAt(c *frame.Column, rows []int) float64 {
	return stats.Median(valuesAt(c, rows))
}

// sortDesc stably sorts idx by vals descending; NaN sorts last.
func sortDesc(idx []int, vals []float64) {
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := vals[idx[a]], vals[idx[b]]
		if math.IsNaN(va) {
			return false
		}
		if math.IsNaN(vb) {
			return true
		}
		return va > vb
	})
}

// containsAt reports whether row i of c is present and contains sub.
func containsAt(c *frame.Column, i int, sub string) bool {
	s, ok := c.String(i)
	return ok && strings.Contains(s, sub)
}
