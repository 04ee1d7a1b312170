// Package frame provides the in-memory columnar table the survey pipeline
// operates on.
//
// A Table is a set of equal-length, immutable Columns addressed by name.
// Enrichment never mutates a column in place: With returns a new Table that
// shares every untouched column with its parent, so a preprocessed table and
// its raw input can coexist without copying the whole dataset.
//
// Missing values:
//   - Number columns use NaN.
//   - Text, Bool and Category columns carry a parallel validity slice.
package frame

import (
	"math"
	"strconv"
)

// Kind is the storage type of a Column.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindBool
	KindCategory
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindCategory:
		return "category"
	default:
		return "text"
	}
}

// MarshalText encodes the kind by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Column is a single named, typed vector.
type Column struct {
	name   string
	kind   Kind
	nums   []float64
	strs   []string
	bools  []bool
	valid  []bool
	levels []string
}

// NewNumberColumn builds a number column. NaN marks a missing value.
func NewNumberColumn(name string, vals []float64) *Column {
	return &Column{name: name, kind: KindNumber, nums: vals}
}

// NewTextColumn builds a text column. A nil valid slice means every value is present.
func NewTextColumn(name string, vals []string, valid []bool) *Column {
	return &Column{name: name, kind: KindText, strs: vals, valid: fillValid(valid, len(vals))}
}

// NewBoolColumn builds a bool column. A nil valid slice means every value is present.
func NewBoolColumn(name string, vals []bool, valid []bool) *Column {
	return &Column{name: name, kind: KindBool, bools: vals, valid: fillValid(valid, len(vals))}
}

// NewCategoryColumn builds an ordered categorical column.
//
// levels fixes the category order; labels not present in levels are still
// stored but sort after every declared level.
func NewCategoryColumn(name string, labels []string, valid []bool, levels []string) *Column {
	return &Column{
		name:   name,
		kind:   KindCategory,
		strs:   labels,
		valid:  fillValid(valid, len(labels)),
		levels: append([]string(nil), levels...),
	}
}

func fillValid(valid []bool, n int) []bool {
	if valid != nil {
		return valid
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }

// Levels returns the declared category order (nil for non-category columns).
func (c *Column) Levels() []string { return c.levels }

// Len returns the number of rows.
func (c *Column) Len() int {
	switch c.kind {
	case KindNumber:
		return len(c.nums)
	case KindBool:
		return len(c.bools)
	default:
		return len(c.strs)
	}
}

// IsNull reports whether row i holds a missing value.
func (c *Column) IsNull(i int) bool {
	if c.kind == KindNumber {
		return math.IsNaN(c.nums[i])
	}
	return !c.valid[i]
}

// Float returns row i as a number. Text values are parsed; bools map to 0/1.
func (c *Column) Float(i int) (float64, bool) {
	switch c.kind {
	case KindNumber:
		v := c.nums[i]
		return v, !math.IsNaN(v)
	case KindBool:
		if !c.valid[i] {
			return math.NaN(), false
		}
		if c.bools[i] {
			return 1, true
		}
		return 0, true
	default:
		if !c.valid[i] {
			return math.NaN(), false
		}
		v, err := strconv.ParseFloat(c.strs[i], 64)
		if err != nil {
			return math.NaN(), false
		}
		return v, true
	}
}

// String returns row i as text and whether it is present.
func (c *Column) String(i int) (string, bool) {
	if c.IsNull(i) {
		return "", false
	}
	return c.Format(i), true
}

// Bool returns row i as a bool and whether it is present.
func (c *Column) Bool(i int) (bool, bool) {
	switch c.kind {
	case KindBool:
		return c.bools[i], c.valid[i]
	case KindNumber:
		v := c.nums[i]
		if math.IsNaN(v) {
			return false, false
		}
		return v != 0, true
	default:
		if !c.valid[i] {
			return false, false
		}
		b, err := strconv.ParseBool(c.strs[i])
		return b, err == nil
	}
}

// Format renders row i the way the report writer expects: missing -> "",
// bools as True/False, numbers in their shortest round-trip form.
func (c *Column) Format(i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.kind {
	case KindNumber:
		return FormatFloat(c.nums[i])
	case KindBool:
		return FormatBool(c.bools[i])
	default:
		return c.strs[i]
	}
}

// Numbers exposes the backing slice of a number column. Callers must not modify it.
func (c *Column) Numbers() []float64 {
	if c.kind != KindNumber {
		out := make([]float64, c.Len())
		for i := range out {
			out[i], _ = c.Float(i)
		}
		return out
	}
	return c.nums
}

// LevelIndex returns the position of label within the declared levels, or
// len(levels) when it is not declared.
func (c *Column) LevelIndex(label string) int {
	for i, l := range c.levels {
		if l == label {
			return i
		}
	}
	return len(c.levels)
}

// FormatFloat renders v in shortest form; NaN becomes the empty string.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatBool renders b as True/False.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
