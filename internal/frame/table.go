package frame

import (
	"errors"
	"fmt"
)

// ErrEmptyResult is returned by consumers that cannot work with zero rows
// (for example a chart renderer given an empty series). Reports themselves
// never return it: an empty grouping is a valid empty report.
var ErrEmptyResult = errors.New("frame: empty result")

// MissingColumnError reports a required column that is absent from a table.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q", e.Column)
}

// Table is an ordered set of equal-length columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a table from columns. All columns must have the same length and
// distinct names.
func New(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("frame: column %q has %d rows, want %d", c.Name(), c.Len(), t.rows)
		}
		if _, dup := t.index[c.Name()]; dup {
			return nil, fmt.Errorf("frame: duplicate column %q", c.Name())
		}
		t.index[c.Name()] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New for statically known inputs; it panics on error.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) NumRows() int { return t.rows }
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name()
	}
	return out
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column or a *MissingColumnError.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, &MissingColumnError{Column: name}
	}
	return t.cols[i], nil
}

// Columns resolves several columns at once, failing on the first absent one.
func (t *Table) Columns(names ...string) ([]*Column, error) {
	out := make([]*Column, len(names))
	for i, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// With returns a table where col replaces the column of the same name, or is
// appended when no such column exists. The receiver is not modified.
func (t *Table) With(col *Column) (*Table, error) {
	if len(t.cols) > 0 && col.Len() != t.rows {
		return nil, fmt.Errorf("frame: column %q has %d rows, want %d", col.Name(), col.Len(), t.rows)
	}

	out := &Table{
		cols:  make([]*Column, len(t.cols), len(t.cols)+1),
		index: make(map[string]int, len(t.cols)+1),
		rows:  col.Len(),
	}
	copy(out.cols, t.cols)
	for k, v := range t.index {
		out.index[k] = v
	}

	if i, ok := out.index[col.Name()]; ok {
		out.cols[i] = col
	} else {
		out.index[col.Name()] = len(out.cols)
		out.cols = append(out.cols, col)
	}
	return out, nil
}
