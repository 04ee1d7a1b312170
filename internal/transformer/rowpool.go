// Package transformer holds the pooled positional Row that carries parsed CSV
// records from the parser goroutine to the table builder in internal/loader.
package transformer

import "sync"

// Row is a pooled container holding one positional CSV record.
//
// Ownership contract:
//   - Exactly one goroutine "owns" a Row at a time.
//   - A Row may be passed downstream via channels (ownership transfer).
//   - The final consumer must call Free() once it has copied what it needs
//     out of r.V.
//
// Values in V are either nil (missing / NA token) or string.
//
// IMPORTANT:
//   - Use Free() only on the normal path.
//   - Use Drop() on cancellation paths (no re-pooling; allow GC to reclaim),
//     so a canceled producer cannot reuse a Row a consumer still reads.
type Row struct {
	V    []any
	Line int // 1-based physical record number, header included
}

var rowPool sync.Pool

// GetRow returns a pooled Row with length colCount. All elements are zeroed.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		for i := range r.V {
			r.V[i] = nil
		}
		r.Line = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns the Row to the pool.
func (r *Row) Free() {
	rowPool.Put(r)
}

// Drop discards the Row WITHOUT returning it to the pool.
func (r *Row) Drop() {
	r.V = nil
	r.Line = 0
}

// Str returns field i as a string and whether it is present.
func (r *Row) Str(i int) (string, bool) {
	if i < 0 || i >= len(r.V) {
		return "", false
	}
	s, ok := r.V[i].(string)
	return s, ok
}
