// Package sexml streams Stack Exchange dump XML files row by row.
// This file defines a pooled Row type used across parser → normalizer →
// loader to reduce heap churn on multi-million-row dumps.
package sexml

import "sync"

// Row is a pooled raw record: the attribute set of one <row/> element.
//
// Ownership contract:
//   - Exactly one goroutine owns a Row at a time.
//   - A Row may be passed downstream via channels (ownership transfer).
//   - The final consumer must call Free() AFTER it is fully done with the
//     Row (and anything referencing Attrs).
//   - On cancellation paths use Drop() instead; a canceled drain must not
//     race with upstream reuse of the same pooled Row.
type Row struct {
	Attrs map[string]string
	N     int // 1-based record number within the file, if known
}

var rowPool sync.Pool

// GetRow returns a pooled Row with an empty attribute map.
func GetRow() *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		clear(r.Attrs)
		r.N = 0
		return r
	}
	return &Row{Attrs: make(map[string]string, 16)}
}

// Free returns the Row to the pool.
// Call this ONLY when no other goroutine can observe r or r.Attrs.
func (r *Row) Free() {
	rowPool.Put(r)
}

// Drop discards the Row WITHOUT returning it to the pool.
func (r *Row) Drop() {
	r.Attrs = nil
	r.N = 0
}
