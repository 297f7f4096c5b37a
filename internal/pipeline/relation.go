package pipeline

import (
	"sort"
	"time"
)

// Row is one record of a relation. A nil value is null.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the column as a string and whether it was a non-null string.
func (r Row) String(col string) (string, bool) {
	s, ok := r[col].(string)
	return s, ok
}

// Int returns the column as an int64 and whether it was a non-null int64.
func (r Row) Int(col string) (int64, bool) {
	v, ok := r[col].(int64)
	return v, ok
}

// Time returns the column as a time.Time and whether it was set.
func (r Row) Time(col string) (time.Time, bool) {
	t, ok := r[col].(time.Time)
	return t, ok
}

// Relation is an ordered collection of rows
type Relation []Row

// Columns returns the sorted union of column names across rows.
func (rel Relation) Columns() []string {
	seen := make(map[string]struct{})
	for _, row := range rel {
		for col := range row {
			seen[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for col := range seen {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// Drop returns a copy of the relation without the given columns.
func (rel Relation) Drop(cols ...string) Relation {
	if len(cols) == 0 {
		return rel
	}
	out := make(Relation, len(rel))
	for i, row := range rel {
		r := row.Clone()
		for _, col := range cols {
			delete(r, col)
		}
		out[i] = r
	}
	return out
}

// Outputs holds the result of every executed step by name
type Outputs map[string]Relation
