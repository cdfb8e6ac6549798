package candidate

import (
	"math"
	"strings"
)

// Table is an ordered set of rows sharing a column list.
type Table struct {
	Columns []string
	Rows    []*Row
}

// NewTable returns an empty table with the given columns.
func NewTable(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds rows to the table.
func (t *Table) Append(rows ...*Row) {
	t.Rows = append(t.Rows, rows...)
}

// Slice returns the rows in [start, end) as a table sharing row pointers.
// Bounds are clamped to the table.
func (t *Table) Slice(start, end int) *Table {
	if start < 0 {
		start = 0
	}
	if end > len(t.Rows) {
		end = len(t.Rows)
	}
	if start > end {
		start = end
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[start:end]}
}

// HasColumn reports whether name is in the column list.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// HasSuffixColumn reports whether any column ends in suffix.
func (t *Table) HasSuffixColumn(suffix string) bool {
	for _, c := range t.Columns {
		if strings.HasSuffix(c, suffix) {
			return true
		}
	}
	return false
}

// Column returns the values of one column. Missing cells are NaN.
func (t *Table) Column(name string) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		v, ok := r.values[name]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// HasNaN reports whether any value of the row is NaN.
func (r *Row) HasNaN() bool {
	for _, v := range r.values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
