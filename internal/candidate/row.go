package candidate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrFieldNotFound is matched by every *FieldNotFoundError.
var ErrFieldNotFound = errors.New("field not found")

// FieldNotFoundError reports a column missing from a row. Available holds
// the sorted column names of the row for diagnostics.
type FieldNotFoundError struct {
	Name      string
	Available []string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("cannot find column %s among: %s", e.Name, strings.Join(e.Available, ", "))
}

// Is reports ErrFieldNotFound.
func (e *FieldNotFoundError) Is(target error) bool {
	return target == ErrFieldNotFound
}

// Row is one candidate: a mutable mapping of column name to value.
// A Row is not safe for concurrent mutation; each worker owns its rows.
type Row struct {
	values map[string]float64
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]float64)}
}

// RowFromMap copies m into a new row.
func RowFromMap(m map[string]float64) *Row {
	r := &Row{values: make(map[string]float64, len(m))}
	for k, v := range m {
		r.values[k] = v
	}
	return r
}

// Get returns the value of column name, or a *FieldNotFoundError.
func (r *Row) Get(name string) (float64, error) {
	v, ok := r.values[name]
	if !ok {
		return 0, &FieldNotFoundError{Name: name, Available: r.Columns()}
	}
	return v, nil
}

// Bool reads a flag column; any non-zero value is true.
func (r *Row) Bool(name string) (bool, error) {
	v, err := r.Get(name)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Set writes column name.
func (r *Row) Set(name string, v float64) {
	r.values[name] = v
}

// Has reports whether column name exists.
func (r *Row) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Delete removes column name if present.
func (r *Row) Delete(name string) {
	delete(r.values, name)
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return len(r.values)
}

// Columns returns the sorted column names.
func (r *Row) Columns() []string {
	names := make([]string, 0, len(r.values))
	for k := range r.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	return RowFromMap(r.values)
}

// Map returns a copy of the row values.
func (r *Row) Map() map[string]float64 {
	m := make(map[string]float64, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}
