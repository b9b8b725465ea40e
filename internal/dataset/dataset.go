// Package dataset provides the in-memory tabular data model the validation
// and remediation pipeline operates on: named columns, an integer row index,
// and null-aware cells.
package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Dataset is a table with named columns and null-aware cells. A nil cell is
// a missing value. Cell values are string, float64, int, or bool.
type Dataset struct {
	columns []string
	colIdx  map[string]int
	rows    [][]any
}

// New creates an empty Dataset with the given column names.
func New(columns []string) *Dataset {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return &Dataset{
		columns: append([]string(nil), columns...),
		colIdx:  idx,
	}
}

// Columns returns the column names in order.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// HasColumn reports whether the dataset contains the named column.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.colIdx[name]
	return ok
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int { return len(d.rows) }

// AppendRow adds a row. The row length must match the column count.
func (d *Dataset) AppendRow(cells []any) error {
	if len(cells) != len(d.columns) {
		return fmt.Errorf("row has %d cells, dataset has %d columns", len(cells), len(d.columns))
	}
	d.rows = append(d.rows, append([]any(nil), cells...))
	return nil
}

// Cell returns the value at (row, column). The second return is false when
// the column does not exist or the row index is out of range.
func (d *Dataset) Cell(row int, column string) (any, bool) {
	ci, ok := d.colIdx[column]
	if !ok || row < 0 || row >= len(d.rows) {
		return nil, false
	}
	return d.rows[row][ci], true
}

// SetCell replaces the value at (row, column).
func (d *Dataset) SetCell(row int, column string, v any) error {
	ci, ok := d.colIdx[column]
	if !ok {
		return fmt.Errorf("unknown column %q", column)
	}
	if row < 0 || row >= len(d.rows) {
		return fmt.Errorf("row %d out of range (%d rows)", row, len(d.rows))
	}
	d.rows[row][ci] = v
	return nil
}

// Clone returns a deep copy. Mutating the copy never affects the original;
// the remediation executor relies on this.
func (d *Dataset) Clone() *Dataset {
	out := New(d.columns)
	out.rows = make([][]any, len(d.rows))
	for i, r := range d.rows {
		out.rows[i] = append([]any(nil), r...)
	}
	return out
}

// DropRows removes the rows at the given indices. Indices outside the table
// are ignored.
func (d *Dataset) DropRows(indices []int) {
	if len(indices) == 0 {
		return
	}
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	kept := d.rows[:0]
	for i, r := range d.rows {
		if !drop[i] {
			kept = append(kept, r)
		}
	}
	d.rows = kept
}

// Row returns the named cells of one row as a map, for prompt serialization.
func (d *Dataset) Row(row int) map[string]any {
	if row < 0 || row >= len(d.rows) {
		return nil
	}
	out := make(map[string]any, len(d.columns))
	for i, c := range d.columns {
		out[c] = d.rows[row][i]
	}
	return out
}

// Rows returns the rows at the given indices as maps, skipping indices that
// are out of range.
func (d *Dataset) Rows(indices []int) []map[string]any {
	out := make([]map[string]any, 0, len(indices))
	for _, i := range indices {
		if r := d.Row(i); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Equal reports whether two datasets have identical columns and cells.
func (d *Dataset) Equal(o *Dataset) bool {
	if o == nil || len(d.columns) != len(o.columns) || len(d.rows) != len(o.rows) {
		return false
	}
	for i := range d.columns {
		if d.columns[i] != o.columns[i] {
			return false
		}
	}
	for i := range d.rows {
		for j := range d.rows[i] {
			if d.rows[i][j] != o.rows[i][j] {
				return false
			}
		}
	}
	return true
}

// IsNull reports whether a cell value is missing. Empty strings are treated
// as missing: CSV sources have no other way to express null.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// AsFloat coerces a cell to float64. String cells are parsed; the second
// return is false for nulls and non-numeric values.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsString renders a cell for set membership and equality comparisons.
// Floats that carry integer values render without a decimal point so that
// CSV-sourced "42" and numeric 42.0 compare equal.
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// NumericColumns returns the names of columns whose non-null cells all parse
// as numbers, with at least one non-null cell. Used by statistical rule
// discovery.
func (d *Dataset) NumericColumns() []string {
	var out []string
	for _, c := range d.columns {
		ci := d.colIdx[c]
		seen := false
		numeric := true
		for _, r := range d.rows {
			if IsNull(r[ci]) {
				continue
			}
			seen = true
			if _, ok := AsFloat(r[ci]); !ok {
				numeric = false
				break
			}
		}
		if seen && numeric {
			out = append(out, c)
		}
	}
	return out
}

// ColumnFloats returns the non-null numeric values of a column in ascending
// order, plus the count of null cells.
func (d *Dataset) ColumnFloats(column string) (values []float64, nulls int) {
	ci, ok := d.colIdx[column]
	if !ok {
		return nil, 0
	}
	for _, r := range d.rows {
		if IsNull(r[ci]) {
			nulls++
			continue
		}
		if f, okF := AsFloat(r[ci]); okF {
			values = append(values, f)
		}
	}
	sort.Float64s(values)
	return values, nulls
}

// ValueCounts returns the distinct non-null values of a column with their
// occurrence counts, keyed by string rendering.
func (d *Dataset) ValueCounts(column string) map[string]int {
	ci, ok := d.colIdx[column]
	if !ok {
		return nil
	}
	counts := make(map[string]int)
	for _, r := range d.rows {
		if IsNull(r[ci]) {
			continue
		}
		counts[AsString(r[ci])]++
	}
	return counts
}
