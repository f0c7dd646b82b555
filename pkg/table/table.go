package table

import (
	"fmt"
	"strings"
)

// Package table holds the tabular structure every API operation emits into.

// Table is an in-memory table of string cells. Rows always have len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New returns an empty table with the given column names.
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of the named column or -1.
func (t *Table) Index(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds a row. The number of cells must match the number of columns.
func (t *Table) Append(cells ...string) error {
	if len(cells) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.Columns))
	}
	row := make([]string, len(cells))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
	return nil
}

// AppendMap adds a row built from a column->value map; missing columns are empty.
func (t *Table) AppendMap(values map[string]string) {
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		row[i] = values[c]
	}
	t.Rows = append(t.Rows, row)
}

// Value returns the cell at row i for the named column.
func (t *Table) Value(i int, column string) (string, bool) {
	if t == nil || i < 0 || i >= len(t.Rows) {
		return "", false
	}
	idx := t.Index(column)
	if idx < 0 {
		return "", false
	}
	return t.Rows[i][idx], true
}

// Column returns a copy of every value in the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Record returns row i as a column->value map.
func (t *Table) Record(i int) map[string]string {
	if t == nil || i < 0 || i >= len(t.Rows) {
		return nil
	}
	out := make(map[string]string, len(t.Columns))
	for j, c := range t.Columns {
		out[c] = t.Rows[i][j]
	}
	return out
}

// String renders a short summary, handy in logs.
func (t *Table) String() string {
	if t == nil {
		return "table<nil>"
	}
	return fmt.Sprintf("table[%d rows x %d cols: %s]", len(t.Rows), len(t.Columns), strings.Join(t.Columns, ","))
}
