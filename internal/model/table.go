package model

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned when a column does not have one value per row.
var ErrLengthMismatch = errors.New("column length does not match row count")

// Table is an ordered sequence of rows with named columns.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// NewTable creates an empty table with the given header.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.Columns)
}

// AppendRow adds a row, padding short rows with empty cells and dropping
// cells past the header.
func (t *Table) AppendRow(values ...Value) {
	row := make([]Value, t.Width())
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// ColumnIndex returns the position of the first column with the exact name,
// or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether a column with the exact name exists.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Cell returns the value at row r, column c.
func (t *Table) Cell(r, c int) Value {
	return t.Rows[r][c]
}

// Column returns a copy of the values in column c.
func (t *Table) Column(c int) []Value {
	out := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[c]
	}
	return out
}

// SetColumn overwrites the named column in place, or appends it when absent.
func (t *Table) SetColumn(name string, values []Value) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("%w: column %q has %d values for %d rows", ErrLengthMismatch, name, len(values), len(t.Rows))
	}

	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Columns = append(t.Columns, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], values[i])
		}
		return nil
	}

	for i := range t.Rows {
		t.Rows[i][idx] = values[i]
	}
	return nil
}

// Select returns a copy holding only the given rows, in the given order.
func (t *Table) Select(rows []int) *Table {
	out := NewTable(t.Columns...)
	out.Rows = make([][]Value, 0, len(rows))
	for _, r := range rows {
		out.Rows = append(out.Rows, cloneRow(t.Rows[r]))
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := NewTable(t.Columns...)
	out.Rows = make([][]Value, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = cloneRow(row)
	}
	return out
}

func cloneRow(row []Value) []Value {
	out := make([]Value, len(row))
	copy(out, row)
	return out
}
