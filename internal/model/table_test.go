package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Format(t *testing.T) {
	tests := []struct {
		name  string
		want  string
		value Value
	}{
		{name: "text", value: Text("ACME PAYMENT"), want: "ACME PAYMENT"},
		{name: "empty text", value: Text(""), want: ""},
		{name: "integral number", value: Number(12345), want: "12345"},
		{name: "integral number in a column with blanks", value: Number(1234), want: "1234"},
		{name: "fractional number", value: Number(12.5), want: "12.5"},
		{name: "negative number", value: Number(-3), want: "-3"},
		{name: "empty cell", value: Empty(), want: "nan"},
		{name: "nan becomes empty", value: Number(math.NaN()), want: "nan"},
		{name: "huge number", value: Number(1e20), want: "1e+20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Format("nan"))
		})
	}
}

func TestValue_Float(t *testing.T) {
	tests := []struct {
		name   string
		value  Value
		want   float64
		wantOK bool
	}{
		{name: "number", value: Number(42.5), want: 42.5, wantOK: true},
		{name: "numeric text", value: Text(" 100.25 "), want: 100.25, wantOK: true},
		{name: "negative text", value: Text("-7"), want: -7, wantOK: true},
		{name: "word", value: Text("n/a"), wantOK: false},
		{name: "blank text", value: Text("  "), wantOK: false},
		{name: "nan text", value: Text("NaN"), wantOK: false},
		{name: "empty", value: Empty(), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.value.Float()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestParseCell(t *testing.T) {
	assert.Equal(t, Empty(), ParseCell("   "))
	assert.Equal(t, Number(12), ParseCell("12"))
	assert.Equal(t, Number(-1.5), ParseCell(" -1.5 "))
	assert.Equal(t, Text("INV-001"), ParseCell("INV-001"))
	assert.Equal(t, Text("Inf"), ParseCell("Inf"))
}

func TestTable_SetColumn(t *testing.T) {
	table := NewTable("Description", "Credit")
	table.AppendRow(Text("a"), Number(1))
	table.AppendRow(Text("b"))

	assert.Equal(t, 2, table.Len())
	assert.True(t, table.Cell(1, 1).IsEmpty(), "short rows are padded")

	require.NoError(t, table.SetColumn("Predictions", []Value{Number(1), Number(0)}))
	assert.Equal(t, []string{"Description", "Credit", "Predictions"}, table.Columns)
	assert.Equal(t, Number(0), table.Cell(1, 2))

	require.NoError(t, table.SetColumn("Credit", []Value{Number(9), Empty()}))
	assert.Equal(t, 3, table.Width(), "existing column is overwritten in place")
	assert.Equal(t, Number(9), table.Cell(0, 1))

	err := table.SetColumn("Broken", []Value{Number(1)})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestTable_SelectAndClone(t *testing.T) {
	table := NewTable("A")
	for i := 0; i < 4; i++ {
		table.AppendRow(Number(float64(i)))
	}

	subset := table.Select([]int{3, 1})
	require.Equal(t, 2, subset.Len())
	assert.Equal(t, Number(3), subset.Cell(0, 0))
	assert.Equal(t, Number(1), subset.Cell(1, 0))

	subset.Rows[0][0] = Text("changed")
	assert.Equal(t, Number(3), table.Cell(3, 0), "select copies rows")

	clone := table.Clone()
	clone.Columns[0] = "B"
	assert.Equal(t, "A", table.Columns[0])
	assert.Equal(t, table.Rows, clone.Rows)
}
