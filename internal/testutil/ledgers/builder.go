// Package ledgers provides a fluent builder for ledger tables used in tests,
// plus predefined fixtures and helpers to encode them as uploads.
//
// Example usage:
//
//	upload := ledgers.NewBuilder(t).
//		WithFixture(ledgers.FixtureMixed).
//		WithRow("Late refund", "INV-9", 3.5).
//		XLSX()
package ledgers

import (
	"testing"

	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/Veraticus/ledger-sieve/internal/spreadsheet"
)

// DefaultColumns is the header of a standard ledger: description, reference
// and credit at positions 0, 1 and 2.
var DefaultColumns = []string{model.ColumnDescription, model.ColumnRefNo, "Amount"}

// DefaultSelection points at the standard ledger's columns.
var DefaultSelection = model.ColumnSelection{Description: 0, RefNo: 1, Credit: 2}

// Builder constructs a ledger table row by row.
type Builder interface {
	// WithColumns replaces the header. Rows added earlier are kept as-is.
	WithColumns(names ...string) Builder

	// WithRow appends a row. Strings become text cells, numbers become
	// number cells, and nil becomes an empty cell.
	WithRow(cells ...any) Builder

	// WithFixture appends every row of a fixture.
	WithFixture(fixture Fixture) Builder

	// Build returns the table.
	Build() *model.Table

	// XLSX encodes the table as an Excel workbook.
	XLSX() []byte

	// CSV encodes the table as CSV.
	CSV() []byte
}

type ledgerBuilder struct {
	t     *testing.T
	table *model.Table
}

// NewBuilder creates a builder with DefaultColumns.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &ledgerBuilder{
		t:     t,
		table: model.NewTable(DefaultColumns...),
	}
}

func (b *ledgerBuilder) WithColumns(names ...string) Builder {
	b.table.Columns = append([]string(nil), names...)
	return b
}

func (b *ledgerBuilder) WithRow(cells ...any) Builder {
	b.t.Helper()
	values := make([]model.Value, len(cells))
	for i, c := range cells {
		values[i] = toValue(b.t, c)
	}
	b.table.AppendRow(values...)
	return b
}

func (b *ledgerBuilder) WithFixture(fixture Fixture) Builder {
	b.t.Helper()
	for _, row := range fixture.Rows() {
		b.WithRow(row...)
	}
	return b
}

func (b *ledgerBuilder) Build() *model.Table {
	return b.table.Clone()
}

func (b *ledgerBuilder) XLSX() []byte {
	b.t.Helper()
	data, err := spreadsheet.NewXLSXCodec().Encode(b.table)
	if err != nil {
		b.t.Fatalf("failed to encode xlsx: %v", err)
	}
	return data
}

func (b *ledgerBuilder) CSV() []byte {
	b.t.Helper()
	data, err := spreadsheet.NewCSVCodec().Encode(b.table)
	if err != nil {
		b.t.Fatalf("failed to encode csv: %v", err)
	}
	return data
}

func toValue(t *testing.T, cell any) model.Value {
	t.Helper()
	switch v := cell.(type) {
	case nil:
		return model.Empty()
	case model.Value:
		return v
	case string:
		return model.Text(v)
	case int:
		return model.Number(float64(v))
	case float64:
		return model.Number(v)
	default:
		t.Fatalf("unsupported cell type %T", cell)
		return model.Empty()
	}
}
