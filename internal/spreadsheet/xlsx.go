package spreadsheet

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/xuri/excelize/v2"
)

// XLSXCodec reads the first worksheet of an Excel workbook and writes tables
// to a single-sheet workbook.
type XLSXCodec struct {
	SheetName  string
	BoldHeader bool
}

// NewXLSXCodec creates an Excel codec with default settings.
func NewXLSXCodec() *XLSXCodec {
	return &XLSXCodec{
		SheetName:  "Sheet1",
		BoldHeader: true,
	}
}

// Decode reads the first worksheet. The first row is the header.
func (c *XLSXCodec) Decode(data []byte) (*model.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid workbook: %v", common.ErrLoad, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", common.ErrLoad)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", common.ErrLoad, sheet, err)
	}
	if len(rows) == 0 {
		return model.NewTable(), nil
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	header := make([]string, width)
	copy(header, rows[0])
	table := model.NewTable(headerNames(header)...)

	for r, row := range rows[1:] {
		values := make([]model.Value, width)
		for col, raw := range row {
			cellName, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", common.ErrLoad, err)
			}
			cellType, err := f.GetCellType(sheet, cellName)
			if err != nil {
				return nil, fmt.Errorf("%w: cell %s: %v", common.ErrLoad, cellName, err)
			}
			values[col] = cellValue(raw, cellType)
		}
		table.AppendRow(values...)
	}

	return table, nil
}

// cellValue maps a raw stored cell to a table value. Strings stay strings even
// when they look numeric so reference numbers keep their leading zeros.
func cellValue(raw string, cellType excelize.CellType) model.Value {
	if raw == "" {
		return model.Empty()
	}

	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeError:
		return model.Text(raw)
	case excelize.CellTypeBool:
		if raw == "1" || raw == "TRUE" {
			return model.Text("True")
		}
		return model.Text("False")
	default:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return model.Number(f)
		}
		return model.Text(raw)
	}
}

// Encode writes the table as a workbook with a header row.
func (c *XLSXCodec) Encode(table *model.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := c.SheetName
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != f.GetSheetName(0) {
		if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
			return nil, fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	header := make([]any, len(table.Columns))
	for i, name := range table.Columns {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	if c.BoldHeader && len(header) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, fmt.Errorf("failed to create header style: %w", err)
		}
		if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}

	for r, row := range table.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			switch v.Kind {
			case model.KindNumber:
				cells[i] = v.Number
			case model.KindText:
				cells[i] = v.Text
			default:
				cells[i] = nil
			}
		}

		cellName, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", r+2, err)
		}
		if err := f.SetSheetRow(sheet, cellName, &cells); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
