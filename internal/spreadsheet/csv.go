package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/Veraticus/ledger-sieve/internal/model"
)

// CSVCodec reads and writes comma-separated files with a header row.
type CSVCodec struct {
	Comma rune
}

// NewCSVCodec creates a comma-delimited codec.
func NewCSVCodec() *CSVCodec {
	return &CSVCodec{Comma: ','}
}

// Decode parses the file. Types are inferred per column: a column whose
// non-blank cells all parse as numbers becomes numeric, any other column
// keeps its cells as text.
func (c *CSVCodec) Decode(data []byte) (*model.Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = c.Comma
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed csv: %v", common.ErrLoad, err)
	}
	if len(records) == 0 {
		return model.NewTable(), nil
	}

	width := 0
	for _, rec := range records {
		if len(rec) > width {
			width = len(rec)
		}
	}

	header := make([]string, width)
	copy(header, records[0])
	table := model.NewTable(headerNames(header)...)

	body := records[1:]
	numeric := numericColumns(body, width)
	for _, rec := range body {
		values := make([]model.Value, width)
		for col, raw := range rec {
			switch {
			case strings.TrimSpace(raw) == "":
				values[col] = model.Empty()
			case numeric[col]:
				values[col] = model.ParseCell(raw)
			default:
				values[col] = model.Text(raw)
			}
		}
		table.AppendRow(values...)
	}

	return table, nil
}

func numericColumns(records [][]string, width int) []bool {
	numeric := make([]bool, width)
	for col := range numeric {
		numeric[col] = true
	}
	for _, rec := range records {
		for col, raw := range rec {
			raw = strings.TrimSpace(raw)
			if raw == "" || !numeric[col] {
				continue
			}
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
				numeric[col] = false
			}
		}
	}
	return numeric
}

// Encode writes the header and every row. Empty cells are written blank.
func (c *CSVCodec) Encode(table *model.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.write(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *CSVCodec) write(w io.Writer, table *model.Table) error {
	writer := csv.NewWriter(w)
	writer.Comma = c.Comma

	if err := writer.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, table.Width())
	for _, row := range table.Rows {
		for i, v := range row {
			record[i] = v.String()
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
