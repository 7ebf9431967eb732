package pipeline

import (
	"fmt"
	"strings"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/Veraticus/ledger-sieve/internal/model"
)

const missingColumnsMessage = `Uploaded file is missing "Description" or "Ref_No" columns.`

// Validate checks that the table names the required columns and that every
// selected position exists.
//
// The named columns only gate the upload. Feature text and credit are read
// from the positions in cols, which need not point at those columns.
func Validate(table *model.Table, cols model.ColumnSelection) error {
	var missing []string
	for _, name := range []string{model.ColumnDescription, model.ColumnRefNo} {
		if !table.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return common.NewValidationError(missingColumnsMessage,
			fmt.Errorf("%w: %s", common.ErrMissingColumns, strings.Join(missing, ", ")))
	}

	width := table.Width()
	for _, sel := range []struct {
		name  string
		index int
	}{
		{"description", cols.Description},
		{"ref_no", cols.RefNo},
		{"credit", cols.Credit},
	} {
		if sel.index < 0 || sel.index >= width {
			return common.NewValidationError(
				fmt.Sprintf("Column index %d for %s is out of range; the file has %d columns.", sel.index, sel.name, width),
				fmt.Errorf("%w: %s=%d width=%d", common.ErrColumnOutOfRange, sel.name, sel.index, width))
		}
	}
	return nil
}

// FeatureText builds the classifier input for every row: the description
// cell and the reference cell joined by a single space. Empty cells render
// as missing.
func FeatureText(table *model.Table, cols model.ColumnSelection, missing string) []string {
	texts := make([]string, table.Len())
	for r := range texts {
		desc := table.Cell(r, cols.Description).Format(missing)
		ref := table.Cell(r, cols.RefNo).Format(missing)
		texts[r] = desc + " " + ref
	}
	return texts
}

// CoerceCredit reads the credit column as numbers. Cells that do not parse
// become empty.
func CoerceCredit(table *model.Table, column int) []model.Value {
	values := make([]model.Value, table.Len())
	for r := range values {
		if f, ok := table.Cell(r, column).Float(); ok {
			values[r] = model.Number(f)
		} else {
			values[r] = model.Empty()
		}
	}
	return values
}

// Matching returns the positions of labels equal to want, in order.
func Matching(labels []int, want int) []int {
	var rows []int
	for i, label := range labels {
		if label == want {
			rows = append(rows, i)
		}
	}
	return rows
}

// SumCredit adds up the Credit column, skipping empty cells. A table with no
// Credit column or no present credits sums to zero.
func SumCredit(table *model.Table) float64 {
	c := table.ColumnIndex(model.ColumnCredit)
	if c < 0 {
		return 0
	}
	var total float64
	for r := 0; r < table.Len(); r++ {
		if f, ok := table.Cell(r, c).Float(); ok {
			total += f
		}
	}
	return total
}

func textValues(texts []string) []model.Value {
	values := make([]model.Value, len(texts))
	for i, t := range texts {
		values[i] = model.Text(t)
	}
	return values
}

func labelValues(labels []int) []model.Value {
	values := make([]model.Value, len(labels))
	for i, l := range labels {
		values[i] = model.Number(float64(l))
	}
	return values
}
