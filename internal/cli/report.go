package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// FormatMoney renders a credit total with two decimal places.
func FormatMoney(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(2)
}

// RenderResult renders the summary box followed by up to maxRows filtered
// rows. maxRows <= 0 shows every row.
func RenderResult(fileName string, result *model.PipelineResult, maxRows int) string {
	summary := fmt.Sprintf("  • Source file: %s\n", fileName) +
		fmt.Sprintf("  • Run ID: %s\n", result.RunID) +
		fmt.Sprintf("  • Rows classified: %d\n", result.Enriched.Len()) +
		fmt.Sprintf("  • Rows matched: %d\n", result.Matched) +
		fmt.Sprintf("  • Total credit: %s %s", FormatMoney(result.Total), ChartIcon)

	var b strings.Builder
	b.WriteString(RenderBox("Classification Complete", summary))
	b.WriteString("\n")

	if result.Filtered.Len() == 0 {
		b.WriteString(FormatInfo("No rows matched."))
		b.WriteString("\n")
		return b.String()
	}

	shown := result.Filtered
	if maxRows > 0 && shown.Len() > maxRows {
		rows := make([]int, maxRows)
		for i := range rows {
			rows[i] = i
		}
		shown = shown.Select(rows)
	}

	b.WriteString(RenderTable(shown))
	if shown.Len() < result.Filtered.Len() {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("... %d more rows", result.Filtered.Len()-shown.Len())))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTable lays a table out in aligned columns.
func RenderTable(table *model.Table) string {
	cells := make([][]string, 0, table.Len())
	for _, row := range table.Rows {
		line := make([]string, len(row))
		for c, v := range row {
			line[c] = v.String()
		}
		cells = append(cells, line)
	}
	return renderGrid(table.Columns, cells)
}

// RenderRuns lays out the run history, newest first.
func RenderRuns(runs []*model.Run) string {
	if len(runs) == 0 {
		return FormatInfo("No runs recorded yet.") + "\n"
	}

	header := []string{"Started", "File", "Rows", "Matched", "Total Credit", "Duration", "Run ID"}
	cells := make([][]string, 0, len(runs))
	for _, run := range runs {
		cells = append(cells, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.FileName,
			fmt.Sprintf("%d", run.Rows),
			fmt.Sprintf("%d", run.Matched),
			FormatMoney(run.Total),
			run.Duration.Round(time.Millisecond).String(),
			run.ID,
		})
	}
	return renderGrid(header, cells)
}

func renderGrid(header []string, cells [][]string) string {
	widths := make([]int, len(header))
	for c, h := range header {
		widths[c] = lipgloss.Width(h)
	}
	for _, row := range cells {
		for c, cell := range row {
			if c < len(widths) && lipgloss.Width(cell) > widths[c] {
				widths[c] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	headerCells := make([]string, len(header))
	for c, h := range header {
		headerCells[c] = TableCellStyle.Render(pad(h, widths[c]))
	}
	b.WriteString(TableHeaderStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, headerCells...)))
	b.WriteString("\n")

	for _, row := range cells {
		line := make([]string, len(widths))
		for c := range widths {
			var cell string
			if c < len(row) {
				cell = row[c]
			}
			line[c] = TableCellStyle.Render(pad(cell, widths[c]))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, line...))
		b.WriteString("\n")
	}
	return b.String()
}

func pad(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}
