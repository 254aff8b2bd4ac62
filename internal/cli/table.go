package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderTable lays out rows under a header with columns padded to their
// widest cell. Widths account for wide (CJK) runes.
func RenderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var b strings.Builder
	b.WriteString(renderRow(header, widths, TableHeaderStyle))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(renderRow(row, widths, lipgloss.NewStyle()))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRow(cells []string, widths []int, style lipgloss.Style) string {
	out := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		out[i] = TableCellStyle.Inherit(style).Width(widths[i] + 2).Render(cell)
	}
	return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, out...), " ")
}

// FormatValue renders an optional figure, "-" when absent.
func FormatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// FormatPercent renders an optional percentage change with its sign.
func FormatPercent(v *float64) string {
	if v == nil {
		return "-"
	}
	s := fmt.Sprintf("%+.2f%%", *v)
	switch {
	case *v > 0:
		return WarningStyle.Render(s)
	case *v < 0:
		return SuccessStyle.Render(s)
	}
	return s
}
