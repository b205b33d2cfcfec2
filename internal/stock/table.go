// ABOUTME: Box-drawing table renderer for chat-friendly monospace output
// ABOUTME: Column widths are measured in runes so wide glyphs stay aligned

package stock

import (
	"strings"
	"unicode/utf8"
)

type table struct {
	header []string
	rows   [][]string
}

func newTable(header ...string) *table {
	return &table{header: header}
}

func (t *table) addRow(cells ...string) {
	// Short rows are padded, long rows truncated to the header width.
	row := make([]string, len(t.header))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	t.rows = append(t.rows, row)
}

func (t *table) render() string {
	widths := make([]int, len(t.header))
	for i, cell := range t.header {
		widths[i] = utf8.RuneCountInString(cell)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	writeBorder(&b, widths, "┌", "┬", "┐")
	writeRow(&b, t.header, widths)
	writeBorder(&b, widths, "├", "┼", "┤")
	for _, row := range t.rows {
		writeRow(&b, row, widths)
	}
	writeBorder(&b, widths, "└", "┴", "┘")
	return strings.TrimRight(b.String(), "\n")
}

func writeBorder(b *strings.Builder, widths []int, left, mid, right string) {
	b.WriteString(left)
	for i, w := range widths {
		b.WriteString(strings.Repeat("─", w+2))
		if i < len(widths)-1 {
			b.WriteString(mid)
		}
	}
	b.WriteString(right)
	b.WriteString("\n")
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	b.WriteString("│")
	for i, cell := range cells {
		pad := widths[i] - utf8.RuneCountInString(cell)
		b.WriteString(" ")
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", pad))
		b.WriteString(" │")
	}
	b.WriteString("\n")
}
