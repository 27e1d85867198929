package export

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// GridExporter renders datasets as a plain text table with +---+ borders.
type GridExporter struct{}

// NewGridExporter constructs a grid exporter.
func NewGridExporter() *GridExporter {
	return &GridExporter{}
}

// Render draws the table, preceded by the title when set.
func (e *GridExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("grid requires at least one header")
	}
	widths := make([]int, len(data.Headers))
	for i, h := range data.Headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	rows := make([][]string, 0, len(data.Rows))
	for _, row := range data.Rows {
		cells := data.cells(row)
		for i, cell := range cells {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
		rows = append(rows, cells)
	}

	buf := &bytes.Buffer{}
	if data.Title != "" {
		buf.WriteString(data.Title)
		buf.WriteString("\n")
	}
	border := func(fill string) {
		buf.WriteString("+")
		for _, w := range widths {
			buf.WriteString(strings.Repeat(fill, w+2))
			buf.WriteString("+")
		}
		buf.WriteString("\n")
	}
	line := func(cells []string) {
		buf.WriteString("|")
		for i, cell := range cells {
			buf.WriteString(" ")
			buf.WriteString(cell)
			buf.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+1))
			buf.WriteString("|")
		}
		buf.WriteString("\n")
	}

	border("-")
	line(data.Headers)
	border("=")
	for _, cells := range rows {
		line(cells)
		border("-")
	}
	return buf.Bytes(), nil
}
