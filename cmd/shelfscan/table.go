package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Numeric columns are right aligned.
type column struct {
	title   string
	numeric bool
	width   int // wrap width; zero means defaultColumnWidth
}

const defaultColumnWidth = 60

func cols(titles ...string) []column {
	out := make([]column, len(titles))
	for i, title := range titles {
		out[i] = column{title: title}
	}
	return out
}

func num(title string) column { return column{title: title, numeric: true} }

// renderTable draws rows under columns with rounded borders. Missing cells
// render blank; a non-empty caption is printed beneath the table.
func renderTable(columns []column, rows [][]string, caption string) string {
	if len(columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if caption != "" {
		tw.SetCaption("%s", caption)
	}

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.title
		align := text.AlignLeft
		if c.numeric {
			align = text.AlignRight
		}
		width := c.width
		if width <= 0 {
			width = defaultColumnWidth
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft, WidthMax: width}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render() + "\n"
}
