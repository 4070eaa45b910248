package rowmodel

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var placeholderStyle = lipgloss.NewStyle().Faint(true).Italic(true)

// TableRows renders flattened lines as bubbles table rows. The first column
// is indented by depth and carries an expand marker and an icon.
func TableRows(lines []Line, expanded func(Row) bool) []table.Row {
	rows := make([]table.Row, 0, len(lines))
	for _, l := range lines {
		cells := append([]string(nil), l.Cells...)
		if len(cells) == 0 {
			cells = []string{""}
		}
		indent := strings.Repeat("  ", l.Depth)
		switch l.Kind {
		case Placeholder:
			cells[0] = indent + "  " + placeholderStyle.Render(".. "+strings.ToLower(cells[0])+" ..")
		default:
			marker := "  "
			if l.IsDir {
				marker = "▸ "
				if expanded != nil && expanded(l.Row) {
					marker = "▾ "
				}
			}
			cells[0] = indent + marker + IconFor(cells[0], l.IsDir) + " " + cells[0]
		}
		rows = append(rows, table.Row(cells))
	}
	return rows
}

// TableColumns sizes the model's columns for a terminal of the given width.
// The first column takes whatever the others leave over.
func TableColumns(cols []Column, width int) []table.Column {
	out := make([]table.Column, len(cols))
	fixed := 0
	for i, c := range cols {
		out[i] = table.Column{Title: c.Title, Width: c.Width}
		if i > 0 {
			fixed += c.Width
		}
	}
	if width <= 0 || len(out) == 0 {
		return out
	}
	// separators and padding added by the table
	avail := width - 10
	if nameW := avail - fixed; nameW > 20 {
		out[0].Width = nameW
	} else {
		out[0].Width = 20
	}
	return out
}

// TableStyles are the table styles used by the browser.
func TableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.NoColor{}).
		Background(lipgloss.Color("57")).
		Bold(false)
	return styles
}
