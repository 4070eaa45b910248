package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// screenSize returns the terminal size to render for. Before the first
// WindowSizeMsg it falls back to $COLUMNS/$LINES, then to 80x24.
func screenSize(width, height int) (int, int) {
	if width <= 0 {
		width = envDimension("COLUMNS", 80)
	}
	if height <= 0 {
		height = envDimension("LINES", 24)
	}
	return width, height
}

func envDimension(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

// modalBox renders content in a bordered popup no wider than the screen.
func modalBox(content string, want, screenW int, border lipgloss.Border) string {
	w := want
	if screenW > 0 {
		w = minvalue(want, maxvalue(10, screenW-4))
	}
	return lipgloss.NewStyle().
		Border(border).
		Padding(1, 2).
		Width(w).
		Align(lipgloss.Center).
		Background(lipgloss.Color("0")).
		Render(content)
}

// renderOverlay composes popup centered over base. The result has exactly
// height lines of width columns, so the layout underneath never shifts.
func renderOverlay(base, popup string, width, height int) string {
	screen := lipgloss.Place(
		maxvalue(1, width), maxvalue(1, height),
		lipgloss.Left, lipgloss.Top,
		base,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("0")),
	)

	bgLines := strings.Split(screen, "\n")
	popLines := strings.Split(popup, "\n")

	popW := 0
	for _, l := range popLines {
		popW = maxvalue(popW, lipgloss.Width(l))
	}
	popH := len(popLines)

	startRow, startCol := 0, 0
	if height > 0 {
		startRow = maxvalue(0, (height-popH)/2)
	}
	if width > 0 {
		startCol = maxvalue(0, (width-popW)/2)
	}

	out := make([]string, 0, len(bgLines))
	for i, line := range bgLines {
		pi := i - startRow
		if pi >= 0 && pi < popH {
			line = overlayLine(line, popLines[pi], startCol, width)
		}
		out = append(out, fitWidth(line, width))
	}
	for len(out) < maxvalue(1, height) {
		out = append(out, strings.Repeat(" ", maxvalue(1, width)))
	}
	if len(out) > maxvalue(1, height) {
		out = out[:maxvalue(1, height)]
	}
	return strings.Join(out, "\n")
}

// overlayLine writes pop over bg starting at column col.
func overlayLine(bg, pop string, col, width int) string {
	if w := lipgloss.Width(bg); w < width {
		bg += strings.Repeat(" ", width-w)
	}
	res := []rune(bg)
	pr := []rune(pop)
	end := minvalue(len(res), col+len(pr))
	for j, r := range pr {
		if col+j < end {
			res[col+j] = r
		}
	}
	return string(res)
}

// fitWidth pads or truncates s to exactly width columns.
func fitWidth(s string, width int) string {
	if lipgloss.Width(s) > width {
		s = truncateToWidth(s, width)
	}
	if w := lipgloss.Width(s); w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}

// truncateToWidth cuts s to at most maxWidth visual columns without
// splitting a rune.
func truncateToWidth(s string, maxWidth int) string {
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if lipgloss.Width(b.String()+string(r)) > maxWidth {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

func maxvalue(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minvalue(a, b int) int {
	if a < b {
		return a
	}
	return b
}
