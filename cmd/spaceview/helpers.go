package main

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// setupHint is shown under a failed start.
const setupHint = "Make sure `SPACE_ID` and `CLIENT_TOKEN` are set in `.env.local`, " +
	"or run `spaceview init` to write them."

// mdRenderer renders markdown to terminal-formatted output.
var mdRenderer *glamour.TermRenderer

func initMarkdownRenderer(width int) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return
	}
	mdRenderer = r
}

// renderMarkdown converts markdown text to terminal-formatted output.
func renderMarkdown(text string) string {
	if mdRenderer == nil {
		return text
	}
	out, err := mdRenderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// truncate shortens s to at most width terminal cells, appending "…" when
// it cuts. Newlines are replaced with spaces for single-line display.
func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// spread places left and right on one line of the given width. When the
// line is too narrow they are separated by a single space.
func spread(left, right string, width int) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}
