// Package util holds small text helpers shared by the command line output.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "..."

// Ellipsize shortens s to at most maxLen runes, ending in "..." when cut.
// It ignores ANSI escapes; use FitWidth for styled text.
func Ellipsize(s string, maxLen int) string {
	if maxLen <= len(ellipsis) {
		return ellipsis
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}

// FitWidth cuts a possibly styled line to maxWidth terminal columns. A
// maxWidth of zero or less leaves the line alone.
func FitWidth(line string, maxWidth int) string {
	if maxWidth <= 0 || lipgloss.Width(line) <= maxWidth {
		return line
	}
	if maxWidth <= len(ellipsis) {
		return ellipsis
	}
	// The tail counts towards the width.
	return ansi.Truncate(line, maxWidth, ellipsis)
}
