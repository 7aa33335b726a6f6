package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	// Colors meet WCAG AA contrast on dark terminals
	viewColor      = lipgloss.Color("#A78BFA") // Purple
	hashColor      = lipgloss.Color("#9CA3AF") // Gray
	roomColor      = lipgloss.Color("#10B981") // Green
	selectionColor = lipgloss.Color("#60A5FA") // Blue
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#F87171") // Red
)

// palette renders watch output. Plain output is used when the writer is not
// a terminal.
type palette struct {
	label     lipgloss.Style
	view      lipgloss.Style
	legacy    lipgloss.Style
	hash      lipgloss.Style
	room      lipgloss.Style
	selection lipgloss.Style
	warning   lipgloss.Style
	err       lipgloss.Style
	muted     lipgloss.Style
}

func newPalette(color bool) palette {
	if !color {
		plain := lipgloss.NewStyle()
		return palette{plain, plain, plain, plain, plain, plain, plain, plain, plain}
	}
	return palette{
		label:     lipgloss.NewStyle().Bold(true),
		view:      lipgloss.NewStyle().Foreground(viewColor),
		legacy:    lipgloss.NewStyle().Foreground(viewColor).Italic(true),
		hash:      lipgloss.NewStyle().Foreground(hashColor),
		room:      lipgloss.NewStyle().Foreground(roomColor).Bold(true),
		selection: lipgloss.NewStyle().Foreground(selectionColor),
		warning:   lipgloss.NewStyle().Foreground(warningColor),
		err:       lipgloss.NewStyle().Foreground(errorColor).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(hashColor).Faint(true),
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the column count of w, or 0 when w is not a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
