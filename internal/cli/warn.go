package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// warnReporter prints resolver and tool warnings as "warning: ..." lines.
// The prefix is styled when w is a color terminal and plain otherwise.
type warnReporter struct {
	w      io.Writer
	prefix string
}

// newWarnReporter creates a reporter writing to w.
func newWarnReporter(w io.Writer) *warnReporter {
	style := lipgloss.NewRenderer(w).NewStyle().
		Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#B58900", Dark: "#FFD75F"})

	return &warnReporter{w: w, prefix: style.Render("warning:")}
}

// Warnf implements resolver.Reporter.
func (r *warnReporter) Warnf(format string, args ...any) {
	fmt.Fprintf(r.w, "%s %s\n", r.prefix, fmt.Sprintf(format, args...))
}
