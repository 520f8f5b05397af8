package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

var (
	keyword = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575")).
		Render

	warning = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F25D94")).
		Render
)

// paragraph wraps help text at 78 columns and indents it by two.
func paragraph(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = wordwrap.String(l, 76)
	}
	return indent.String(strings.Join(lines, "\n"), 2)
}
