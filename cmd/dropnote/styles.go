package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"dropnote/internal/mutation"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	errorTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("203"))

	lockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	noteStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("242")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
)

func printNotice(w io.Writer, n mutation.Notice, failed bool) {
	title := titleStyle
	if failed {
		title = errorTitleStyle
	}
	fmt.Fprintln(w, title.Render(n.Title))
	if n.Description != "" {
		fmt.Fprintln(w, n.Description)
	}
}

func printDim(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf(format, args...)))
}
