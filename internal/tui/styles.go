package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StyleMuted = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// plans and hints
	StyleSubtle = lipgloss.NewStyle().
			Foreground(ColorSubtle).
			Italic(true)

	StyleHighlight = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	StyleInsert = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Background(ColorInsertBg)

	StyleDelete = lipgloss.NewStyle().
			Foreground(ColorError).
			Background(ColorDeleteBg).
			Strikethrough(true)

	StyleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSubtle).
			Padding(0, 1)
)

const logoASCII = `
 _   _     _       _            _                 _
| |_| |__ (_)_ __ | | __   __ _| | ___  _   _  __| |
| __| '_ \| | '_ \| |/ /  / _' | |/ _ \| | | |/ _' |
| |_| | | | | | | |   <  | (_| | | (_) | |_| | (_| |
 \__|_| |_|_|_| |_|_|\_\  \__,_|_|\___/ \__,_|\__,_|`

func Logo() string {
	return StyleHeader.Render(strings.Trim(logoASCII, "\n"))
}
