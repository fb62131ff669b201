package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary   = lipgloss.Color("#E11D48") // rose
	ColorSecondary = lipgloss.Color("#0EA5E9") // sky

	ColorSuccess = lipgloss.Color("#22C55E")
	ColorError   = lipgloss.Color("#EF4444")
	ColorWarning = lipgloss.Color("#F59E0B")

	ColorText   = lipgloss.Color("#F8FAFC")
	ColorMuted  = lipgloss.Color("#94A3B8")
	ColorSubtle = lipgloss.Color("#64748B")

	// diff backgrounds
	ColorInsertBg = lipgloss.Color("#14532D")
	ColorDeleteBg = lipgloss.Color("#7F1D1D")
)
