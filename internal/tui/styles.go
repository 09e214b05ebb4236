package tui

import (
	"charm.land/lipgloss/v2"

	"github.com/wethinkt/go-uishell/internal/theme"
)

// Styles holds the computed lipgloss styles for the shell chrome.
type Styles struct {
	Header     lipgloss.Style
	HeaderInfo lipgloss.Style
	Spinner    lipgloss.Style
	Help       lipgloss.Style
	Separator  lipgloss.Style

	// Error modal
	ErrorBorder  lipgloss.Style
	ErrorTitle   lipgloss.Style
	ErrorMessage lipgloss.Style
	ErrorDetail  lipgloss.Style
}

// buildStyles creates Styles from a palette.
func buildStyles(p theme.Palette) Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Foreground(p.Accent).
			Bold(true),

		HeaderInfo: lipgloss.NewStyle().
			Foreground(p.Muted),

		Spinner: lipgloss.NewStyle().
			Foreground(p.Accent),

		Help: lipgloss.NewStyle().
			Foreground(p.Muted),

		Separator: lipgloss.NewStyle().
			Foreground(p.Muted),

		ErrorBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.ErrorBorder).
			Padding(0, 1),

		ErrorTitle: lipgloss.NewStyle().
			Foreground(p.ErrorFg).
			Bold(true),

		ErrorMessage: lipgloss.NewStyle().
			Foreground(p.Text),

		ErrorDetail: lipgloss.NewStyle().
			Foreground(p.Muted),
	}
}
