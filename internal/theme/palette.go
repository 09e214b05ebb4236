package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"

	"github.com/wethinkt/go-uishell/internal/protocol"
)

// Palette is the set of colors the TUI draws with.
type Palette struct {
	Accent      color.Color
	Text        color.Color
	Muted       color.Color
	Focus       color.Color
	ErrorFg     color.Color
	ErrorBorder color.Color
}

// PaletteFor returns the palette for settings.
func PaletteFor(s protocol.ThemeSettings) Palette {
	if IsDark(s.Mode) {
		return Palette{
			Accent:      lipgloss.Color("#7aa2f7"),
			Text:        lipgloss.Color("#c0caf5"),
			Muted:       lipgloss.Color("#565f89"),
			Focus:       lipgloss.Color("#e0af68"),
			ErrorFg:     lipgloss.Color("#f7768e"),
			ErrorBorder: lipgloss.Color("#db4b4b"),
		}
	}
	return Palette{
		Accent:      lipgloss.Color("#2e7de9"),
		Text:        lipgloss.Color("#3760bf"),
		Muted:       lipgloss.Color("#8990b3"),
		Focus:       lipgloss.Color("#8c6c3e"),
		ErrorFg:     lipgloss.Color("#c64343"),
		ErrorBorder: lipgloss.Color("#f52a65"),
	}
}

// Spacing maps density to vertical padding between top-level blocks.
// Density follows the Material convention: 0 is default, negative is
// tighter.
func Spacing(density int) int {
	switch {
	case density < 0:
		return 0
	case density == 0:
		return 1
	}
	return 2
}
