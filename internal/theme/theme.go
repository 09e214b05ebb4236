// Package theme is the client's theme service: the current mode and
// density, read once at session start and written by server commands.
package theme

import (
	"os"
	"strings"
	"sync"

	"github.com/wethinkt/go-uishell/internal/protocol"
)

// Service holds the current theme settings.
type Service struct {
	mu        sync.RWMutex
	settings  protocol.ThemeSettings
	listeners []func(protocol.ThemeSettings)
}

// NewService returns a service starting at initial. An unspecified mode
// defaults to system.
func NewService(initial protocol.ThemeSettings) *Service {
	if initial.Mode == protocol.ThemeModeUnspecified {
		initial.Mode = protocol.ThemeModeSystem
	}
	return &Service{settings: initial}
}

// Settings returns the current settings.
func (s *Service) Settings() protocol.ThemeSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetMode changes the color scheme.
func (s *Service) SetMode(mode protocol.ThemeMode) {
	s.update(func(ts *protocol.ThemeSettings) { ts.Mode = mode })
}

// SetDensity changes the layout density.
func (s *Service) SetDensity(density int) {
	s.update(func(ts *protocol.ThemeSettings) { ts.Density = density })
}

// OnChange registers fn to run after every change.
func (s *Service) OnChange(fn func(protocol.ThemeSettings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) update(fn func(*protocol.ThemeSettings)) {
	s.mu.Lock()
	fn(&s.settings)
	cur := s.settings
	fns := append([]func(protocol.ThemeSettings){}, s.listeners...)
	s.mu.Unlock()

	for _, f := range fns {
		f(cur)
	}
}

// IsDark resolves the mode to light or dark. System mode reads COLORFGBG
// ("fg;bg", bg 7 or 15 means a light terminal) and otherwise assumes dark.
func IsDark(mode protocol.ThemeMode) bool {
	switch mode {
	case protocol.ThemeModeLight:
		return false
	case protocol.ThemeModeDark:
		return true
	}
	if v := os.Getenv("COLORFGBG"); v != "" {
		parts := strings.Split(v, ";")
		switch parts[len(parts)-1] {
		case "7", "15":
			return false
		}
	}
	return true
}
