// Package environ collects the environment facts the server needs: the
// viewport size, theme settings and query parameters.
package environ

import (
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/wethinkt/go-uishell/internal/protocol"
)

// ViewportSource reports the current viewport size.
type ViewportSource interface {
	ViewportSize() protocol.ViewportSize
}

// ThemeSource reports the current theme settings.
type ThemeSource interface {
	Settings() protocol.ThemeSettings
}

// LocationSource reports the current page location.
type LocationSource interface {
	Path() string
	QueryParams() []protocol.QueryParam
}

// Collector snapshots the environment.
type Collector struct {
	Viewport ViewportSource
	Theme    ThemeSource
	Location LocationSource
}

// Snapshot builds the request sent as the first frame of a session.
func (c *Collector) Snapshot() protocol.InitRequest {
	return protocol.InitRequest{
		Viewport:    c.viewport(),
		Theme:       c.theme(),
		QueryParams: c.queryParams(),
	}
}

// Stamp wraps ev with the environment as of now.
func (c *Collector) Stamp(ev protocol.UserEvent) protocol.EventEnvelope {
	env := protocol.EventEnvelope{
		Event:       ev,
		Viewport:    c.viewport(),
		Theme:       c.theme(),
		QueryParams: c.queryParams(),
	}
	if c.Location != nil {
		env.Path = c.Location.Path()
	}
	return env
}

func (c *Collector) viewport() protocol.ViewportSize {
	if c.Viewport == nil {
		return protocol.ViewportSize{}
	}
	return c.Viewport.ViewportSize()
}

func (c *Collector) theme() protocol.ThemeSettings {
	if c.Theme == nil {
		return protocol.ThemeSettings{}
	}
	return c.Theme.Settings()
}

func (c *Collector) queryParams() []protocol.QueryParam {
	if c.Location == nil {
		return nil
	}
	return c.Location.QueryParams()
}

// Viewport is a settable viewport, updated by the renderer when the
// window changes size.
type Viewport struct {
	mu   sync.RWMutex
	size protocol.ViewportSize
}

// NewViewport returns a viewport of the given size.
func NewViewport(width, height int) *Viewport {
	return &Viewport{size: protocol.ViewportSize{Width: width, Height: height}}
}

// TerminalViewport returns a viewport seeded from the first of stdout,
// stdin or stderr that is a terminal, falling back to 80x24.
func TerminalViewport() *Viewport {
	for _, fd := range []int{int(os.Stdout.Fd()), int(os.Stdin.Fd()), int(os.Stderr.Fd())} {
		if term.IsTerminal(fd) {
			if w, h, err := term.GetSize(fd); err == nil && w > 0 && h > 0 {
				return NewViewport(w, h)
			}
		}
	}
	return NewViewport(80, 24)
}

// ViewportSize implements ViewportSource.
func (v *Viewport) ViewportSize() protocol.ViewportSize {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.size
}

// Set records a new size and reports whether it changed.
func (v *Viewport) Set(width, height int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := protocol.ViewportSize{Width: width, Height: height}
	if next == v.size {
		return false
	}
	v.size = next
	return true
}
