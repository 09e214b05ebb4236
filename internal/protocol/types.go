// Package protocol defines the wire types exchanged between the UI server
// and the client runtime.
//
// Everything travels as JSON over one websocket. The client sends Request
// envelopes; the server answers each request with one or more Frames, the
// last of which carries Final=true.
package protocol

import (
	"fmt"
	"strings"
)

// ViewportSize is the client's visible area in cells (or pixels, for
// renderers that have them).
type ViewportSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ThemeMode selects the color scheme.
type ThemeMode int

const (
	ThemeModeUnspecified ThemeMode = iota
	ThemeModeLight
	ThemeModeDark
	ThemeModeSystem
)

var themeModeNames = map[ThemeMode]string{
	ThemeModeUnspecified: "",
	ThemeModeLight:       "light",
	ThemeModeDark:        "dark",
	ThemeModeSystem:      "system",
}

func (m ThemeMode) String() string {
	if s, ok := themeModeNames[m]; ok && s != "" {
		return s
	}
	return "unspecified"
}

// ParseThemeMode parses "light", "dark" or "system".
func ParseThemeMode(s string) (ThemeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light":
		return ThemeModeLight, nil
	case "dark":
		return ThemeModeDark, nil
	case "system":
		return ThemeModeSystem, nil
	}
	return ThemeModeUnspecified, fmt.Errorf("unknown theme mode %q", s)
}

func (m ThemeMode) MarshalText() ([]byte, error) {
	return []byte(themeModeNames[m]), nil
}

func (m *ThemeMode) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = ThemeModeUnspecified
		return nil
	}
	mode, err := ParseThemeMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ThemeSettings is the theme state reported at init and on every event.
type ThemeSettings struct {
	Mode    ThemeMode `json:"mode"`
	Density int       `json:"density"`
}

// QueryParam is one query string key and all of its values, in URL order.
type QueryParam struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

// InitRequest is the snapshot sent as the first request of a session.
type InitRequest struct {
	Viewport    ViewportSize  `json:"viewport"`
	Theme       ThemeSettings `json:"theme"`
	QueryParams []QueryParam  `json:"query_params"`
}

// Component is one node of the server-computed UI tree. The runtime never
// interprets it; it is handed to the renderer as-is.
type Component struct {
	Key      string            `json:"key,omitempty"`
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Handlers map[string]string `json:"handlers,omitempty"` // event name -> handler id
	Children []*Component      `json:"children,omitempty"`
}

// ServerError is an application error reported by the server.
type ServerError struct {
	Exception string `json:"exception"`
	Traceback string `json:"traceback,omitempty"`
}

func (e *ServerError) Error() string {
	return e.Exception
}
