package protocol

import (
	"encoding/json"
	"fmt"
)

// Command is a server-issued instruction for a client-side effect outside
// the rendering tree. The set of implementations is closed: only types in
// this package satisfy it.
type Command interface {
	CommandType() string
	isCommand()
}

// Command type tags as they appear on the wire.
const (
	CommandNavigate         = "navigate"
	CommandScrollIntoView   = "scroll_into_view"
	CommandSetPageTitle     = "set_page_title"
	CommandFocusComponent   = "focus_component"
	CommandSetThemeMode     = "set_theme_mode"
	CommandSetThemeDensity  = "set_theme_density"
	CommandUpdateQueryParam = "update_query_param"
)

// Navigate moves the client to URL. Absolute http(s) URLs leave the app.
type Navigate struct {
	URL          string `json:"url"`
	OpenInNewTab bool   `json:"open_in_new_tab,omitempty"`
}

// ScrollIntoView scrolls the component with Key into view once the
// current render has settled.
type ScrollIntoView struct {
	Key string `json:"key"`
}

// SetPageTitle overrides the route title until the next navigation.
type SetPageTitle struct {
	Title string `json:"title"`
}

// FocusComponent focuses the first focusable element of the component
// with Key.
type FocusComponent struct {
	Key string `json:"key"`
}

// SetThemeMode changes the color scheme.
type SetThemeMode struct {
	Mode ThemeMode `json:"mode"`
}

// SetThemeDensity changes the layout density. Density is a pointer so an
// omitted value can be told apart from zero.
type SetThemeDensity struct {
	Density *int `json:"density"`
}

// UpdateQueryParam replaces every value of one query parameter.
type UpdateQueryParam struct {
	Param QueryParam `json:"query_param"`
}

// UnknownCommand is produced when decoding a command type this client
// does not recognize.
type UnknownCommand struct {
	Type string
}

func (Navigate) CommandType() string         { return CommandNavigate }
func (ScrollIntoView) CommandType() string   { return CommandScrollIntoView }
func (SetPageTitle) CommandType() string     { return CommandSetPageTitle }
func (FocusComponent) CommandType() string   { return CommandFocusComponent }
func (SetThemeMode) CommandType() string     { return CommandSetThemeMode }
func (SetThemeDensity) CommandType() string  { return CommandSetThemeDensity }
func (UpdateQueryParam) CommandType() string { return CommandUpdateQueryParam }
func (c UnknownCommand) CommandType() string { return c.Type }

func (Navigate) isCommand()         {}
func (ScrollIntoView) isCommand()   {}
func (SetPageTitle) isCommand()     {}
func (FocusComponent) isCommand()   {}
func (SetThemeMode) isCommand()     {}
func (SetThemeDensity) isCommand()  {}
func (UpdateQueryParam) isCommand() {}
func (UnknownCommand) isCommand()   {}

// CommandEnvelope is the wire form of a Command.
type CommandEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EncodeCommand wraps c in its envelope.
func EncodeCommand(c Command) (CommandEnvelope, error) {
	if c == nil {
		return CommandEnvelope{}, fmt.Errorf("encode command: %w: nil", ErrUnhandledCommand)
	}
	if u, ok := c.(UnknownCommand); ok {
		return CommandEnvelope{}, fmt.Errorf("encode command: %w: %q", ErrUnhandledCommand, u.Type)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return CommandEnvelope{}, fmt.Errorf("encode %s: %w", c.CommandType(), err)
	}
	return CommandEnvelope{Type: c.CommandType(), Data: data}, nil
}

// Decode returns the Command carried by the envelope. Unrecognized types
// decode to UnknownCommand rather than failing, so the interpreter is the
// one place that rejects them.
func (e CommandEnvelope) Decode() (Command, error) {
	var c Command
	switch e.Type {
	case CommandNavigate:
		c = &Navigate{}
	case CommandScrollIntoView:
		c = &ScrollIntoView{}
	case CommandSetPageTitle:
		c = &SetPageTitle{}
	case CommandFocusComponent:
		c = &FocusComponent{}
	case CommandSetThemeMode:
		c = &SetThemeMode{}
	case CommandSetThemeDensity:
		c = &SetThemeDensity{}
	case CommandUpdateQueryParam:
		c = &UpdateQueryParam{}
	default:
		return UnknownCommand{Type: e.Type}, nil
	}

	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, c); err != nil {
			return nil, fmt.Errorf("decode %s command: %w", e.Type, err)
		}
	}

	// Hand out values, not pointers, so type switches match one form.
	switch v := c.(type) {
	case *Navigate:
		return *v, nil
	case *ScrollIntoView:
		return *v, nil
	case *SetPageTitle:
		return *v, nil
	case *FocusComponent:
		return *v, nil
	case *SetThemeMode:
		return *v, nil
	case *SetThemeDensity:
		return *v, nil
	case *UpdateQueryParam:
		return *v, nil
	}
	return c, nil
}
