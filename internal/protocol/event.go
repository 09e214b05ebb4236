package protocol

import (
	"encoding/json"
	"fmt"
)

// UserEvent is an outgoing event. Like Command, the set of kinds is closed
// and an event carries exactly one of them.
type UserEvent interface {
	EventKind() string
	isUserEvent()
}

// Event kind tags.
const (
	EventInteraction = "interaction"
	EventNavigation  = "navigation"
	EventResize      = "resize"
)

// Interaction is a generic UI interaction (click, input, select, ...)
// produced by the renderer.
type Interaction struct {
	HandlerID string `json:"handler_id"`
	Key       string `json:"key,omitempty"`
	Value     string `json:"value,omitempty"`
}

// Navigation reports a browser-style back/forward move.
type Navigation struct{}

// Resize reports that the viewport changed size. The new size travels in
// the envelope's Viewport field.
type Resize struct{}

func (Interaction) EventKind() string { return EventInteraction }
func (Navigation) EventKind() string  { return EventNavigation }
func (Resize) EventKind() string      { return EventResize }

func (Interaction) isUserEvent() {}
func (Navigation) isUserEvent()  {}
func (Resize) isUserEvent()      {}

// EventEnvelope is the wire form of a UserEvent together with the
// environment snapshot taken when it was dispatched.
type EventEnvelope struct {
	Event       UserEvent     `json:"-"`
	Path        string        `json:"path"`
	Viewport    ViewportSize  `json:"viewport"`
	Theme       ThemeSettings `json:"theme"`
	QueryParams []QueryParam  `json:"query_params"`
}

type eventWire struct {
	Path        string        `json:"path"`
	Viewport    ViewportSize  `json:"viewport"`
	Theme       ThemeSettings `json:"theme"`
	QueryParams []QueryParam  `json:"query_params"`
	Interaction *Interaction  `json:"interaction,omitempty"`
	Navigation  *Navigation   `json:"navigation,omitempty"`
	Resize      *Resize       `json:"resize,omitempty"`
}

// MarshalJSON writes the one set kind as its own field. A nil Event is an
// error, which is how "exactly one kind" is held on the way out.
func (e EventEnvelope) MarshalJSON() ([]byte, error) {
	w := eventWire{
		Path:        e.Path,
		Viewport:    e.Viewport,
		Theme:       e.Theme,
		QueryParams: e.QueryParams,
	}
	switch ev := e.Event.(type) {
	case Interaction:
		w.Interaction = &ev
	case Navigation:
		w.Navigation = &ev
	case Resize:
		w.Resize = &ev
	default:
		return nil, fmt.Errorf("%w: no kind set (%T)", ErrInvalidEvent, e.Event)
	}
	return json.Marshal(w)
}

// UnmarshalJSON rejects envelopes with zero or several kinds.
func (e *EventEnvelope) UnmarshalJSON(b []byte) error {
	var w eventWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	var kinds []UserEvent
	if w.Interaction != nil {
		kinds = append(kinds, *w.Interaction)
	}
	if w.Navigation != nil {
		kinds = append(kinds, *w.Navigation)
	}
	if w.Resize != nil {
		kinds = append(kinds, *w.Resize)
	}
	if len(kinds) != 1 {
		return fmt.Errorf("%w: %d kinds set", ErrInvalidEvent, len(kinds))
	}

	*e = EventEnvelope{
		Event:       kinds[0],
		Path:        w.Path,
		Viewport:    w.Viewport,
		Theme:       w.Theme,
		QueryParams: w.QueryParams,
	}
	return nil
}
