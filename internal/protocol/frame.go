package protocol

import "github.com/google/uuid"

// Request types.
const (
	RequestInit      = "init"
	RequestUserEvent = "user_event"
	RequestHotReload = "hot_reload"
)

// Request is the client-to-server envelope.
type Request struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Init      *InitRequest   `json:"init,omitempty"`
	UserEvent *EventEnvelope `json:"user_event,omitempty"`
}

// NewInitRequest wraps init in a request with a fresh ID.
func NewInitRequest(init InitRequest) Request {
	return Request{ID: uuid.NewString(), Type: RequestInit, Init: &init}
}

// NewEventRequest wraps ev in a request with a fresh ID.
func NewEventRequest(ev EventEnvelope) Request {
	return Request{ID: uuid.NewString(), Type: RequestUserEvent, UserEvent: &ev}
}

// NewHotReloadRequest asks the server to re-run the current page after a
// code change.
func NewHotReloadRequest() Request {
	return Request{ID: uuid.NewString(), Type: RequestHotReload}
}

// Render carries a new root component and the JS modules it references.
type Render struct {
	Root      *Component `json:"root"`
	JSModules []string   `json:"js_modules,omitempty"`
	Title     string     `json:"title,omitempty"` // route-derived page title
}

// Frame is one server-to-client transmission: an optional render, zero or
// more commands, an optional application error. Final marks the last frame
// of a round trip.
type Frame struct {
	RequestID string            `json:"request_id"`
	Render    *Render           `json:"render,omitempty"`
	Commands  []CommandEnvelope `json:"commands,omitempty"`
	Error     *ServerError      `json:"error,omitempty"`
	Final     bool              `json:"final,omitempty"`
}
