// Package channel carries requests to the UI server and frames back.
package channel

import (
	"context"
	"errors"

	"github.com/wethinkt/go-uishell/internal/protocol"
)

var (
	// ErrAlreadyStarted is returned by a second Init.
	ErrAlreadyStarted = errors.New("channel already started")
	// ErrNotStarted is returned when sending before Init.
	ErrNotStarted = errors.New("channel not started")
	// ErrClosed is returned after Close or a fault.
	ErrClosed = errors.New("channel closed")
	// ErrServerClosed is the fault reported when the server ends the
	// connection.
	ErrServerClosed = errors.New("connection closed by server")
)

// Handlers receive what the server sends. OnFrame runs on the transport's
// read goroutine, one frame at a time in arrival order. OnSettled runs after
// the final frame of a round trip has been handled. OnFault runs at most
// once, when the transport fails; there is no reconnect.
type Handlers struct {
	OnFrame   func(ctx context.Context, f protocol.Frame)
	OnSettled func(requestID string)
	OnFault   func(err error)
}

// Transport is a bidirectional channel to the server.
type Transport interface {
	Init(ctx context.Context, req protocol.InitRequest, h Handlers) error
	Dispatch(ctx context.Context, ev protocol.EventEnvelope) error
	HotReload(ctx context.Context) error

	// IsBusy reports whether any round trip is outstanding.
	IsBusy() bool

	OverriddenTitle() string
	SetOverriddenTitle(title string)
	ResetOverriddenTitle()
	// Title is the override when set, otherwise the route title from the
	// latest render.
	Title() string

	Close() error
}
