// Package dispatch turns client-side occurrences (interactions, history
// traversal, viewport changes) into user events and delivers them to the
// session in order.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wethinkt/go-uishell/internal/protocol"
	"github.com/wethinkt/go-uishell/internal/tuilog"
)

// DefaultResizeDebounce is the quiet period after the last resize before a
// Resize event is sent.
const DefaultResizeDebounce = 500 * time.Millisecond

// ErrClosed is returned when emitting on a closed dispatcher.
var ErrClosed = errors.New("dispatcher closed")

// Stamper attaches the current environment to an event.
type Stamper interface {
	Stamp(ev protocol.UserEvent) protocol.EventEnvelope
}

// Sink receives outgoing events one at a time, in emission order.
type Sink func(ctx context.Context, env protocol.EventEnvelope) error

// Options tune a Dispatcher. Zero values use defaults.
type Options struct {
	ResizeDebounce time.Duration
	QueueSize      int
}

// Dispatcher serializes outgoing events through a single queue.
type Dispatcher struct {
	stamper  Stamper
	sink     Sink
	debounce time.Duration

	queue  chan protocol.EventEnvelope
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	resizeTimer *time.Timer
	closed      bool
}

// New starts a dispatcher draining into sink.
func New(stamper Stamper, sink Sink, opts Options) *Dispatcher {
	if opts.ResizeDebounce <= 0 {
		opts.ResizeDebounce = DefaultResizeDebounce
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		stamper:  stamper,
		sink:     sink,
		debounce: opts.ResizeDebounce,
		queue:    make(chan protocol.EventEnvelope, opts.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go d.drain()
	return d
}

// Interaction forwards a user interaction immediately.
func (d *Dispatcher) Interaction(ev protocol.Interaction) error {
	return d.emit(ev)
}

// Popstate emits a Navigation event immediately. It is not debounced, even
// while a resize is pending.
func (d *Dispatcher) Popstate() error {
	return d.emit(protocol.Navigation{})
}

// Resize notes a viewport change. Only the last of a burst is sent, once
// no further resize has arrived for the debounce window.
func (d *Dispatcher) Resize() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.resizeTimer != nil {
		d.resizeTimer.Stop()
		resizeCoalescedTotal.Inc()
	}
	var t *time.Timer
	t = time.AfterFunc(d.debounce, func() {
		d.mu.Lock()
		if d.resizeTimer != t {
			// superseded after firing
			d.mu.Unlock()
			return
		}
		d.resizeTimer = nil
		d.mu.Unlock()
		if err := d.emit(protocol.Resize{}); err != nil && !errors.Is(err, ErrClosed) {
			tuilog.Log.Warn("Dropped resize event", "error", err)
		}
	})
	d.resizeTimer = t
}

// Close stops the drain loop. A pending resize is dropped and events still
// queued are discarded.
func (d *Dispatcher) Close() {
	// Cancel first: an emit blocked on a full queue holds mu.
	d.cancel()

	d.mu.Lock()
	d.closed = true
	if d.resizeTimer != nil {
		d.resizeTimer.Stop()
		d.resizeTimer = nil
	}
	d.mu.Unlock()

	<-d.done
}

// emit stamps ev and enqueues it. Stamping and enqueueing happen under mu
// so that emission order is queue order.
func (d *Dispatcher) emit(ev protocol.UserEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	env := d.stamper.Stamp(ev)
	select {
	case d.queue <- env:
		queueDepth.Inc()
		return nil
	case <-d.ctx.Done():
		return ErrClosed
	}
}

func (d *Dispatcher) drain() {
	defer close(d.done)
	for {
		select {
		case <-d.ctx.Done():
			return
		case env := <-d.queue:
			queueDepth.Dec()
			kind := "unknown"
			if env.Event != nil {
				kind = env.Event.EventKind()
			}
			if err := d.sink(d.ctx, env); err != nil {
				eventsTotal.WithLabelValues(kind, "error").Inc()
				tuilog.Log.Warn("Event dispatch failed", "kind", kind, "error", err)
				continue
			}
			eventsTotal.WithLabelValues(kind, "ok").Inc()
			tuilog.Log.Debug("Event dispatched", "kind", kind, "path", env.Path)
		}
	}
}
