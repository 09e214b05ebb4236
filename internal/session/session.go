// Package session drives one client session: it opens the channel, applies
// server frames (render, commands, errors) and sends user events.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/wethinkt/go-uishell/internal/channel"
	"github.com/wethinkt/go-uishell/internal/command"
	"github.com/wethinkt/go-uishell/internal/deferred"
	"github.com/wethinkt/go-uishell/internal/dom"
	"github.com/wethinkt/go-uishell/internal/errsurface"
	"github.com/wethinkt/go-uishell/internal/experiment"
	"github.com/wethinkt/go-uishell/internal/protocol"
	"github.com/wethinkt/go-uishell/internal/tuilog"
)

var tracer = otel.Tracer("uishell/session")

// DefaultModuleConcurrency bounds parallel module imports for one render.
const DefaultModuleConcurrency = 4

// Snapshotter builds the init request from the current environment.
type Snapshotter interface {
	Snapshot() protocol.InitRequest
}

// ModuleLoader imports a JS module by URL.
type ModuleLoader interface {
	Import(ctx context.Context, url string) error
}

// Options are a session's collaborators. Loader and Experiment may be nil.
type Options struct {
	Transport  channel.Transport
	Document   *dom.Document
	Collector  Snapshotter
	Errors     *errsurface.Surface
	Router     command.Router
	Navigator  command.Navigator
	Theme      command.Theme
	Loader     ModuleLoader
	Experiment *experiment.Service

	ModuleConcurrency int
}

// Session is one connection's client state.
type Session struct {
	opts   Options
	interp *command.Interpreter
	queue  *deferred.Queue

	mu        sync.Mutex
	state     State
	imported  map[string]bool
	listeners []func()
}

// New wires a session. The command interpreter and the deferred queue are
// owned by the session; the transport holds the title override.
func New(opts Options) *Session {
	if opts.ModuleConcurrency <= 0 {
		opts.ModuleConcurrency = DefaultModuleConcurrency
	}
	if opts.Errors == nil {
		opts.Errors = errsurface.New()
	}
	s := &Session{
		opts:     opts,
		imported: make(map[string]bool),
	}
	s.queue = deferred.NewQueue(s)
	s.interp = command.New(command.Deps{
		Router:    opts.Router,
		Navigator: opts.Navigator,
		Titles:    opts.Transport,
		Document:  opts.Document,
		Theme:     opts.Theme,
		Deferred:  s.queue,
		Reporter:  s,
	})
	return s
}

// Init opens the channel with a snapshot of the environment.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Uninitialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.state = Initializing
	s.mu.Unlock()
	stateTransitionsTotal.WithLabelValues(Initializing.String()).Inc()
	s.notify()

	ctx, span := tracer.Start(ctx, "session.init")
	defer span.End()

	req := s.opts.Collector.Snapshot()
	span.SetAttributes(
		attribute.Int("viewport.width", req.Viewport.Width),
		attribute.Int("viewport.height", req.Viewport.Height),
		attribute.String("theme.mode", req.Theme.Mode.String()),
	)

	err := s.opts.Transport.Init(ctx, req, channel.Handlers{
		OnFrame:   s.handleFrame,
		OnSettled: s.handleSettled,
		OnFault:   s.handleFault,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		err = fmt.Errorf("init session: %w", err)
		// The transport may already have reported the failure through OnFault.
		if s.State() != Faulted {
			s.fault(err)
		}
		return err
	}
	tuilog.Log.Info("Session initializing", "width", req.Viewport.Width, "height", req.Viewport.Height)
	return nil
}

// Dispatch sends a stamped user event.
func (s *Session) Dispatch(ctx context.Context, ev protocol.EventEnvelope) error {
	if st := s.State(); !st.Active() {
		return fmt.Errorf("%w: %s", ErrInactive, st)
	}

	kind := "unknown"
	if ev.Event != nil {
		kind = ev.Event.EventKind()
	}
	ctx, span := tracer.Start(ctx, "session.dispatch", trace.WithAttributes(attribute.String("event.kind", kind)))
	defer span.End()

	if err := s.opts.Transport.Dispatch(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("dispatch %s: %w", kind, err)
	}
	s.notify()
	return nil
}

// HotReload asks the server to re-run the page after a code change.
func (s *Session) HotReload(ctx context.Context) error {
	if st := s.State(); !st.Active() {
		return fmt.Errorf("%w: %s", ErrInactive, st)
	}
	if err := s.opts.Transport.HotReload(ctx); err != nil {
		return fmt.Errorf("hot reload: %w", err)
	}
	hotReloadsTotal.Inc()
	tuilog.Log.Info("Hot reload requested")
	s.notify()
	return nil
}

// IsBusy reports whether a round trip is outstanding.
func (s *Session) IsBusy() bool {
	return s.opts.Transport.IsBusy()
}

// Title is the page title to show.
func (s *Session) Title() string {
	return s.opts.Transport.Title()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Errors returns the error surface.
func (s *Session) Errors() *errsurface.Surface {
	return s.opts.Errors
}

// Document returns the rendered document.
func (s *Session) Document() *dom.Document {
	return s.opts.Document
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	s.setState(Closed)
	return s.opts.Transport.Close()
}

// OnChange registers fn to run after anything a UI may display changes:
// state, render, busy, title.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot is a debug view of the session.
type Snapshot struct {
	State        string   `json:"state"`
	Busy         bool     `json:"busy"`
	Title        string   `json:"title"`
	RootKey      string   `json:"root_key,omitempty"`
	Modules      []string `json:"modules,omitempty"`
	ErrorsOpened int      `json:"errors_opened"`
	PendingKey   string   `json:"pending_scroll_key,omitempty"`
}

// Snapshot returns the debug view.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:        s.State().String(),
		Busy:         s.IsBusy(),
		Title:        s.Title(),
		ErrorsOpened: s.opts.Errors.Opened(),
	}
	if s.opts.Document != nil {
		snap.RootKey = s.opts.Document.RootKey()
	}
	if key, ok := s.queue.Pending(); ok {
		snap.PendingKey = key
	}
	s.mu.Lock()
	for m := range s.imported {
		snap.Modules = append(snap.Modules, m)
	}
	s.mu.Unlock()
	sort.Strings(snap.Modules)
	return snap
}

// ResolutionFailed counts key lookups that found zero or several elements.
func (s *Session) ResolutionFailed(effect, key string, matches int) {
	reason := "missing"
	if matches > 1 {
		reason = "ambiguous"
	}
	resolutionFailuresTotal.WithLabelValues(effect, reason).Inc()
}

func (s *Session) handleFrame(ctx context.Context, f protocol.Frame) {
	defer s.opts.Errors.Recover()

	if !s.State().Active() {
		tuilog.Log.Debug("Dropping frame for inactive session", "request_id", f.RequestID)
		return
	}

	ctx, span := tracer.Start(ctx, "session.frame", trace.WithAttributes(attribute.String("request.id", f.RequestID)))
	defer span.End()
	framesAppliedTotal.Inc()

	if f.Render != nil {
		s.applyRender(ctx, f.Render)
	}
	if f.Error != nil {
		s.applyServerError(f.Error)
		if !s.State().Active() {
			s.notify()
			return
		}
	}
	if len(f.Commands) > 0 {
		if err := s.applyCommands(ctx, f.Commands); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	// Post-render hook. Runs after the render swap above.
	if s.opts.Document != nil {
		s.queue.Flush(s.opts.Document)
	}
	s.notify()
}

func (s *Session) applyRender(ctx context.Context, r *protocol.Render) {
	if err := s.importModules(ctx, r.JSModules); err != nil {
		s.opts.Errors.ReportRuntimeError(err)
	}
	if s.opts.Document != nil {
		s.opts.Document.Render(r.Root)
	}
	rendersTotal.Inc()

	s.mu.Lock()
	first := s.state == Initializing
	s.mu.Unlock()
	if first {
		s.setState(Streaming)
		tuilog.Log.Info("Session streaming", "title", r.Title)
	}
}

// importModules loads modules not yet imported by this session. Failures
// are returned joined; the render goes ahead regardless.
func (s *Session) importModules(ctx context.Context, paths []string) error {
	if s.opts.Loader == nil || len(paths) == 0 {
		return nil
	}

	var fresh []string
	s.mu.Lock()
	for _, p := range paths {
		if !s.imported[p] {
			s.imported[p] = true
			fresh = append(fresh, p)
		}
	}
	s.mu.Unlock()
	if len(fresh) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "session.import_modules", trace.WithAttributes(attribute.Int("modules", len(fresh))))
	defer span.End()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(s.opts.ModuleConcurrency)
	for _, p := range fresh {
		g.Go(func() error {
			url := s.opts.Experiment.ModuleURL(p)
			if err := s.opts.Loader.Import(ctx, url); err != nil {
				tuilog.Log.Error("Module import failed", "module", p, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				s.mu.Lock()
				delete(s.imported, p)
				s.mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// applyCommands runs cmds in order. A command the client cannot interpret
// means client and server disagree on the protocol, so the rest of the
// frame is abandoned and the error surfaced.
func (s *Session) applyCommands(ctx context.Context, cmds []protocol.CommandEnvelope) error {
	for i, env := range cmds {
		cmd, err := env.Decode()
		if err != nil {
			err = fmt.Errorf("%w: %v", protocol.ErrContractViolation, err)
		} else {
			err = s.interp.Execute(ctx, cmd)
		}
		if err == nil {
			continue
		}

		if errors.Is(err, protocol.ErrUnhandledCommand) || errors.Is(err, protocol.ErrContractViolation) {
			tuilog.Log.Error("Aborting frame commands", "type", env.Type, "index", i, "remaining", len(cmds)-i-1, "error", err)
			s.opts.Errors.ReportRuntimeError(err)
			return err
		}
		tuilog.Log.Warn("Command failed", "type", env.Type, "error", err)
		s.opts.Errors.ReportRuntimeError(err)
	}
	return nil
}

// applyServerError surfaces an application error. Before the first render
// there is nothing to keep showing, so the session faults.
func (s *Session) applyServerError(e *protocol.ServerError) {
	serverErrorsTotal.Inc()
	s.opts.Errors.ReportServerError(e)
	if s.State() == Initializing {
		s.setState(Faulted)
		// Called on the transport's read goroutine; Close waits for it.
		go s.opts.Transport.Close()
	}
}

func (s *Session) handleSettled(requestID string) {
	tuilog.Log.Debug("Round trip settled", "request_id", requestID)
	s.notify()
}

func (s *Session) handleFault(err error) {
	if s.State() == Closed {
		return
	}
	s.fault(fmt.Errorf("connection lost: %w", err))
}

func (s *Session) fault(err error) {
	s.setState(Faulted)
	s.opts.Errors.ReportRuntimeError(err)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	if prev == st || prev == Closed || prev == Faulted {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	stateTransitionsTotal.WithLabelValues(st.String()).Inc()
	tuilog.Log.Debug("Session state", "from", prev, "to", st)
	s.notify()
}

func (s *Session) notify() {
	s.mu.Lock()
	fns := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
