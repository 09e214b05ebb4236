package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/wethinkt/go-uishell/internal/channel"
	"github.com/wethinkt/go-uishell/internal/dom"
	"github.com/wethinkt/go-uishell/internal/environ"
	"github.com/wethinkt/go-uishell/internal/errsurface"
	"github.com/wethinkt/go-uishell/internal/experiment"
	"github.com/wethinkt/go-uishell/internal/location"
	"github.com/wethinkt/go-uishell/internal/protocol"
	"github.com/wethinkt/go-uishell/internal/theme"
)

// fakeTransport records requests and lets tests play server frames.
type fakeTransport struct {
	mu          sync.Mutex
	h           channel.Handlers
	init        *protocol.InitRequest
	events      []protocol.EventEnvelope
	hotReloads  int
	outstanding int
	closed      int
	initErr     error
	faultOnInit bool
	override    string
	routeTitle  string
}

func (f *fakeTransport) Init(_ context.Context, req protocol.InitRequest, h channel.Handlers) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		if f.faultOnInit {
			h.OnFault(f.initErr)
		}
		return f.initErr
	}
	f.h = h
	f.init = &req
	f.outstanding++
	return nil
}

func (f *fakeTransport) Dispatch(_ context.Context, ev protocol.EventEnvelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	f.outstanding++
	return nil
}

func (f *fakeTransport) HotReload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hotReloads++
	f.outstanding++
	return nil
}

func (f *fakeTransport) IsBusy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outstanding > 0
}

func (f *fakeTransport) OverriddenTitle() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.override
}

func (f *fakeTransport) SetOverriddenTitle(t string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.override = t
}

func (f *fakeTransport) ResetOverriddenTitle() { f.SetOverriddenTitle("") }

func (f *fakeTransport) Title() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.override != "" {
		return f.override
	}
	return f.routeTitle
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// play delivers frames the way the websocket transport does.
func (f *fakeTransport) play(frames ...protocol.Frame) {
	for _, fr := range frames {
		if fr.Render != nil {
			f.mu.Lock()
			f.routeTitle = fr.Render.Title
			f.mu.Unlock()
		}
		f.h.OnFrame(context.Background(), fr)
		if fr.Final {
			f.mu.Lock()
			f.outstanding--
			f.mu.Unlock()
			f.h.OnSettled(fr.RequestID)
		}
	}
}

type fakeLoader struct {
	mu      sync.Mutex
	urls    []string
	failFor map[string]bool
}

func (l *fakeLoader) Import(_ context.Context, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, url)
	if l.failFor[url] {
		return errors.New("404")
	}
	return nil
}

type nopNavigator struct{}

func (nopNavigator) Open(string) error       { return nil }
func (nopNavigator) OpenNewTab(string) error { return nil }

type fixture struct {
	s      *Session
	tr     *fakeTransport
	doc    *dom.Document
	loc    *location.Location
	errs   *errsurface.Surface
	loader *fakeLoader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := location.New("http://localhost:32123/?tab=1")
	if err != nil {
		t.Fatal(err)
	}
	th := theme.NewService(protocol.ThemeSettings{Mode: protocol.ThemeModeDark})
	fx := &fixture{
		tr:     &fakeTransport{},
		doc:    dom.NewDocument(),
		loc:    loc,
		errs:   errsurface.New(),
		loader: &fakeLoader{failFor: map[string]bool{}},
	}
	fx.s = New(Options{
		Transport: fx.tr,
		Document:  fx.doc,
		Collector: &environ.Collector{
			Viewport: environ.NewViewport(100, 30),
			Theme:    th,
			Location: loc,
		},
		Errors:     fx.errs,
		Router:     loc,
		Navigator:  nopNavigator{},
		Theme:      th,
		Loader:     fx.loader,
		Experiment: &experiment.Service{WebComponentsCacheKey: "build7"},
	})
	return fx
}

func page(key string, children ...*protocol.Component) *protocol.Render {
	return &protocol.Render{Root: &protocol.Component{Key: key, Type: "box", Children: children}, Title: "Page"}
}

func cmd(t *testing.T, c protocol.Command) protocol.CommandEnvelope {
	t.Helper()
	env, err := protocol.EncodeCommand(c)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func (fx *fixture) start(t *testing.T) {
	t.Helper()
	if err := fx.s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	fx.tr.play(protocol.Frame{RequestID: "init", Render: page("root"), Final: true})
	if st := fx.s.State(); st != Streaming {
		t.Fatalf("state = %s, want streaming", st)
	}
}

func TestSession_InitSendsEnvironment(t *testing.T) {
	fx := newFixture(t)
	if fx.s.State() != Uninitialized {
		t.Fatal("new session should be uninitialized")
	}
	if err := fx.s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fx.s.State() != Initializing {
		t.Errorf("state = %s", fx.s.State())
	}
	req := fx.tr.init
	if req.Viewport != (protocol.ViewportSize{Width: 100, Height: 30}) {
		t.Errorf("viewport = %+v", req.Viewport)
	}
	if req.Theme.Mode != protocol.ThemeModeDark {
		t.Errorf("theme = %+v", req.Theme)
	}
	if len(req.QueryParams) != 1 || req.QueryParams[0].Key != "tab" {
		t.Errorf("query params = %+v", req.QueryParams)
	}
	if !fx.s.IsBusy() {
		t.Error("busy while the init round trip is outstanding")
	}

	fx.tr.play(protocol.Frame{RequestID: "init", Render: page("root"), Final: true})
	if fx.s.State() != Streaming || fx.s.IsBusy() {
		t.Errorf("state = %s busy = %v after first render", fx.s.State(), fx.s.IsBusy())
	}
	if fx.doc.RootKey() != "root" || fx.s.Title() != "Page" {
		t.Errorf("root key %q title %q", fx.doc.RootKey(), fx.s.Title())
	}
}

func TestSession_DoubleInit(t *testing.T) {
	fx := newFixture(t)
	fx.start(t)
	if err := fx.s.Init(context.Background()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init = %v", err)
	}
}

func TestSession_InitFailureFaults(t *testing.T) {
	fx := newFixture(t)
	fx.tr.initErr = errors.New("connection refused")
	if err := fx.s.Init(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if fx.s.State() != Faulted {
		t.Errorf("state = %s", fx.s.State())
	}
	if r := fx.errs.Current(); r == nil || r.Origin != errsurface.OriginRuntime {
		t.Errorf("report = %+v", r)
	}
}

func TestSession_InitFailureReportedOnce(t *testing.T) {
	fx := newFixture(t)
	fx.tr.initErr = errors.New("write: broken pipe")
	fx.tr.faultOnInit = true
	if err := fx.s.Init(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if fx.s.State() != Faulted {
		t.Errorf("state = %s", fx.s.State())
	}
	if n := fx.errs.Opened(); n != 1 {
		t.Errorf("Opened() = %d, want 1", n)
	}
}

func TestSession_BusyTracksRoundTrips(t *testing.T) {
	fx := newFixture(t)
	fx.start(t)
	ctx := context.Background()

	t.Run("zero commands", func(t *testing.T) {
		if err := fx.s.Dispatch(ctx, protocol.EventEnvelope{Event: protocol.Navigation{}}); err != nil {
			t.Fatal(err)
		}
		if !fx.s.IsBusy() {
			t.Fatal("busy after dispatch")
		}
		fx.tr.play(protocol.Frame{RequestID: "e1", Final: true})
		if fx.s.IsBusy() {
			t.Error("still busy after an empty final frame")
		}
	})

	t.Run("several frames", func(t *testing.T) {
		if err := fx.s.Dispatch(ctx, protocol.EventEnvelope{Event: protocol.Interaction{HandlerID: "h"}}); err != nil {
			t.Fatal(err)
		}
		fx.tr.play(
			protocol.Frame{RequestID: "e2", Render: page("root")},
			protocol.Frame{RequestID: "e2", Commands: []protocol.CommandEnvelope{cmd(t, protocol.SetPageTitle{Title: "A"})}},
		)
		if !fx.s.IsBusy() {
			t.Error("busy must hold until the final frame")
		}
		fx.tr.play(protocol.Frame{RequestID: "e2", Commands: []protocol.CommandEnvelope{cmd(t, protocol.SetPageTitle{Title: "B"})}, Final: true})
		if fx.s.IsBusy() {
			t.Error("not cleared after the final frame")
		}
		if fx.s.Title() != "B" {
			t.Errorf("Title() = %q", fx.s.Title())
		}
	})
}

func TestSession_FocusMissingKeyIsNotAnError(t *testing.T) {
	fx := newFixture(t)
	fx.start(t)
	fx.tr.play(protocol.Frame{RequestID: "e", Commands: []protocol.CommandEnvelope{
		cmd(t, protocol.FocusComponent{Key: "missing-key"}),
	}, Final: true})

	if fx.s.State() != Streaming {
		t.Errorf("state = %s", fx.s.State())
	}
	if fx.errs.Opened() != 0 {
		t.Errorf("unexpected error report: %+v", fx.errs.Current())
	}
}

func TestSession_UnknownCommandAbortsFrame(t *testing.T) {
	fx := newFixture(t)
	fx.start(t)
	fx.tr.play(protocol.Frame{RequestID: "e", Commands: []protocol.CommandEnvelope{
		cmd(t, protocol.SetPageTitle{Title: "before"}),
		{Type: "open_dialog", Data: json.RawMessage(`{}`)},
		cmd(t, protocol.SetPageTitle{Title: "after"}),
	}, Final: true})

	if got := fx.s.Title(); got != "before" {
		t.Errorf("Title() = %q; commands after the unknown one must not run", got)
	}
	r := fx.errs.Current()
	if r == nil || r.Origin != errsurface.OriginRuntime {
		t.Fatalf("report = %+v", r)
	}
	if fx.s.State() != Streaming {
		t.Errorf("state = %s", fx.s.State())
	}
}

func TestSession_ScrollRunsAfterRender(t *testing.T) {
	fx := newFixture(t)
	fx.start(t)

	// The target only exists in the render carried by the same frame.
	fx.tr.play(protocol.Frame{
		RequestID: "e",
		Render:    page("root", &protocol.Component{Type: "box", Children: []*protocol.Component{{Key: "target", Type: "text"}}}),
		Commands:  []protocol.CommandEnvelope{cmd(t, protocol.ScrollIntoView{Key: "target"})},
		Final:     true,
	})

	got := fx.doc.ScrollTarget()
	markers := fx.doc.QueryByKey("target")
	if len(markers) != 1 || got != markers[0].Parent() {
		t.Errorf("ScrollTarget() = %+v, want the marker's parent", got)
	}
	if _, ok := fx.s.queue.Pending(); ok {
		t.Error("queue should be empty after the frame")
	}
}

func TestSession_ServerErrors(t *testing.T) {
	t.Run("during init faults", func(t *testing.T) {
		fx := newFixture(t)
		if err := fx.s.Init(context.Background()); err != nil {
			t.Fatal(err)
		}
		fx.tr.play(protocol.Frame{RequestID: "init", Error: &protocol.ServerError{Exception: "boom"}, Final: true})
		if fx.s.State() != Faulted {
			t.Errorf("state = %s", fx.s.State())
		}
		if r := fx.errs.Current(); r == nil || r.Message != "boom" || r.Origin != errsurface.OriginServer {
			t.Errorf("report = %+v", r)
		}
	})

	t.Run("during init skips the frame's commands", func(t *testing.T) {
		fx := newFixture(t)
		if err := fx.s.Init(context.Background()); err != nil {
			t.Fatal(err)
		}
		fx.tr.play(protocol.Frame{
			RequestID: "init",
			Error:     &protocol.ServerError{Exception: "boom"},
			Commands: []protocol.CommandEnvelope{
				cmd(t, protocol.SetPageTitle{Title: "after-fault"}),
				cmd(t, protocol.UpdateQueryParam{Param: protocol.QueryParam{Key: "x", Values: []string{"1"}}}),
			},
			Final: true,
		})
		if fx.s.State() != Faulted {
			t.Errorf("state = %s", fx.s.State())
		}
		if got := fx.s.Title(); got != "" {
			t.Errorf("Title() = %q, commands ran on a faulted session", got)
		}
		if got := fx.loc.String(); got != "http://localhost:32123/?tab=1" {
			t.Errorf("location = %q", got)
		}
	})

	t.Run("while streaming continues", func(t *testing.T) {
		fx := newFixture(t)
		fx.start(t)
		fx.tr.play(protocol.Frame{RequestID: "e", Error: &protocol.ServerError{Exception: "handler failed", Traceback: "tb"}, Final: true})
		if fx.s.State() != Streaming {
			t.Errorf("state = %s", fx.s.State())
		}
		if r := fx.errs.Current(); r == nil || r.Detail != "tb" {
			t.Errorf("report = %+v", r)
		}
	})
}

func TestSession_FaultStopsDispatch(t *testing.T) {
	fx := newFixture(t)
	fx.start(t)
	fx.tr.h.OnFault(channel.ErrServerClosed)

	if fx.s.State() != Faulted {
		t.Errorf("state = %s", fx.s.State())
	}
	if fx.errs.Current() == nil {
		t.Error("fault should be surfaced")
	}
	err := fx.s.Dispatch(context.Background(), protocol.EventEnvelope{Event: protocol.Navigation{}})
	if !errors.Is(err, ErrInactive) {
		t.Errorf("Dispatch = %v, want ErrInactive", err)
	}
	if err := fx.s.HotReload(context.Background()); !errors.Is(err, ErrInactive) {
		t.Errorf("HotReload = %v, want ErrInactive", err)
	}
}

func TestSession_ModulesImportedOnceWithCacheKey(t *testing.T) {
	fx := newFixture(t)
	fx.loader.failFor["/broken.js?v=build7"] = true
	fx.start(t)

	r := page("root")
	r.JSModules = []string{"/a.js", "/b.js?x=1", "/broken.js"}
	fx.tr.play(protocol.Frame{RequestID: "e1", Render: r, Final: true})
	fx.tr.play(protocol.Frame{RequestID: "e2", Render: r, Final: true})

	counts := map[string]int{}
	for _, u := range fx.loader.urls {
		counts[u]++
	}
	if counts["/a.js?v=build7"] != 1 || counts["/b.js?x=1&v=build7"] != 1 {
		t.Errorf("imports = %v", fx.loader.urls)
	}
	if counts["/broken.js?v=build7"] != 2 {
		t.Errorf("failed module should be retried on the next render: %v", fx.loader.urls)
	}
	if fx.errs.Current() == nil {
		t.Error("module failure should be reported")
	}
	if fx.doc.RootKey() != "root" {
		t.Error("render must still be applied")
	}
}

func TestSession_CloseAndSnapshot(t *testing.T) {
	fx := newFixture(t)
	fx.start(t)
	fx.tr.play(protocol.Frame{RequestID: "e", Commands: []protocol.CommandEnvelope{cmd(t, protocol.SetPageTitle{Title: "T"})}, Final: true})

	snap := fx.s.Snapshot()
	if snap.State != "streaming" || snap.Busy || snap.Title != "T" || snap.RootKey != "root" {
		t.Errorf("Snapshot() = %+v", snap)
	}

	if err := fx.s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := fx.s.Close(); err != nil {
		t.Fatal(err)
	}
	if fx.s.State() != Closed || fx.tr.closed != 1 {
		t.Errorf("state %s, transport closed %d times", fx.s.State(), fx.tr.closed)
	}

	// Late frames are ignored.
	fx.tr.play(protocol.Frame{RequestID: "late", Render: page("other")})
	if fx.doc.RootKey() != "root" {
		t.Error("frame applied after Close")
	}
}

func TestSession_HotReload(t *testing.T) {
	fx := newFixture(t)
	fx.start(t)
	if err := fx.s.HotReload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fx.tr.hotReloads != 1 || !fx.s.IsBusy() {
		t.Errorf("hot reloads %d busy %v", fx.tr.hotReloads, fx.s.IsBusy())
	}
}

func TestSession_OnChangeFires(t *testing.T) {
	fx := newFixture(t)
	n := 0
	fx.s.OnChange(func() { n++ })
	fx.start(t)
	if n == 0 {
		t.Error("listeners not notified")
	}
}
