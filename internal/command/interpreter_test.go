package command

import (
	"context"
	"errors"
	"testing"

	"github.com/wethinkt/go-uishell/internal/deferred"
	"github.com/wethinkt/go-uishell/internal/dom"
	"github.com/wethinkt/go-uishell/internal/location"
	"github.com/wethinkt/go-uishell/internal/protocol"
	"github.com/wethinkt/go-uishell/internal/theme"
)

type fakeNavigator struct {
	opened  []string
	newTabs []string
	err     error
}

func (f *fakeNavigator) Open(u string) error       { f.opened = append(f.opened, u); return f.err }
func (f *fakeNavigator) OpenNewTab(u string) error { f.newTabs = append(f.newTabs, u); return f.err }

type fakeTitles struct {
	title  string
	resets int
}

func (f *fakeTitles) SetOverriddenTitle(t string) { f.title = t }
func (f *fakeTitles) ResetOverriddenTitle()       { f.title = ""; f.resets++ }

type fakeReporter struct {
	failures map[string]int
}

func (f *fakeReporter) ResolutionFailed(effect, key string, matches int) {
	if f.failures == nil {
		f.failures = map[string]int{}
	}
	f.failures[key] = matches
}

type harness struct {
	in       *Interpreter
	loc      *location.Location
	nav      *fakeNavigator
	titles   *fakeTitles
	doc      *dom.Document
	theme    *theme.Service
	queue    *deferred.Queue
	reporter *fakeReporter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loc, err := location.New("http://localhost:32123/home?keep=1")
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		loc:      loc,
		nav:      &fakeNavigator{},
		titles:   &fakeTitles{},
		doc:      dom.NewDocument(),
		theme:    theme.NewService(protocol.ThemeSettings{Mode: protocol.ThemeModeLight}),
		queue:    deferred.NewQueue(nil),
		reporter: &fakeReporter{},
	}
	h.in = New(Deps{
		Router:    h.loc,
		Navigator: h.nav,
		Titles:    h.titles,
		Document:  h.doc,
		Theme:     h.theme,
		Deferred:  h.queue,
		Reporter:  h.reporter,
	})
	return h
}

func (h *harness) exec(t *testing.T, c protocol.Command) {
	t.Helper()
	if err := h.in.Execute(context.Background(), c); err != nil {
		t.Fatalf("Execute(%T): %v", c, err)
	}
}

func TestExecute_NavigateRelativeRoutesAndClearsTitle(t *testing.T) {
	h := newHarness(t)
	h.exec(t, protocol.SetPageTitle{Title: "Custom"})
	h.exec(t, protocol.Navigate{URL: "/about"})

	if got := h.loc.Path(); got != "/about" {
		t.Errorf("Path() = %q, want /about", got)
	}
	if h.titles.title != "" || h.titles.resets != 1 {
		t.Errorf("title override should be cleared once, got %q (%d resets)", h.titles.title, h.titles.resets)
	}
	if len(h.nav.opened) != 0 {
		t.Errorf("relative navigation must not leave the app: %v", h.nav.opened)
	}
}

func TestExecute_NavigateAbsoluteIsFullNavigation(t *testing.T) {
	h := newHarness(t)
	h.exec(t, protocol.SetPageTitle{Title: "Custom"})
	h.exec(t, protocol.Navigate{URL: "https://example.com"})

	if len(h.nav.opened) != 1 || h.nav.opened[0] != "https://example.com" {
		t.Errorf("opened = %v", h.nav.opened)
	}
	if h.loc.Len() != 1 || h.loc.Path() != "/home?keep=1" {
		t.Errorf("router must be bypassed, location = %q", h.loc.Path())
	}
	if h.titles.resets != 0 || h.titles.title != "Custom" {
		t.Error("full navigation should not touch the title override")
	}
}

func TestExecute_NavigateNewTabResolvesRelative(t *testing.T) {
	h := newHarness(t)
	h.exec(t, protocol.Navigate{URL: "/about?x=1", OpenInNewTab: true})
	h.exec(t, protocol.Navigate{URL: "https://example.com", OpenInNewTab: true})

	want := []string{"http://localhost:32123/about?x=1", "https://example.com"}
	if len(h.nav.newTabs) != 2 || h.nav.newTabs[0] != want[0] || h.nav.newTabs[1] != want[1] {
		t.Errorf("newTabs = %v, want %v", h.nav.newTabs, want)
	}
	if h.loc.Path() != "/home?keep=1" {
		t.Error("new tab must leave the current location alone")
	}
}

func TestExecute_NavigatorErrorPropagates(t *testing.T) {
	h := newHarness(t)
	h.nav.err = errors.New("no browser")
	err := h.in.Execute(context.Background(), protocol.Navigate{URL: "https://example.com"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, protocol.ErrContractViolation) || errors.Is(err, protocol.ErrUnhandledCommand) {
		t.Errorf("navigator failure is not a protocol error: %v", err)
	}
}

func TestExecute_ScrollIsDeferred(t *testing.T) {
	h := newHarness(t)
	h.doc.Render(&protocol.Component{Type: "box", Children: []*protocol.Component{{Key: "k", Type: "text"}}})

	scrolled := 0
	h.doc.OnScroll(func(*dom.Node) { scrolled++ })

	h.exec(t, protocol.ScrollIntoView{Key: "k"})
	if scrolled != 0 {
		t.Fatal("scroll must not happen at command time")
	}
	if key, ok := h.queue.Pending(); !ok || key != "k" {
		t.Errorf("Pending() = %q, %v", key, ok)
	}
}

func TestExecute_FocusComponent(t *testing.T) {
	h := newHarness(t)
	h.doc.Render(&protocol.Component{Type: "box", Children: []*protocol.Component{
		{Key: "field", Type: "box", Children: []*protocol.Component{
			{Type: "text", Text: "label"},
			{Type: "input"},
		}},
		{Key: "static", Type: "text", Text: "no focus here"},
		{Key: "dup", Type: "button", Text: "first"},
		{Key: "dup", Type: "button", Text: "second"},
	}})

	t.Run("single match focuses next sibling descendant", func(t *testing.T) {
		h.exec(t, protocol.FocusComponent{Key: "field"})
		f := h.doc.Focused()
		if f == nil || f.Tag != "input" {
			t.Errorf("Focused() = %+v", f)
		}
	})

	t.Run("missing key is a reported no-op", func(t *testing.T) {
		before := h.doc.Focused()
		h.exec(t, protocol.FocusComponent{Key: "missing-key"})
		if h.doc.Focused() != before {
			t.Error("focus changed for a missing key")
		}
		if m, ok := h.reporter.failures["missing-key"]; !ok || m != 0 {
			t.Errorf("expected a zero-match report, got %v", h.reporter.failures)
		}
	})

	t.Run("nothing focusable is a no-op", func(t *testing.T) {
		before := h.doc.Focused()
		h.exec(t, protocol.FocusComponent{Key: "static"})
		if h.doc.Focused() != before {
			t.Error("focus changed for a component with no focusable element")
		}
	})

	t.Run("ambiguous key uses first match", func(t *testing.T) {
		// A button is a leaf, so its sibling-descendant search finds nothing;
		// wrap in boxes to exercise the first-match rule.
		h.doc.Render(&protocol.Component{Type: "box", Children: []*protocol.Component{
			{Key: "dup", Type: "box", Children: []*protocol.Component{{Type: "button", Text: "first"}}},
			{Key: "dup", Type: "box", Children: []*protocol.Component{{Type: "button", Text: "second"}}},
		}})
		h.exec(t, protocol.FocusComponent{Key: "dup"})
		f := h.doc.Focused()
		if f == nil || f.Text != "first" {
			t.Errorf("Focused() = %+v, want the first button", f)
		}
		if h.reporter.failures["dup"] != 2 {
			t.Errorf("expected ambiguity report with 2 matches, got %v", h.reporter.failures)
		}
	})
}

func TestExecute_Theme(t *testing.T) {
	h := newHarness(t)
	density := -3
	h.exec(t, protocol.SetThemeMode{Mode: protocol.ThemeModeDark})
	h.exec(t, protocol.SetThemeDensity{Density: &density})

	got := h.theme.Settings()
	if got.Mode != protocol.ThemeModeDark || got.Density != -3 {
		t.Errorf("Settings() = %+v", got)
	}
}

func TestExecute_ContractViolations(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		cmd  protocol.Command
	}{
		{"theme mode unset", protocol.SetThemeMode{}},
		{"density unset", protocol.SetThemeDensity{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.in.Execute(context.Background(), tt.cmd)
			if !errors.Is(err, protocol.ErrContractViolation) {
				t.Errorf("got %v, want ErrContractViolation", err)
			}
		})
	}
	if h.theme.Settings().Mode != protocol.ThemeModeLight {
		t.Error("theme changed despite the violation")
	}
}

func TestExecute_UnhandledCommand(t *testing.T) {
	h := newHarness(t)
	for _, c := range []protocol.Command{nil, protocol.UnknownCommand{Type: "open_dialog"}, &protocol.Navigate{URL: "/x"}} {
		err := h.in.Execute(context.Background(), c)
		if !errors.Is(err, protocol.ErrUnhandledCommand) {
			t.Errorf("Execute(%#v) = %v, want ErrUnhandledCommand", c, err)
		}
	}
	if h.loc.Len() != 1 {
		t.Error("unhandled command must not have side effects")
	}
}

func TestExecute_UpdateQueryParam(t *testing.T) {
	h := newHarness(t)
	h.exec(t, protocol.UpdateQueryParam{Param: protocol.QueryParam{Key: "q", Values: []string{"b", "a"}}})

	if got := h.loc.Path(); got != "/home?keep=1&q=b&q=a" {
		t.Errorf("Path() = %q", got)
	}
	if h.loc.Len() != 1 {
		t.Errorf("query update must replace, not push; history length %d", h.loc.Len())
	}
}

func TestExecute_UpdateQueryParamEmptyKey(t *testing.T) {
	h := newHarness(t)
	h.exec(t, protocol.UpdateQueryParam{Param: protocol.QueryParam{Values: []string{"v"}}})

	if got := h.loc.Path(); got != "/home?keep=1&=v" {
		t.Errorf("Path() = %q", got)
	}
}

// Each variant touches exactly one collaborator.
func TestExecute_ExactlyOneBranch(t *testing.T) {
	density := 1
	cmds := []protocol.Command{
		protocol.Navigate{URL: "https://example.com"},
		protocol.ScrollIntoView{Key: "k"},
		protocol.SetPageTitle{Title: "T"},
		protocol.SetThemeMode{Mode: protocol.ThemeModeDark},
		protocol.SetThemeDensity{Density: &density},
		protocol.UpdateQueryParam{Param: protocol.QueryParam{Key: "q", Values: []string{"1"}}},
	}
	for _, c := range cmds {
		t.Run(c.CommandType(), func(t *testing.T) {
			h := newHarness(t)
			h.exec(t, c)

			touched := 0
			if len(h.nav.opened)+len(h.nav.newTabs) > 0 {
				touched++
			}
			if _, ok := h.queue.Pending(); ok {
				touched++
			}
			if h.titles.title != "" {
				touched++
			}
			if s := h.theme.Settings(); s.Mode != protocol.ThemeModeLight || s.Density != 0 {
				touched++
			}
			if h.loc.Path() != "/home?keep=1" {
				touched++
			}
			if touched != 1 {
				t.Errorf("%s touched %d collaborators", c.CommandType(), touched)
			}
		})
	}
}
