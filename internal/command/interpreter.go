// Package command executes server-issued commands against the client's
// collaborators.
package command

import (
	"context"
	"fmt"
	"net/url"

	"github.com/wethinkt/go-uishell/internal/dom"
	"github.com/wethinkt/go-uishell/internal/location"
	"github.com/wethinkt/go-uishell/internal/protocol"
	"github.com/wethinkt/go-uishell/internal/tuilog"
)

// Router performs client-side routing.
type Router interface {
	NavigateByURL(ref string) error
	Resolve(ref string) (*url.URL, error)
	ReplaceQueryParam(key string, values []string)
}

// Navigator performs navigations that leave the app.
type Navigator interface {
	Open(rawURL string) error
	OpenNewTab(rawURL string) error
}

// Titles holds the page title override.
type Titles interface {
	SetOverriddenTitle(title string)
	ResetOverriddenTitle()
}

// Document is the rendered document.
type Document interface {
	QueryByKey(key string) []*dom.Node
	Focus(n *dom.Node) error
}

// Theme is the theme service.
type Theme interface {
	SetMode(mode protocol.ThemeMode)
	SetDensity(density int)
}

// Deferred receives scroll keys to run after the render settles.
type Deferred interface {
	Set(key string)
}

// Reporter receives key resolution failures. Optional.
type Reporter interface {
	ResolutionFailed(effect, key string, matches int)
}

// Deps are the interpreter's collaborators. Reporter may be nil.
type Deps struct {
	Router    Router
	Navigator Navigator
	Titles    Titles
	Document  Document
	Theme     Theme
	Deferred  Deferred
	Reporter  Reporter
}

// Interpreter maps each command variant to its effect.
type Interpreter struct {
	deps Deps
}

// New returns an interpreter over deps.
func New(deps Deps) *Interpreter {
	return &Interpreter{deps: deps}
}

// Execute runs one command. Unknown variants and missing required fields
// return errors wrapping protocol.ErrUnhandledCommand and
// protocol.ErrContractViolation; callers must not swallow them. Key
// resolution failures are logged and reported but are not errors.
func (in *Interpreter) Execute(ctx context.Context, cmd protocol.Command) error {
	if cmd == nil {
		return fmt.Errorf("%w: no command variant set", protocol.ErrUnhandledCommand)
	}

	var err error
	switch c := cmd.(type) {
	case protocol.Navigate:
		err = in.navigate(c)
	case protocol.ScrollIntoView:
		in.deps.Deferred.Set(c.Key)
	case protocol.SetPageTitle:
		in.deps.Titles.SetOverriddenTitle(c.Title)
	case protocol.FocusComponent:
		in.focus(c.Key)
	case protocol.SetThemeMode:
		if c.Mode == protocol.ThemeModeUnspecified {
			return fmt.Errorf("%w: theme mode undefined in set_theme_mode command", protocol.ErrContractViolation)
		}
		in.deps.Theme.SetMode(c.Mode)
	case protocol.SetThemeDensity:
		if c.Density == nil {
			return fmt.Errorf("%w: density undefined in set_theme_density command", protocol.ErrContractViolation)
		}
		in.deps.Theme.SetDensity(*c.Density)
	case protocol.UpdateQueryParam:
		// An empty key is a legal query pair ("=v").
		in.deps.Router.ReplaceQueryParam(c.Param.Key, c.Param.Values)
	default:
		return fmt.Errorf("%w: %s", protocol.ErrUnhandledCommand, cmd.CommandType())
	}

	if err != nil {
		return err
	}
	commandsTotal.WithLabelValues(cmd.CommandType()).Inc()
	tuilog.Log.Debug("Command executed", "type", cmd.CommandType())
	return nil
}

func (in *Interpreter) navigate(c protocol.Navigate) error {
	if c.OpenInNewTab {
		target := c.URL
		if !location.IsAbsoluteURL(target) {
			u, err := in.deps.Router.Resolve(target)
			if err != nil {
				return fmt.Errorf("navigate: %w", err)
			}
			target = u.String()
		}
		if err := in.deps.Navigator.OpenNewTab(target); err != nil {
			return fmt.Errorf("navigate in new tab: %w", err)
		}
		return nil
	}

	if location.IsAbsoluteURL(c.URL) {
		if err := in.deps.Navigator.Open(c.URL); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		return nil
	}

	if err := in.deps.Router.NavigateByURL(c.URL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	in.deps.Titles.ResetOverriddenTitle()
	return nil
}

// focus implements the renderer contract: the keyed element is a marker
// and the focus target lives in its next sibling.
func (in *Interpreter) focus(key string) {
	targets := in.deps.Document.QueryByKey(key)
	if len(targets) == 0 {
		tuilog.Log.Error("Could not focus on component because no component found", "key", key)
		in.report(key, 0)
		return
	}
	if len(targets) > 1 {
		tuilog.Log.Warn("Found multiple components to focus on; use a unique key", "key", key, "matches", len(targets))
		in.report(key, len(targets))
	}

	var target *dom.Node
	if sib := targets[0].NextSibling(); sib != nil {
		target = sib.FirstFocusable()
	}
	if target == nil {
		tuilog.Log.Warn("Component does not have a focusable element", "key", key)
		return
	}
	if err := in.deps.Document.Focus(target); err != nil {
		tuilog.Log.Warn("Focus failed", "key", key, "error", err)
	}
}

func (in *Interpreter) report(key string, matches int) {
	if in.deps.Reporter != nil {
		in.deps.Reporter.ResolutionFailed("focus", key, matches)
	}
}
