package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wethinkt/go-uishell/internal/channel"
	"github.com/wethinkt/go-uishell/internal/config"
	"github.com/wethinkt/go-uishell/internal/dispatch"
	"github.com/wethinkt/go-uishell/internal/dom"
	"github.com/wethinkt/go-uishell/internal/environ"
	"github.com/wethinkt/go-uishell/internal/errsurface"
	"github.com/wethinkt/go-uishell/internal/experiment"
	"github.com/wethinkt/go-uishell/internal/hotreload"
	"github.com/wethinkt/go-uishell/internal/location"
	"github.com/wethinkt/go-uishell/internal/modules"
	"github.com/wethinkt/go-uishell/internal/protocol"
	"github.com/wethinkt/go-uishell/internal/server"
	"github.com/wethinkt/go-uishell/internal/session"
	"github.com/wethinkt/go-uishell/internal/telemetry"
	"github.com/wethinkt/go-uishell/internal/theme"
	"github.com/wethinkt/go-uishell/internal/tuilog"
	"github.com/wethinkt/go-uishell/internal/version"
)

// watchExtensions are the source files whose edits trigger a reload.
var watchExtensions = []string{".py", ".js", ".mjs", ".ts", ".css", ".html"}

// clientRuntime is one connected client with everything wired together.
type clientRuntime struct {
	cfg        config.Config
	location   *location.Location
	theme      *theme.Service
	viewport   *environ.Viewport
	document   *dom.Document
	errors     *errsurface.Surface
	transport  *channel.WS
	session    *session.Session
	dispatcher *dispatch.Dispatcher

	shutdownTracing func(context.Context) error
	background      *errgroup.Group
	cancel          context.CancelFunc
}

// newClientRuntime builds the runtime for c. The session is not started.
func newClientRuntime(ctx context.Context, c config.Config, vp *environ.Viewport) (*clientRuntime, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	loc, err := location.New(c.PageURL())
	if err != nil {
		return nil, fmt.Errorf("start url: %w", err)
	}
	loader, err := modules.NewLoader(c.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("module loader: %w", err)
	}

	shutdown, err := telemetry.Setup(ctx, "uishell", version.Get())
	if err != nil {
		// Tracing is optional; keep going with the no-op tracer.
		tuilog.Log.Warn("tracing disabled", "error", err)
	}

	rt := &clientRuntime{
		cfg:             c,
		location:        loc,
		theme:           theme.NewService(protocol.ThemeSettings{Mode: c.ThemeMode(), Density: c.Density}),
		viewport:        vp,
		document:        dom.NewDocument(),
		errors:          errsurface.New(),
		transport:       channel.NewWS(channel.WSOptions{URL: c.ServerURL, Token: c.Token}),
		shutdownTracing: shutdown,
	}

	collector := &environ.Collector{Viewport: vp, Theme: rt.theme, Location: loc}
	rt.session = session.New(session.Options{
		Transport:         rt.transport,
		Document:          rt.document,
		Collector:         collector,
		Errors:            rt.errors,
		Router:            loc,
		Navigator:         location.NewSystemBrowser(),
		Theme:             rt.theme,
		Loader:            loader,
		Experiment:        &experiment.Service{WebComponentsCacheKey: c.CacheKey},
		ModuleConcurrency: c.ModuleConcurrency,
	})
	rt.dispatcher = dispatch.New(collector, rt.session.Dispatch, dispatch.Options{
		ResizeDebounce: c.ResizeDebounceDuration(),
	})
	loc.OnPopstate(func() {
		if err := rt.dispatcher.Popstate(); err != nil {
			tuilog.Log.Debug("popstate not dispatched", "error", err)
		}
	})
	return rt, nil
}

// startBackground launches the debug server and hot reload sources, and
// records this process in the instances file.
func (rt *clientRuntime) startBackground(ctx context.Context, kind config.InstanceType) {
	ctx, rt.cancel = context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	rt.background = g

	debugAddr := ""
	if rt.cfg.MetricsAddr != "" {
		srv := server.New(rt.session, rt.cfg.MetricsAddr)
		ready := make(chan string, 1)
		g.Go(func() error {
			if err := srv.ListenAndServe(ctx, ready); err != nil {
				tuilog.Log.Error("debug server failed", "error", err)
			}
			return nil
		})
		select {
		case debugAddr = <-ready:
		case <-time.After(2 * time.Second):
			tuilog.Log.Warn("debug server did not start in time", "addr", rt.cfg.MetricsAddr)
		}
	}

	if rt.cfg.HotReload.Poll {
		if poller, err := hotreload.NewPoller(rt.cfg.ServerURL); err != nil {
			tuilog.Log.Warn("hot reload polling disabled", "error", err)
		} else {
			g.Go(func() error {
				if err := poller.Run(ctx, rt.session.HotReload); err != nil && !errors.Is(err, context.Canceled) {
					tuilog.Log.Warn("hot reload polling stopped", "error", err)
				}
				return nil
			})
		}
	}

	if dirs := rt.cfg.HotReload.WatchDirs; len(dirs) > 0 {
		rt.startWatcher(ctx, g, dirs)
	}

	if err := config.RegisterInstance(config.Instance{
		Type:      kind,
		PID:       os.Getpid(),
		ServerURL: rt.cfg.ServerURL,
		DebugAddr: debugAddr,
		StartedAt: time.Now(),
	}); err != nil {
		tuilog.Log.Warn("register instance", "error", err)
	}
}

func (rt *clientRuntime) startWatcher(ctx context.Context, g *errgroup.Group, dirs []string) {
	w, err := hotreload.NewFileWatcher(dirs, watchExtensions, rt.cfg.HotReload.DebounceDuration())
	if err != nil {
		tuilog.Log.Warn("file watcher disabled", "error", err)
		return
	}
	changes, err := w.Start(ctx)
	if err != nil {
		tuilog.Log.Warn("file watcher disabled", "error", err)
		return
	}
	g.Go(func() error {
		defer w.Stop()
		for ch := range changes {
			tuilog.Log.Info("source changed, reloading", "files", len(ch.Paths))
			if err := rt.session.HotReload(ctx); err != nil {
				tuilog.Log.Warn("hot reload failed", "error", err)
			}
		}
		return nil
	})
}

// Close tears the runtime down in dependency order.
func (rt *clientRuntime) Close() {
	rt.dispatcher.Close()
	if err := rt.session.Close(); err != nil {
		tuilog.Log.Debug("session close", "error", err)
	}
	if rt.cancel != nil {
		rt.cancel()
		_ = rt.background.Wait()
		if err := config.UnregisterInstance(os.Getpid()); err != nil {
			tuilog.Log.Debug("unregister instance", "error", err)
		}
	}
	if rt.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.shutdownTracing(ctx); err != nil {
			tuilog.Log.Warn("tracing shutdown", "error", err)
		}
	}
}
