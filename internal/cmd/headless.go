package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-uishell/internal/config"
	"github.com/wethinkt/go-uishell/internal/dom"
	"github.com/wethinkt/go-uishell/internal/environ"
	"github.com/wethinkt/go-uishell/internal/errsurface"
	"github.com/wethinkt/go-uishell/internal/session"
	"github.com/wethinkt/go-uishell/internal/tui"
	"github.com/wethinkt/go-uishell/internal/tuilog"
)

var (
	headlessWidth  int
	headlessHeight int
)

var headlessCmd = &cobra.Command{
	Use:   "headless",
	Short: "Connect without a terminal UI and print each render",
	Long: `Connect to the UI server and print every new render as plain text
(or, with --json, the session snapshot as one JSON object per line).
Error reports go to stderr. Exits on interrupt or when the session ends.`,
	RunE: runHeadless,
}

func runHeadless(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newClientRuntime(ctx, cfg, environ.NewViewport(headlessWidth, headlessHeight))
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.startBackground(ctx, config.InstanceHeadless)

	p := &headlessPrinter{
		out:   cmd.OutOrStdout(),
		width: headlessWidth,
		json:  outputJSON,
		ended: make(chan session.State, 1),
	}
	rt.session.OnChange(func() { p.sessionChanged(rt.session) })
	rt.errors.OnChange(func(r *errsurface.Report) { p.reportChanged(cmd.ErrOrStderr(), r) })

	if err := rt.session.Init(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case st := <-p.ended:
		if st == session.Faulted {
			return fmt.Errorf("session ended: %s", st)
		}
		return nil
	}
}

// headlessSession is what the printer reads from a session.
type headlessSession interface {
	State() session.State
	Title() string
	Document() *dom.Document
	Snapshot() session.Snapshot
}

// headlessPrinter writes a session's renders to out.
type headlessPrinter struct {
	out   io.Writer
	width int
	json  bool
	ended chan session.State

	mu      sync.Mutex
	version uint64
	done    bool
}

func (p *headlessPrinter) sessionChanged(s headlessSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}

	st := s.State()
	if st == session.Closed || st == session.Faulted {
		p.done = true
		p.ended <- st
		return
	}

	doc := s.Document()
	v := doc.Version()
	if v == p.version {
		return
	}
	p.version = v

	if p.json {
		if err := json.NewEncoder(p.out).Encode(s.Snapshot()); err != nil {
			tuilog.Log.Warn("write snapshot", "error", err)
		}
		return
	}
	fmt.Fprintf(p.out, "=== %s (render %d) ===\n", s.Title(), v)
	fmt.Fprintln(p.out, tui.RenderPlain(doc, p.width))
}

func (p *headlessPrinter) reportChanged(w io.Writer, r *errsurface.Report) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "%s error: %s\n", r.Origin, r.Message)
	if r.Detail != "" {
		fmt.Fprintln(w, r.Detail)
	}
}

var _ headlessSession = (*session.Session)(nil)
