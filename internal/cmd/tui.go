package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wethinkt/go-uishell/internal/config"
	"github.com/wethinkt/go-uishell/internal/environ"
	"github.com/wethinkt/go-uishell/internal/hotkey"
	"github.com/wethinkt/go-uishell/internal/tui"
	"github.com/wethinkt/go-uishell/internal/tuilog"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal client",
	Long: `Connect to the UI server and render its component tree in the terminal.

Keys:
  tab / shift+tab   move focus
  enter             activate the focused element
  alt+← / alt+→     back / forward
  ctrl+shift+r, f5  hot reload (cmd+shift+r on macOS)
  esc               dismiss an error report
  q, ctrl+c         quit`,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	tuilog.Log.Info("Starting TUI", "server", cfg.ServerURL)
	ctx := cmd.Context()

	rt, err := newClientRuntime(ctx, cfg, environ.TerminalViewport())
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.startBackground(ctx, config.InstanceTUI)

	err = tui.Run(ctx, tui.Options{
		Session:  rt.session,
		Events:   rt.dispatcher,
		History:  rt.location,
		Theme:    rt.theme,
		Viewport: rt.viewport,
		Platform: hotkey.Detect(),
	})

	tuilog.Log.Info("TUI exited", "error", err, "state", rt.session.State())
	return err
}
