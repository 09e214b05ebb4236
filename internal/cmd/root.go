// Package cmd provides the CLI commands for uishell.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-uishell/internal/config"
	"github.com/wethinkt/go-uishell/internal/i18n"
	"github.com/wethinkt/go-uishell/internal/tuilog"
)

// global flags
var (
	profileFile *os.File // held open for profiling
	logPath     string
	verbose     bool
	outputJSON  bool

	// cfg is loaded once in PersistentPreRunE and then adjusted by flags.
	cfg config.Config
)

// flag overrides for config values
var (
	flagServerURL   string
	flagStartURL    string
	flagToken       string
	flagTheme       string
	flagLang        string
	flagLogLevel    string
	flagMetricsAddr string
	flagCacheKey    string
	flagPoll        bool
	flagWatchDirs   []string
)

// rootCmd is the root command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "uishell",
	Short: "Terminal client for server-driven UIs",
	Long: `uishell connects to a server-driven UI over a websocket channel and
renders the component tree the server computes in your terminal.

Running without a subcommand launches the interactive TUI.

Commands:
  tui        Launch the interactive terminal client (default)
  headless   Connect without a terminal UI and print each render
  instances  List running uishell instances
  logs       Show the debug log
  language   Get or set the display language
  version    Print version information

Examples:
  uishell                                        # connect to the configured server
  uishell --server ws://localhost:8000/__ui__    # connect to a specific server
  uishell headless --json                        # print session snapshots as JSON lines`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Start pprof profiling if UISHELL_PROFILE is set
		if profilePath := os.Getenv("UISHELL_PROFILE"); profilePath != "" {
			f, err := os.Create(profilePath)
			if err != nil {
				return fmt.Errorf("create profile file: %w", err)
			}
			profileFile = f

			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				profileFile = nil
				return fmt.Errorf("start CPU profile: %w", err)
			}
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = applyFlagOverrides(cmd, loaded)

		if err := setupLogging(cfg); err != nil {
			return err
		}
		i18n.Init(i18n.ResolveLocale(cfg.Language))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		// Stop CPU profiling
		if profileFile != nil {
			pprof.StopCPUProfile()
			profileFile.Close()
			profileFile = nil
		}
		return tuilog.Log.Close()
	},
	RunE: runTUI,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// applyFlagOverrides returns c with every explicitly set flag applied.
func applyFlagOverrides(cmd *cobra.Command, c config.Config) config.Config {
	flags := cmd.Flags()
	if flags.Changed("server") {
		c.ServerURL = flagServerURL
	}
	if flags.Changed("start-url") {
		c.StartURL = flagStartURL
	}
	if flags.Changed("token") {
		c.Token = flagToken
	}
	if flags.Changed("theme") {
		c.Theme = flagTheme
	}
	if flags.Changed("lang") {
		c.Language = flagLang
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Changed("metrics-addr") {
		c.MetricsAddr = flagMetricsAddr
	}
	if flags.Changed("cache-key") {
		c.CacheKey = flagCacheKey
	}
	if flags.Changed("hot-reload") {
		c.HotReload.Poll = flagPoll
	}
	if flags.Changed("watch") {
		c.HotReload.WatchDirs = flagWatchDirs
	}
	if verbose {
		c.LogLevel = "debug"
	}
	return c
}

// defaultLogPath is where the log goes when --log is not given.
func defaultLogPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs", "uishell.log"), nil
}

func setupLogging(c config.Config) error {
	path := logPath
	if path == "" {
		p, err := defaultLogPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	if err := tuilog.Init(path); err != nil {
		return err
	}

	level, err := tuilog.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	tuilog.Log.SetLevel(level)
	return nil
}

func init() {
	// Global flags on root
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	pf.StringVar(&logPath, "log", "", "write debug log to file (default: ~/.uishell/logs/uishell.log)")
	pf.StringVar(&flagServerURL, "server", "", "websocket endpoint of the UI server")
	pf.StringVar(&flagStartURL, "start-url", "", "initial page URL (default: derived from --server)")
	pf.StringVar(&flagToken, "token", "", "bearer token (default: use UISHELL_TOKEN env var)")
	pf.StringVar(&flagTheme, "theme", "", "theme mode: light, dark or system")
	pf.StringVar(&flagLang, "lang", "", "display language (BCP 47 tag)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagMetricsAddr, "metrics-addr", "", "serve /metrics and /debug on this address")
	pf.StringVar(&flagCacheKey, "cache-key", "", "cache-busting key for web component modules")
	pf.BoolVar(&flagPoll, "hot-reload", false, "long-poll the server for hot reloads")
	pf.StringSliceVar(&flagWatchDirs, "watch", nil, "reload when files under these directories change")

	// Headless flags
	headlessCmd.Flags().BoolVar(&outputJSON, "json", false, "print session snapshots as JSON lines")
	headlessCmd.Flags().IntVar(&headlessWidth, "width", 100, "viewport width reported to the server")
	headlessCmd.Flags().IntVar(&headlessHeight, "height", 40, "viewport height reported to the server")

	// Instances flags
	instancesCmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")

	// Logs flags
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of lines to show")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow the log for new lines")

	// Version flags
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(headlessCmd)
	rootCmd.AddCommand(instancesCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(languageCmd)
	rootCmd.AddCommand(versionCmd)
}
