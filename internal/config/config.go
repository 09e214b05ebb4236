// Package config provides application configuration management for uishell.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/wethinkt/go-uishell/internal/protocol"
)

// Config holds the uishell configuration. Values come from
// ~/.uishell/config.json, then UISHELL_* environment variables, then flags.
type Config struct {
	ServerURL         string          `json:"server_url" env:"UISHELL_SERVER_URL"`                 // websocket endpoint of the UI server
	StartURL          string          `json:"start_url,omitempty" env:"UISHELL_START_URL"`         // initial page; derived from ServerURL when empty
	Token             string          `json:"-" env:"UISHELL_TOKEN"`                               // bearer token, never persisted
	Theme             string          `json:"theme" env:"UISHELL_THEME"`                           // light, dark or system
	Density           int             `json:"density" env:"UISHELL_DENSITY"`                       // spacing scale, 0 is default
	CacheKey          string          `json:"cache_key,omitempty" env:"UISHELL_CACHE_KEY"`         // web component cache-busting key
	ResizeDebounce    string          `json:"resize_debounce" env:"UISHELL_RESIZE_DEBOUNCE"`       // e.g. "500ms"
	ModuleConcurrency int             `json:"module_concurrency" env:"UISHELL_MODULE_CONCURRENCY"` // parallel module imports per render
	MetricsAddr       string          `json:"metrics_addr,omitempty" env:"UISHELL_METRICS_ADDR"`   // debug server listen address, empty disables
	Language          string          `json:"language,omitempty" env:"UISHELL_LANG"`               // BCP 47 tag for UI strings
	LogLevel          string          `json:"log_level" env:"UISHELL_LOG_LEVEL"`
	HotReload         HotReloadConfig `json:"hot_reload"`
}

// HotReloadConfig holds development reload settings.
type HotReloadConfig struct {
	Poll      bool     `json:"poll" env:"UISHELL_HOT_RELOAD_POLL"`                             // long-poll the server's reload counter
	WatchDirs []string `json:"watch_dirs,omitempty" env:"UISHELL_WATCH_DIRS" envSeparator:","` // local source dirs to watch
	Debounce  string   `json:"debounce" env:"UISHELL_WATCH_DEBOUNCE"`
}

// ResizeDebounceDuration returns the parsed resize debounce (default: 500ms).
func (c Config) ResizeDebounceDuration() time.Duration {
	return parseDuration(c.ResizeDebounce, 500*time.Millisecond)
}

// DebounceDuration returns the parsed watch debounce (default: 300ms).
func (c HotReloadConfig) DebounceDuration() time.Duration {
	return parseDuration(c.Debounce, 300*time.Millisecond)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// ThemeMode returns the configured theme mode.
func (c Config) ThemeMode() protocol.ThemeMode {
	m, err := protocol.ParseThemeMode(c.Theme)
	if err != nil || m == protocol.ThemeModeUnspecified {
		return protocol.ThemeModeSystem
	}
	return m
}

// PageURL returns StartURL, or the http(s) origin of ServerURL.
func (c Config) PageURL() string {
	if c.StartURL != "" {
		return c.StartURL
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = "/"
	u.RawQuery = ""
	return u.String()
}

// Validate checks the fields other packages rely on.
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server_url: scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.StartURL != "" {
		s := strings.ToLower(c.StartURL)
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			return fmt.Errorf("start_url: must be an http(s) URL")
		}
	}
	if c.Theme != "" {
		if _, err := protocol.ParseThemeMode(c.Theme); err != nil {
			return fmt.Errorf("theme: %w", err)
		}
	}
	if c.ResizeDebounce != "" {
		if _, err := time.ParseDuration(c.ResizeDebounce); err != nil {
			return fmt.Errorf("resize_debounce: %w", err)
		}
	}
	return nil
}

// Dir returns the path to the .uishell directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".uishell"), nil
}

// Path returns the path to the main config file.
func Path() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Load loads ~/.uishell/config.json and applies environment overrides.
func Load() (Config, error) {
	cfg, err := loadFile()
	if err != nil {
		return Config{}, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile() (Config, error) {
	configPath, err := Path()
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		cfg := Default()
		// Persist the initial config so users have a file to edit
		if saveErr := Save(cfg); saveErr != nil {
			return cfg, nil // return defaults even if save fails
		}
		return cfg, nil
	} else if err != nil {
		return Config{}, err
	}

	// Start from defaults so missing keys get correct values
	config := Default()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", configPath, err)
	}
	if config.Theme == "" {
		config.Theme = "system"
	}
	return config, nil
}

// ApplyEnv overrides cfg with any UISHELL_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Default returns a default configuration with all defaults set.
func Default() Config {
	return Config{
		ServerURL:         "ws://localhost:32123/__ui__",
		Theme:             "system",
		ResizeDebounce:    "500ms",
		ModuleConcurrency: 4,
		LogLevel:          "info",
		HotReload: HotReloadConfig{
			Debounce: "300ms",
		},
	}
}

// Save saves the configuration to ~/.uishell/config.json.
func Save(config Config) error {
	configPath, err := Path()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}
