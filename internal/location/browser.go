package location

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/wethinkt/go-uishell/internal/tuilog"
)

// SystemBrowser performs full navigations by handing URLs to the
// operating system's default browser. The terminal client has no page to
// unload, so both kinds of navigation leave the current session running.
type SystemBrowser struct {
	// start launches the opener; swapped in tests.
	start func(name string, args ...string) error
}

// NewSystemBrowser returns a browser that shells out to open/xdg-open.
func NewSystemBrowser() *SystemBrowser {
	return &SystemBrowser{start: func(name string, args ...string) error {
		return exec.Command(name, args...).Start()
	}}
}

// Open performs a top-level navigation to rawURL.
func (b *SystemBrowser) Open(rawURL string) error {
	tuilog.Log.Info("Full navigation", "url", rawURL)
	return b.launch(rawURL)
}

// OpenNewTab opens rawURL in a new browser tab.
func (b *SystemBrowser) OpenNewTab(rawURL string) error {
	tuilog.Log.Info("Opening in new tab", "url", rawURL)
	return b.launch(rawURL)
}

func (b *SystemBrowser) launch(rawURL string) error {
	name, args, err := openerFor(runtime.GOOS, rawURL)
	if err != nil {
		return err
	}
	if err := b.start(name, args...); err != nil {
		return fmt.Errorf("open %s: %w", rawURL, err)
	}
	return nil
}

func openerFor(goos, rawURL string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{rawURL}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{rawURL}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}, nil
	}
	return "", nil, fmt.Errorf("no browser opener for %s", goos)
}
