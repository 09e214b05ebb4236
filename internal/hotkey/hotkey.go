// Package hotkey decides whether a keystroke is the hot reload shortcut:
// cmd+shift+r on macOS, alt+shift+r on ChromeOS (ctrl+shift+r is the
// browser's hard reload there), ctrl+shift+r everywhere else.
package hotkey

import (
	"os"
	"runtime"
	"strings"
	"unicode"
)

// Platform selects the modifier the shortcut uses.
type Platform int

const (
	PlatformOther Platform = iota
	PlatformMac
	PlatformChromeOS
)

func (p Platform) String() string {
	switch p {
	case PlatformMac:
		return "mac"
	case PlatformChromeOS:
		return "chromeos"
	}
	return "other"
}

// Keystroke is a key press with its modifiers.
type Keystroke struct {
	Key   rune
	Shift bool
	Ctrl  bool
	Alt   bool
	Meta  bool // cmd on macOS, super elsewhere
}

// ShouldReload reports whether k triggers a hot reload on p.
func ShouldReload(k Keystroke, p Platform) bool {
	if unicode.ToLower(k.Key) != 'r' || !k.Shift {
		return false
	}
	switch p {
	case PlatformMac:
		return k.Meta
	case PlatformChromeOS:
		return k.Alt
	}
	return k.Ctrl
}

// Detect returns the platform of the running process.
func Detect() Platform {
	return detect(runtime.GOOS, "/etc/lsb-release")
}

func detect(goos, lsbRelease string) Platform {
	if goos == "darwin" {
		return PlatformMac
	}
	if goos == "linux" {
		// Crostini containers carry the host's release name.
		if data, err := os.ReadFile(lsbRelease); err == nil && strings.Contains(strings.ToUpper(string(data)), "CHROMEOS") {
			return PlatformChromeOS
		}
	}
	return PlatformOther
}

// Label is the shortcut as shown in help text.
func Label(p Platform) string {
	switch p {
	case PlatformMac:
		return "cmd+shift+r"
	case PlatformChromeOS:
		return "alt+shift+r"
	}
	return "ctrl+shift+r"
}
