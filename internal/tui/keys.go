package tui

import (
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/wethinkt/go-uishell/internal/hotkey"
)

// shellKeyMap defines key bindings for the shell.
type shellKeyMap struct {
	NextFocus key.Binding
	PrevFocus key.Binding
	Activate  key.Binding
	Back      key.Binding
	Forward   key.Binding
	Dismiss   key.Binding
	Reload    key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

// defaultShellKeyMap returns the default key bindings for the shell.
func defaultShellKeyMap() shellKeyMap {
	return shellKeyMap{
		NextFocus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next"),
		),
		PrevFocus: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous"),
		),
		Activate: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "activate"),
		),
		Back: key.NewBinding(
			key.WithKeys("alt+left"),
			key.WithHelp("alt+←", "back"),
		),
		Forward: key.NewBinding(
			key.WithKeys("alt+right"),
			key.WithHelp("alt+→", "forward"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "dismiss"),
		),
		Reload: key.NewBinding(
			key.WithKeys("f5"),
			key.WithHelp("f5", "reload"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
		),
	}
}

// keystroke converts a key press for the reload hotkey check. Terminals
// that support the kitty protocol report cmd as super.
func keystroke(msg tea.KeyPressMsg) hotkey.Keystroke {
	k := msg.Key()
	r := k.Code
	if k.ShiftedCode != 0 {
		r = k.ShiftedCode
	}
	return hotkey.Keystroke{
		Key:   r,
		Shift: k.Mod&tea.ModShift != 0,
		Ctrl:  k.Mod&tea.ModCtrl != 0,
		Alt:   k.Mod&tea.ModAlt != 0,
		Meta:  k.Mod&(tea.ModMeta|tea.ModSuper) != 0,
	}
}
