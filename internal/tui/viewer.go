package tui

import (
	"context"
	"os"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/term"

	"github.com/wethinkt/go-uishell/internal/dom"
)

// termSizeOpts returns tea.ProgramOptions that set the initial window size
// from the terminal. Bubble Tea v2 does not query the size at startup, so
// without this WindowSizeMsg arrives late or not at all in some terminals.
func termSizeOpts() []tea.ProgramOption {
	var opts []tea.ProgramOption
	for _, fd := range []int{int(os.Stdout.Fd()), int(os.Stdin.Fd()), int(os.Stderr.Fd())} {
		if term.IsTerminal(fd) {
			w, h, err := term.GetSize(fd)
			if err == nil && w > 0 && h > 0 {
				opts = append(opts, tea.WithWindowSize(w, h))
				break
			}
		}
	}
	return opts
}

// Run drives a session in the terminal until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewShellModel(ctx, opts)
	p := tea.NewProgram(model, append(termSizeOpts(), tea.WithContext(ctx))...)
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		// Cancelled from outside; not a failure.
		return nil
	}
	return err
}

// RenderPlain lays out the document without colors, for headless output.
func RenderPlain(doc *dom.Document, width int) string {
	return LayoutDocument(doc.Root(), LayoutOptions{
		Width:   width,
		Focused: doc.Focused(),
		Plain:   true,
	}).String()
}
