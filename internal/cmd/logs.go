package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var (
	logsLines  int
	logsFollow bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the debug log",
	Long: `Print the last lines of the uishell debug log (the --log path, or
~/.uishell/logs/uishell.log by default).

Examples:
  uishell logs            # last 50 lines
  uishell logs -n 200 -f  # last 200 lines, then follow`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := logPath
		if path == "" {
			p, err := defaultLogPath()
			if err != nil {
				return err
			}
			path = p
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return tailLogFile(ctx, cmd.OutOrStdout(), path, logsLines, logsFollow)
	},
}

// tailLogFile prints the last n lines from path, optionally following for
// new content until ctx is done.
func tailLogFile(ctx context.Context, w io.Writer, path string, n int, follow bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("log file not found: %s", path)
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	lines, err := readLastLines(f, n)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprint(w, line)
	}

	if !follow {
		return nil
	}

	// Follow mode: poll for new content
	buf := make([]byte, 4096)
	for {
		nr, err := f.Read(buf)
		if nr > 0 {
			w.Write(buf[:nr])
		}
		if err != nil && err != io.EOF {
			return err
		}
		if nr == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(200 * time.Millisecond):
			}
		}
	}
}

// readLastLines reads the last n lines from a file, returning them as strings
// (each including its trailing newline if present). The file offset is left
// at the end for follow mode.
func readLastLines(f *os.File, n int) ([]string, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	// Read entire file (log files are typically small)
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}

	var lines []string
	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] == '\n' {
			lines = append(lines, string(buf[start:i+1]))
			start = i + 1
		}
	}
	// Handle last line without trailing newline
	if start < len(buf) {
		lines = append(lines, string(buf[start:])+"\n")
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	return lines, nil
}
