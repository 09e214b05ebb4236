package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wethinkt/go-uishell/internal/config"
	"github.com/wethinkt/go-uishell/internal/dom"
	"github.com/wethinkt/go-uishell/internal/environ"
	"github.com/wethinkt/go-uishell/internal/errsurface"
	"github.com/wethinkt/go-uishell/internal/protocol"
	"github.com/wethinkt/go-uishell/internal/session"
)

func TestApplyFlagOverrides(t *testing.T) {
	if err := rootCmd.ParseFlags([]string{
		"--server", "wss://example.test/__ui__",
		"--theme", "dark",
		"--watch", "app,static",
	}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	base := config.Default()
	base.Token = "from-env"
	got := applyFlagOverrides(rootCmd, base)

	if got.ServerURL != "wss://example.test/__ui__" {
		t.Errorf("ServerURL = %q", got.ServerURL)
	}
	if got.Theme != "dark" {
		t.Errorf("Theme = %q", got.Theme)
	}
	if len(got.HotReload.WatchDirs) != 2 || got.HotReload.WatchDirs[1] != "static" {
		t.Errorf("WatchDirs = %v", got.HotReload.WatchDirs)
	}
	if got.Token != "from-env" {
		t.Errorf("unset flag should keep the config value, got Token %q", got.Token)
	}
}

func TestTailLogFile_LastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uishell.log")
	var content strings.Builder
	for i := range 10 {
		content.WriteString("line ")
		content.WriteString(string(rune('0' + i)))
		content.WriteString("\n")
	}
	content.WriteString("partial")
	if err := os.WriteFile(path, []byte(content.String()), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := tailLogFile(context.Background(), &out, path, 3, false); err != nil {
		t.Fatalf("tailLogFile: %v", err)
	}
	want := "line 8\nline 9\npartial\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestTailLogFile_Missing(t *testing.T) {
	err := tailLogFile(context.Background(), &bytes.Buffer{}, filepath.Join(t.TempDir(), "nope.log"), 5, false)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestTailLogFile_FollowStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uishell.log")
	if err := os.WriteFile(path, []byte("start\n"), 0644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	if err := tailLogFile(ctx, &out, path, 10, true); err != nil {
		t.Fatalf("tailLogFile: %v", err)
	}
	if out.String() != "start\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrintInstances(t *testing.T) {
	var out bytes.Buffer
	if err := printInstances(&out, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No running instances") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	err := printInstances(&out, []config.Instance{{
		Type:      config.InstanceHeadless,
		PID:       4242,
		ServerURL: "ws://localhost:8000/__ui__",
		StartedAt: time.Now(),
	}})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"4242", "headless", "ws://localhost:8000/__ui__", "just now", "1 instance\n"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

type stubSession struct {
	state session.State
	doc   *dom.Document
}

func (s *stubSession) State() session.State    { return s.state }
func (s *stubSession) Title() string           { return "Home" }
func (s *stubSession) Document() *dom.Document { return s.doc }
func (s *stubSession) Snapshot() session.Snapshot {
	return session.Snapshot{State: s.state.String(), Title: "Home", RootKey: s.doc.RootKey()}
}

func TestHeadlessPrinter_PrintsEachRenderOnce(t *testing.T) {
	doc := dom.NewDocument()
	s := &stubSession{state: session.Streaming, doc: doc}
	var out bytes.Buffer
	p := &headlessPrinter{out: &out, width: 40, ended: make(chan session.State, 1)}

	doc.Render(&protocol.Component{Key: "root", Type: "text", Text: "hello"})
	p.sessionChanged(s)
	p.sessionChanged(s)

	if got := strings.Count(out.String(), "=== Home"); got != 1 {
		t.Errorf("printed %d renders, want 1:\n%s", got, out.String())
	}
	if !strings.Contains(out.String(), "hello") {
		t.Errorf("render not printed:\n%s", out.String())
	}
}

func TestHeadlessPrinter_JSON(t *testing.T) {
	doc := dom.NewDocument()
	s := &stubSession{state: session.Streaming, doc: doc}
	var out bytes.Buffer
	p := &headlessPrinter{out: &out, json: true, ended: make(chan session.State, 1)}

	doc.Render(&protocol.Component{Key: "root", Type: "text"})
	p.sessionChanged(s)

	var snap session.Snapshot
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if snap.RootKey != "root" {
		t.Errorf("RootKey = %q", snap.RootKey)
	}
}

func TestHeadlessPrinter_EndsOnce(t *testing.T) {
	s := &stubSession{state: session.Faulted, doc: dom.NewDocument()}
	p := &headlessPrinter{out: &bytes.Buffer{}, ended: make(chan session.State, 1)}

	p.sessionChanged(s)
	p.sessionChanged(s)

	if st := <-p.ended; st != session.Faulted {
		t.Errorf("ended with %v", st)
	}
	select {
	case st := <-p.ended:
		t.Errorf("second end signal %v", st)
	default:
	}
}

func TestHeadlessPrinter_Reports(t *testing.T) {
	var errOut bytes.Buffer
	p := &headlessPrinter{}
	p.reportChanged(&errOut, nil)
	p.reportChanged(&errOut, &errsurface.Report{Message: "boom", Detail: "trace", Origin: errsurface.OriginServer})

	if errOut.String() != "server error: boom\ntrace\n" {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestNewClientRuntime_RejectsInvalidConfig(t *testing.T) {
	c := config.Default()
	c.ServerURL = "http://not-a-websocket"
	if _, err := newClientRuntime(context.Background(), c, environ.NewViewport(80, 24)); err == nil {
		t.Error("expected validation error")
	}
}

func TestNewClientRuntime_Wires(t *testing.T) {
	c := config.Default()
	rt, err := newClientRuntime(context.Background(), c, environ.NewViewport(80, 24))
	if err != nil {
		t.Fatalf("newClientRuntime: %v", err)
	}
	defer rt.Close()

	if rt.session.State() != session.Uninitialized {
		t.Errorf("state = %v", rt.session.State())
	}
	if got := rt.location.String(); got != "http://localhost:32123/" {
		t.Errorf("location = %q", got)
	}
}
