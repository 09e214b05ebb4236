package errsurface

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/wethinkt/go-uishell/internal/protocol"
)

func TestSurface_SingleSlot(t *testing.T) {
	s := New()
	var events []*Report
	s.OnChange(func(r *Report) { events = append(events, r) })

	s.ReportServerError(&protocol.ServerError{Exception: "first", Traceback: "tb"})
	s.ReportRuntimeError(errors.New("second"))

	cur := s.Current()
	if cur == nil || cur.Message != "runtime error: second" || cur.Origin != OriginRuntime {
		t.Fatalf("Current() = %+v", cur)
	}
	if s.Opened() != 2 {
		t.Errorf("Opened() = %d", s.Opened())
	}
	if len(events) != 2 || events[0].Message != "first" || events[0].Detail != "tb" {
		t.Errorf("events = %+v", events)
	}

	s.Dismiss()
	if s.Current() != nil {
		t.Error("report should be gone after Dismiss")
	}
	if len(events) != 3 || events[2] != nil {
		t.Errorf("dismiss should notify with nil, events = %v", events)
	}

	s.Dismiss()
	if len(events) != 3 {
		t.Error("dismissing an empty surface should not notify")
	}
}

func TestSurface_RecoverReportsPanic(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.Recover()
		panic("boom")
	}()
	wg.Wait()

	cur := s.Current()
	if cur == nil || cur.Message != "runtime error: boom" {
		t.Fatalf("Current() = %+v", cur)
	}
	if !strings.Contains(cur.Detail, "goroutine") {
		t.Errorf("expected a stack trace in Detail, got %q", cur.Detail)
	}
}

func TestFromServerError_Nil(t *testing.T) {
	r := FromServerError(nil)
	if r.Origin != OriginServer || r.Message == "" {
		t.Errorf("got %+v", r)
	}
}

func TestReportRuntimeError_NilIsIgnored(t *testing.T) {
	s := New()
	s.ReportRuntimeError(nil)
	if s.Current() != nil {
		t.Error("nil error should not open a report")
	}
}
