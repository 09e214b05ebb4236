// Package errsurface turns server application errors and uncaught client
// runtime errors into one report shape and shows at most one at a time.
package errsurface

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/wethinkt/go-uishell/internal/protocol"
	"github.com/wethinkt/go-uishell/internal/tuilog"
)

// Origin says where a report came from.
type Origin string

const (
	OriginServer  Origin = "server"
	OriginRuntime Origin = "runtime"
)

// Report is what the user sees.
type Report struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"` // stack trace or traceback
	Origin  Origin `json:"origin"`
}

// FromServerError converts an application error frame.
func FromServerError(e *protocol.ServerError) Report {
	if e == nil {
		return Report{Message: "unknown server error", Origin: OriginServer}
	}
	return Report{Message: e.Exception, Detail: e.Traceback, Origin: OriginServer}
}

// FromRuntimeError converts a client-side error.
func FromRuntimeError(err error) Report {
	return Report{Message: "runtime error: " + err.Error(), Origin: OriginRuntime}
}

// FromPanic converts a recovered panic value and its stack.
func FromPanic(v any, stack []byte) Report {
	return Report{
		Message: fmt.Sprintf("runtime error: %v", v),
		Detail:  string(stack),
		Origin:  OriginRuntime,
	}
}

// Surface is the single slot error report.
type Surface struct {
	mu        sync.Mutex
	current   *Report
	opened    int
	listeners []func(*Report)
}

// New returns an empty surface.
func New() *Surface {
	return &Surface{}
}

// Open shows r, closing whatever report is currently shown.
func (s *Surface) Open(r Report) {
	s.mu.Lock()
	if s.current != nil {
		tuilog.Log.Debug("Replacing open error report", "previous", s.current.Message)
	}
	s.current = &r
	s.opened++
	fns := append([]func(*Report){}, s.listeners...)
	s.mu.Unlock()

	errorReportsTotal.WithLabelValues(string(r.Origin)).Inc()
	tuilog.Log.Error("Error report", "origin", r.Origin, "message", r.Message)
	for _, fn := range fns {
		fn(&r)
	}
}

// ReportServerError is a shortcut for Open(FromServerError(e)).
func (s *Surface) ReportServerError(e *protocol.ServerError) {
	s.Open(FromServerError(e))
}

// ReportRuntimeError is a shortcut for Open(FromRuntimeError(err)).
func (s *Surface) ReportRuntimeError(err error) {
	if err == nil {
		return
	}
	s.Open(FromRuntimeError(err))
}

// Current returns the shown report, or nil.
func (s *Surface) Current() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	r := *s.current
	return &r
}

// Opened returns how many reports have been opened in total.
func (s *Surface) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Dismiss closes the shown report.
func (s *Surface) Dismiss() {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = nil
	fns := append([]func(*Report){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(nil)
	}
}

// OnChange registers fn to run when a report opens (non-nil) or is
// dismissed (nil).
func (s *Surface) OnChange(fn func(*Report)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Recover is the global handler for uncaught runtime errors. Defer it at
// the top of goroutines that run client logic:
//
//	defer surface.Recover()
//
// A recovered panic is reported and swallowed.
func (s *Surface) Recover() {
	if v := recover(); v != nil {
		s.Open(FromPanic(v, debug.Stack()))
	}
}
