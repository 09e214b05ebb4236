// Package server implements the local debug HTTP server: Prometheus metrics
// and a JSON view of the running session.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wethinkt/go-uishell/internal/errsurface"
	"github.com/wethinkt/go-uishell/internal/session"
	"github.com/wethinkt/go-uishell/internal/tuilog"
	"github.com/wethinkt/go-uishell/internal/version"
)

// SessionSource is the running session as the debug server sees it.
type SessionSource interface {
	Snapshot() session.Snapshot
	Errors() *errsurface.Surface
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DebugServer serves /metrics and /debug/*.
type DebugServer struct {
	session SessionSource
	router  chi.Router
	addr    string
}

// New creates a debug server for sess listening on addr ("host:port";
// port 0 picks a free one).
func New(sess SessionSource, addr string) *DebugServer {
	s := &DebugServer{session: sess, addr: addr}
	s.router = s.setupRouter()
	return s
}

// setupRouter configures all routes.
func (s *DebugServer) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	r.Handle("/metrics", promhttp.Handler())
	r.Route("/debug", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Get("/error", s.handleError)
		r.Delete("/error", s.handleDismissError)
		r.Get("/version", s.handleVersion)
	})
	return r
}

// Router returns the chi router.
func (s *DebugServer) Router() chi.Router {
	return s.router
}

// Addr returns the listen address; once ListenAndServe has bound it carries
// the assigned port.
func (s *DebugServer) Addr() string {
	return s.addr
}

// ListenAndServe serves until ctx is done. ready, when non-nil, receives the
// bound address once the listener is open.
func (s *DebugServer) ListenAndServe(ctx context.Context, ready chan<- string) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.addr = ln.Addr().String()
	if ready != nil {
		ready <- s.addr
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	tuilog.Log.Info("Debug server listening", "addr", s.addr)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *DebugServer) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *DebugServer) handleError(w http.ResponseWriter, r *http.Request) {
	rep := s.session.Errors().Current()
	if rep == nil {
		writeError(w, http.StatusNotFound, "not_found", "no error report is open")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *DebugServer) handleDismissError(w http.ResponseWriter, r *http.Request) {
	s.session.Errors().Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

func (s *DebugServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo("uishell"))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, msg string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: msg})
}

// requestLogger sends access logs to the tui logger; stdout belongs to the
// terminal UI.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		tuilog.Log.Debug("Debug request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
