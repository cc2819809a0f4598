// Package web provides an HTTP status server for the solder-station daemon.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/solder-station/internal/logic"
	"github.com/sweeney/solder-station/internal/metrics"
	"github.com/sweeney/solder-station/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker. A nil m
// disables /metrics and request instrumentation.
func New(addr string, tracker *status.Tracker, m *metrics.Metrics) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.Handle("/", m.WrapHandler("index", http.HandlerFunc(s.handleIndex)))
	mux.Handle("/index.html", m.WrapHandler("index", http.HandlerFunc(s.handleIndex)))
	mux.Handle("/index.json", m.WrapHandler("json", http.HandlerFunc(s.handleJSON)))
	mux.Handle("/healthz", m.WrapHandler("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("/metrics", m.Handler())

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleHealth answers 503 until the first controller tick and while the
// controller is in ERROR.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch {
	case !snap.Ready:
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting\n"))
	case snap.State == logic.StateError:
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("error\n"))
	default:
		w.Write([]byte("ok\n"))
	}
}
