// Package server is the thin HTTP adapter in front of the dispatch
// engine: it decodes a single JSON-RPC request from a POST body,
// rejects notifications and batches at the boundary, calls the engine,
// and serializes the response — exactly the "external collaborator"
// role. Its Serve lifecycle races a context cancellation against
// http.Server.Serve's error channel, then performs a bounded graceful
// shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	segjson "github.com/segmentio/encoding/json"

	"github.com/malbeclabs/rpcproxy/internal/jsonrpc"
)

// Dispatcher is the subset of *dispatch.Engine the server depends on.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error)
}

// Server is the HTTP front door.
type Server struct {
	log       *slog.Logger
	mux       *http.ServeMux
	dispatch  Dispatcher
	metricsOn bool
}

// New builds a Server around the given Dispatcher. When metricsHandler
// is non-nil it is mounted at /metrics.
func New(log *slog.Logger, dispatcher Dispatcher, metricsHandler http.Handler) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{log: log, mux: http.NewServeMux(), dispatch: dispatcher}
	s.mux.HandleFunc("/", s.handleRPC)
	if metricsHandler != nil {
		s.metricsOn = true
		s.mux.Handle("/metrics", metricsHandler)
	}
	return s
}

// ServeHTTP lets Server be used directly as an http.Handler, e.g. with
// httptest.NewServer in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Serve runs the HTTP server on listener until ctx is cancelled, then
// shuts it down gracefully with a bounded timeout.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{Handler: s.mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("server shutdown error", "error", err)
		} else {
			s.log.Info("server shutdown via context")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			s.log.Info("server closed")
			return nil
		}
		return err
	}
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var raw jsonrpc.RawRequest
	if err := segjson.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.log.Debug("malformed request body", "error", err)
		http.Error(w, "malformed JSON-RPC request", http.StatusBadRequest)
		return
	}
	if raw.ID == nil {
		s.log.Debug("rejecting notification, id is required")
		http.Error(w, "notifications are not supported", http.StatusBadRequest)
		return
	}

	req := &jsonrpc.Request{
		JSONRPC: raw.JSONRPC,
		ID:      *raw.ID,
		Method:  raw.Method,
		Params:  raw.Params,
	}

	resp, err := s.dispatch.Dispatch(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		s.log.Error("dispatch returned an unexpected error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := segjson.NewEncoder(w)
	if err := enc.Encode(resp); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}
