// Package httpstatus serves the validator's liveness surface. It follows
// the walletserver package's shape (a mux.Router wired up in a small
// constructor, served by http.ListenAndServe from the caller) but exposes
// process health instead of wallet operations — wallet key custody stays
// an external collaborator per the spec's scope (§1, §6).
package httpstatus

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Status is the liveness snapshot served at /healthz.
type Status struct {
	Bootstrapped bool      `json:"bootstrapped"`
	EpochIndex   uint64    `json:"epoch_index"`
	LastTickAt   time.Time `json:"last_tick_at"`
	LastError    string    `json:"last_error,omitempty"`
}

// Server holds the mutable status snapshot behind a mutex and serves it.
type Server struct {
	mu     sync.RWMutex
	status Status
}

// NewServer builds an empty status server.
func NewServer() *Server {
	return &Server{}
}

// Update replaces the current status snapshot. Called from the validator's
// scheduler status callback after every pipeline tick (§4.G).
func (s *Server) Update(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Server) snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Router builds the gorilla/mux router exposing /healthz.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	status := s.snapshot()
	w.Header().Set("Content-Type", "application/json")
	if !status.Bootstrapped {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Serve starts an HTTP server exposing Router() until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
