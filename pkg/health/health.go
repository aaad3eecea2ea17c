// Package health exposes an optional /healthz and /metrics HTTP server
// (§6 "Health server"), grounded on the teacher's cmd/quote-service
// net/http + http.ServeMux bootstrap.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"dexarb/pkg/ratelimit"
)

// Snapshot is the JSON body served at /metrics: rate-governor state for
// both providers plus identifying fields, never secrets (§6).
type Snapshot struct {
	Mode      string            `json:"mode"`
	Uptime    string            `json:"uptime"`
	Primary   ratelimit.Snapshot `json:"primary"`
	Secondary *ratelimit.Snapshot `json:"secondary,omitempty"`
}

// Server serves /healthz and /metrics on Addr until Shutdown is called.
type Server struct {
	httpServer *http.Server
	log        *zap.SugaredLogger
	started    time.Time
}

// New builds a Server. Each /metrics request takes a fresh Snapshot of the
// primary governor and, when non-nil, the secondary one.
func New(addr string, mode string, primary *ratelimit.Governor, secondary *ratelimit.Governor, log *zap.SugaredLogger) *Server {
	started := time.Now()
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		snap := Snapshot{
			Mode:    mode,
			Uptime:  time.Since(started).String(),
			Primary: primary.Snapshot(),
		}
		if secondary != nil {
			s := secondary.Snapshot()
			snap.Secondary = &s
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(snap)
	})

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		log:        log,
		started:    started,
	}
}

// Run starts listening; it returns on Shutdown or a listener error other
// than http.ErrServerClosed.
func (s *Server) Run() error {
	if s.log != nil {
		s.log.Infow("health server listening", "addr", s.httpServer.Addr)
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
