// Package health exposes liveness and readiness probe endpoints.
//
// Probes run on demand when the endpoint is hit, each bounded by a shared
// timeout. Readiness additionally requires an explicit SetReady(true) after
// startup, and SetReady(false) flips the service out of rotation during
// graceful shutdown.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes a single component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// Pinger is satisfied by connection pools that support a ping round trip,
// such as pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger into a CheckFunc.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// Service runs registered probes and serves probe endpoints.
type Service struct {
	timeout time.Duration
	ready   atomic.Bool

	mu        sync.RWMutex
	liveness  map[string]CheckFunc
	readiness map[string]CheckFunc
}

// New creates a Service with the given per-request probe timeout.
// The service starts not ready; call SetReady(true) once startup completes.
func New(timeout time.Duration) *Service {
	return &Service{
		timeout:   timeout,
		liveness:  make(map[string]CheckFunc),
		readiness: make(map[string]CheckFunc),
	}
}

// AddLiveness registers a liveness probe. Liveness failures indicate the
// process itself is broken and should be restarted.
func (s *Service) AddLiveness(name string, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness[name] = check
}

// AddReadiness registers a readiness probe. Readiness failures indicate the
// service should be taken out of rotation until a dependency recovers.
func (s *Service) AddReadiness(name string, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness[name] = check
}

// SetReady sets the manual readiness gate.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// LiveHandler serves the liveness endpoint.
func (s *Service) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		checks := s.liveness
		s.mu.RUnlock()

		writeStatus(w, s.runChecks(r.Context(), checks))
	}
}

// ReadyHandler serves the readiness endpoint. It fails when the manual gate
// is closed or any readiness probe reports an error.
func (s *Service) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		checks := s.readiness
		s.mu.RUnlock()

		failures := s.runChecks(r.Context(), checks)
		if !s.ready.Load() {
			failures["service"] = "not ready"
		}
		writeStatus(w, failures)
	}
}

func (s *Service) runChecks(ctx context.Context, checks map[string]CheckFunc) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	failures := make(map[string]string)
	for name, check := range checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	return failures
}

type probeStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := probeStatus{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp = probeStatus{Status: "unhealthy", Checks: failures}
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
