// Package session implements the process-wide backings that keep vendor
// telemetry sources alive between samples: subprocess pipelines, FFI
// handles and gRPC channels. Every subtype is a package-level singleton
// reached through the Registry; callers never see the raw handle.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Session is the contract every session subtype implements.
type Session interface {
	// Initialize opens the backing resource. It is idempotent: calling it
	// again on an already-initialized session is a no-op.
	Initialize(ctx context.Context) error
	// Shutdown tears the backing down: stops watchdogs, signals
	// subprocesses, closes FFI handles or gRPC channels. It is safe to
	// call on a session that was never initialized.
	Shutdown(ctx context.Context) error
	// Name identifies the session for logging and registry lookups.
	Name() string
}

// Registry owns every session for the life of the process and is the only
// thing the rest of the program touches; it never hands out a raw handle.
type Registry struct {
	mu       sync.Mutex
	logger   *slog.Logger
	sessions map[string]Session
}

// NewRegistry returns an empty session registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		sessions: make(map[string]Session),
	}
}

// Register adds a session to the registry without initializing it. It is
// an error to register two sessions under the same name.
func (r *Registry) Register(s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.Name()]; ok {
		return fmt.Errorf("session: %q already registered", s.Name())
	}

	r.sessions[s.Name()] = s

	return nil
}

// Init initializes every registered session. Failures are logged and
// skipped — a session that fails to come up contributes capability-absent
// behavior from its owning reader, it does not abort startup.
func (r *Registry) Init(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		if err := s.Initialize(ctx); err != nil {
			r.logger.Warn("session failed to initialize", "session", s.Name(), "err", err)
		}
	}
}

// Shutdown tears down every registered session, in registration order is
// not guaranteed but every session's own Shutdown is called exactly once.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	sessions := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	var errs error

	for _, s := range sessions {
		if err := s.Shutdown(ctx); err != nil {
			r.logger.Error("session failed to shut down cleanly", "session", s.Name(), "err", err)

			if errs == nil {
				errs = err
			}
		}
	}

	return errs
}
