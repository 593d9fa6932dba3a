package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	// ErrAlreadyRunning is returned by Start when the ingress is already up.
	ErrAlreadyRunning = errors.New("webhook server already running")

	// ErrNotRunning is returned by Stop when there is nothing to stop.
	ErrNotRunning = errors.New("webhook server not running")
)

// Supervisor owns the ingress listener's lifecycle. Chat commands can take
// the listener down and bring it back up without restarting the process; the
// command channel itself lives on a separate listener and is never affected.
type Supervisor struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger

	mu         sync.Mutex
	srv        *http.Server
	listenAddr string
	done       chan struct{}
}

// NewSupervisor creates a supervisor serving handler on addr once started.
func NewSupervisor(addr string, handler http.Handler, logger *slog.Logger) *Supervisor {
	return &Supervisor{addr: addr, handler: handler, logger: logger}
}

// Start binds the listener and begins serving in the background.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webhook server failed", "err", err)
		}
	}()

	s.srv = srv
	s.listenAddr = ln.Addr().String()
	s.done = done
	s.logger.Info("webhook server started", "addr", s.listenAddr)
	return nil
}

// Stop shuts the listener down, waiting for in-flight requests up to the
// context deadline.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return ErrNotRunning
	}

	err := s.srv.Shutdown(ctx)
	<-s.done
	s.srv = nil
	s.listenAddr = ""
	s.done = nil

	if err != nil {
		return fmt.Errorf("stopping webhook server: %w", err)
	}
	s.logger.Info("webhook server stopped")
	return nil
}

// Running reports whether the ingress is up.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// Addr returns the bound address while running, or empty string.
func (s *Supervisor) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}
