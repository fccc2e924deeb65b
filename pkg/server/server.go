// Package server implements the chatd server: the acceptor and handshake,
// the session registry, per-connection workers, the command dispatcher and
// the message relay.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/NicolasHaas/chatd/pkg/store"
)

// Server is the main chatd server.
type Server struct {
	cfg        Config
	store      store.UserStore
	events     *Events
	registry   *Registry
	relay      *Relay
	dispatcher *Dispatcher
	metrics    *Metrics

	mu       sync.Mutex
	listener net.Listener
	started  bool
	closed   bool
	loopDone chan struct{}

	// The store outlives Close while connection handlers still run.
	handlers    int
	draining    bool
	storeClosed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	events := &Events{}
	metrics := NewMetrics()
	registry := NewRegistry(events)
	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		events:   events,
		registry: registry,
		relay:    NewRelay(registry, metrics),
		metrics:  metrics,
		loopDone: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.dispatcher = NewDispatcher(s, builtinCommands()...)
	return s
}

// Events returns the callback registry for server observers.
func (s *Server) Events() *Events {
	return s.events
}

// Registry returns the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Relay returns the message relay.
func (s *Server) Relay() *Relay {
	return s.relay
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// logf records a human-readable server log line for observers and slog.
func (s *Server) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	slog.Info(line)
	s.events.emitLog(line)
}
