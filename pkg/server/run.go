package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
)

var (
	ErrAlreadyStarted = errors.New("server: already started")
	ErrServerClosed   = errors.New("server: closed")
)

// Start binds the listener and begins accepting clients. It returns once
// the server is accepting; use Close to stop it.
func (s *Server) Start() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrServerClosed
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	if err := s.startAcceptor(); err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return err
	}

	s.StartMetricsHTTP()
	s.metrics.StartPeriodicLog(s.cfg.MetricsInterval, s.registry.Count, s.ctx.Done())

	addr := s.Addr().String()
	s.events.emitStarted(addr)
	s.logf("Server started on %s.", addr)
	return nil
}

// Run starts the server and blocks until ctx is done or a shutdown signal
// arrives, then closes it.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		slog.Info("received signal", "signal", sig.String())
	}

	slog.Info("shutting down...")
	return s.Close()
}

// Close announces the shutdown to every online session and stops accepting
// clients. Sessions already running are not torn down by Close; they end
// when their peers disconnect or the process exits. The user store is closed
// here if no connection remains, otherwise when the last one ends.
// Close is idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	ln := s.listener
	s.mu.Unlock()

	var err error
	if started {
		s.announce("Server is closing...")
		if ln != nil {
			err = multierr.Append(err, ln.Close())
		}
	}
	s.cancel()
	if started && ln != nil {
		<-s.loopDone
	}

	s.mu.Lock()
	s.draining = true
	release := s.takeStoreLocked()
	handlers := s.handlers
	s.mu.Unlock()
	if release {
		err = multierr.Append(err, s.store.Close())
	} else if handlers > 0 {
		slog.Info("user store stays open until sessions end", "connections", handlers)
	}
	s.metrics.LogSummary(s.registry.Count())
	s.events.emitClosed()
	if err != nil {
		return fmt.Errorf("server: close: %w", err)
	}
	return nil
}
