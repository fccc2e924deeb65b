package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"
	reuseport "github.com/kavu/go_reuseport"
)

func (s *Server) listen() (net.Listener, error) {
	if s.cfg.Reuseport {
		return reuseport.Listen("tcp", s.cfg.ListenAddr)
	}
	return net.Listen("tcp", s.cfg.ListenAddr)
}

// startAcceptor binds the listening endpoint and starts the accept loop.
func (s *Server) startAcceptor() error {
	ln, err := s.listen()
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	slog.Info("chat listener ready", "addr", ln.Addr().String(), "max_clients", s.cfg.MaxClients)
	go s.acceptLoop(ln)
	return nil
}

// acceptLoop accepts connections sequentially; each connection's handshake
// and session run on their own goroutine.
func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.loopDone)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				slog.Debug("listener closed, accept loop stopped")
				return
			}
			select {
			case <-s.ctx.Done():
				return
			default:
				slog.Error("accept error", "err", err)
				continue
			}
		}
		s.mu.Lock()
		s.handlers++
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

// handleConn runs one connection from handshake to session end.
func (s *Server) handleConn(conn net.Conn) {
	defer s.handlerDone()
	id := uuid.New()
	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	defer s.metrics.ActiveConnections.Add(-1)

	slog.Debug("new connection", "conn", id, "remote", conn.RemoteAddr().String())

	sess, reader := s.handshake(conn, id)
	if sess == nil {
		_ = conn.Close()
		return
	}
	s.serveSession(sess, reader)
}

// handlerDone closes the user store after Close once the last handler ends.
func (s *Server) handlerDone() {
	s.mu.Lock()
	s.handlers--
	release := s.takeStoreLocked()
	s.mu.Unlock()
	if !release {
		return
	}
	if err := s.store.Close(); err != nil {
		slog.Error("closing user store", "err", err)
	}
	slog.Debug("user store closed after last session")
}

// takeStoreLocked reports whether the caller should close the store now.
// The caller holds s.mu.
func (s *Server) takeStoreLocked() bool {
	if !s.draining || s.handlers > 0 || s.storeClosed || s.store == nil {
		return false
	}
	s.storeClosed = true
	return true
}
