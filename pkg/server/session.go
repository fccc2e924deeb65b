package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NicolasHaas/chatd/pkg/protocol"
)

// ErrSessionClosed is returned when writing to a session that has ended.
var ErrSessionClosed = errors.New("server: session closed")

// Session is one authenticated, live connection.
// All writes go through the session lock so frames never interleave.
type Session struct {
	Username    string
	ID          uuid.UUID
	RemoteAddr  string
	ConnectedAt time.Time

	conn         net.Conn
	writeTimeout time.Duration

	mu         sync.Mutex
	closed     bool
	terminated bool
}

func newSession(conn net.Conn, id uuid.UUID, username string, writeTimeout time.Duration) *Session {
	return &Session{
		Username:     username,
		ID:           id,
		RemoteAddr:   conn.RemoteAddr().String(),
		ConnectedAt:  time.Now(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// Send writes one frame. A write failure closes the transport, which the
// session's own worker then observes as a disconnect.
func (s *Session) Send(flag protocol.Flag, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.armWriteDeadline()
	if err := protocol.WriteFrame(s.conn, flag, fields...); err != nil {
		s.closeLocked()
		return err
	}
	return nil
}

// Terminate delivers a kicked/banned/deleted notice naming actor and closes
// the transport in the same critical section. Nothing can be written to the
// session afterwards. It returns ErrSessionClosed if the session had already
// ended.
func (s *Session) Terminate(flag protocol.Flag, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.terminated = true
	s.armWriteDeadline()
	err := protocol.WriteFrame(s.conn, flag, actor)
	s.closeLocked()
	return err
}

// Terminated reports whether the session was ended by Terminate.
func (s *Session) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Close closes the transport. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

// writeStatusLocked writes a handshake status byte. The caller holds s.mu.
func (s *Session) writeStatusLocked(status protocol.Status) error {
	s.armWriteDeadline()
	return protocol.WriteStatus(s.conn, status)
}

func (s *Session) armWriteDeadline() {
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
}

func (s *Session) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
