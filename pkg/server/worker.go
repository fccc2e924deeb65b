package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/NicolasHaas/chatd/pkg/protocol"
)

// serveSession runs the read loop for an admitted session until the peer
// disconnects, a read fails, or the session is terminated.
func (s *Server) serveSession(sess *Session, r *protocol.Reader) {
	defer s.endSession(sess)
	// Evicted between admission and here.
	if sess.Terminated() {
		return
	}

	rank, err := s.store.PrivilegeOf(sess.Username)
	if err != nil {
		slog.Error("privilege lookup failed", "user", sess.Username, "err", err)
	}
	s.announce(fmt.Sprintf("%s %s has just connected!", rank, sess.Username))

	for {
		line, err := r.ReadLine()
		if errors.Is(err, protocol.ErrLineTooLong) {
			s.countLineError(err)
			slog.Warn("oversized line dropped", "user", sess.Username, "conn", sess.ID)
			_ = s.relay.PrivateServer(sess.Username, "Message too long.")
			continue
		}
		if err != nil {
			if !sess.Terminated() && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				slog.Debug("session read failed", "user", sess.Username, "conn", sess.ID, "err", err)
			}
			return
		}
		// Lines buffered before a kick/ban/delete are dropped.
		if sess.Terminated() {
			return
		}
		s.handleLine(sess, line)
	}
}

func (s *Server) handleLine(sess *Session, line string) {
	if rest, ok := strings.CutPrefix(line, protocol.CommandPrefix); ok {
		s.dispatcher.Dispatch(sess, strings.TrimSpace(rest))
		return
	}
	_ = s.relay.Global(sess.Username, line)
	s.events.emitLog("[" + sess.Username + "] " + line)
	slog.Debug("global message", "user", sess.Username, "len", len(line))
}

// endSession deregisters sess and closes its transport. A session that ended
// on its own is announced; terminated sessions were announced by the command
// that ended them.
func (s *Server) endSession(sess *Session) {
	removed := s.registry.Remove(sess)
	_ = sess.Close()
	s.metrics.Disconnects.Add(1)
	slog.Info("session ended", "user", sess.Username, "conn", sess.ID, "terminated", sess.Terminated())

	if removed && !sess.Terminated() {
		_ = s.relay.Notice(protocol.Disconnect, fmt.Sprintf("'%s' has disconnected from the server.", sess.Username))
	}
}

// announce broadcasts a global server message and records it in the log.
func (s *Server) announce(message string) {
	_ = s.relay.GlobalServer(message)
	s.events.emitLog("[SERVER] " + message)
}
