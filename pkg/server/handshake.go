package server

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/NicolasHaas/chatd/pkg/protocol"
	"github.com/NicolasHaas/chatd/pkg/store"
)

// handshake reads the request byte and runs the login or registration
// exchange. It returns a registered session and the reader to continue the
// session stream with, or nil if the connection should be closed.
func (s *Server) handshake(conn net.Conn, id uuid.UUID) (*Session, *protocol.Reader) {
	remote := conn.RemoteAddr().String()
	if s.cfg.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	}

	r := protocol.NewReader(conn)
	b, err := r.ReadByte()
	if err != nil {
		slog.Debug("handshake read failed", "conn", id, "remote", remote, "err", err)
		return nil, nil
	}

	req, err := protocol.ParseRequest(b)
	if err != nil {
		s.metrics.ProtocolErrors.Add(1)
		slog.Warn("invalid client request, closing connection", "conn", id, "remote", remote, "request", b)
		return nil, nil
	}

	switch req {
	case protocol.LoginRequest:
		return s.login(conn, r, id)
	default:
		s.register(conn, r, id)
		return nil, nil
	}
}

func (s *Server) login(conn net.Conn, r *protocol.Reader, id uuid.UUID) (*Session, *protocol.Reader) {
	remote := conn.RemoteAddr().String()

	// The cap is checked before credentials are read, so it is a soft bound.
	if s.registry.Count() >= s.cfg.MaxClients {
		s.metrics.LoginsRejected.Add(1)
		s.logf("Connection denied: Client limit reached.")
		sendStatus(conn, protocol.LoginServerFull)
		return nil, nil
	}
	if err := protocol.WriteStatus(conn, protocol.LoginEstablished); err != nil {
		slog.Debug("handshake write failed", "conn", id, "remote", remote, "err", err)
		return nil, nil
	}

	username, password, err := s.readCredentials(r)
	if err != nil {
		s.metrics.LoginsRejected.Add(1)
		slog.Debug("login credentials read failed", "conn", id, "remote", remote, "err", err)
		sendStatus(conn, protocol.LoginIOError)
		return nil, nil
	}

	if status := s.checkLogin(username, password); status != protocol.LoginAccepted {
		s.metrics.LoginsRejected.Add(1)
		slog.Info("login rejected", "user", username, "status", status.String(), "conn", id, "remote", remote)
		sendStatus(conn, status)
		return nil, nil
	}

	// Sessions have no idle timeout; only writes keep a deadline.
	_ = conn.SetDeadline(time.Time{})

	sess := newSession(conn, id, username, s.cfg.WriteTimeout)
	err = s.registry.Add(sess, func() protocol.Status { return s.confirmLogin(username) })
	if err != nil {
		s.metrics.LoginsRejected.Add(1)
		switch {
		case errors.Is(err, ErrAlreadyOnline):
			sendStatus(conn, protocol.LoginAlreadyLoggedIn)
		case errors.Is(err, ErrAdmissionRefused):
			slog.Info("login withdrawn", "user", username, "conn", id, "remote", remote, "err", err)
		default:
			slog.Debug("accept write failed", "user", username, "conn", id, "err", err)
		}
		return nil, nil
	}

	s.metrics.LoginsAccepted.Add(1)
	slog.Info("login accepted", "user", username, "conn", id, "remote", remote)
	return sess, r
}

// checkLogin applies the login checks in order and returns the first
// failing status, or LoginAccepted.
func (s *Server) checkLogin(username, password string) protocol.Status {
	if s.registry.IsOnline(username) {
		return protocol.LoginAlreadyLoggedIn
	}

	registered, err := s.store.IsRegistered(username)
	if err != nil {
		slog.Error("login: registration lookup failed", "user", username, "err", err)
		return protocol.LoginIOError
	}
	if !registered {
		return protocol.LoginNotRegistered
	}

	ok, err := s.store.Authenticate(username, password)
	if err != nil {
		slog.Error("login: authentication failed", "user", username, "err", err)
		return protocol.LoginIOError
	}
	if !ok {
		return protocol.LoginWrongPassword
	}

	banned, err := s.store.IsBanned(username)
	if err != nil {
		slog.Error("login: ban lookup failed", "user", username, "err", err)
		return protocol.LoginIOError
	}
	if banned {
		return protocol.LoginBanned
	}
	return protocol.LoginAccepted
}

// confirmLogin re-reads the account once the session is registered. A ban
// or delete that finished after checkLogin found no session to evict, so
// it is caught here instead.
func (s *Server) confirmLogin(username string) protocol.Status {
	registered, err := s.store.IsRegistered(username)
	if err != nil {
		slog.Error("login: registration recheck failed", "user", username, "err", err)
		return protocol.LoginIOError
	}
	if !registered {
		return protocol.LoginNotRegistered
	}
	banned, err := s.store.IsBanned(username)
	if err != nil {
		slog.Error("login: ban recheck failed", "user", username, "err", err)
		return protocol.LoginIOError
	}
	if banned {
		return protocol.LoginBanned
	}
	return protocol.LoginAccepted
}

// register creates an account and always ends the connection.
func (s *Server) register(conn net.Conn, r *protocol.Reader, id uuid.UUID) {
	username, password, err := s.readCredentials(r)
	if err != nil {
		s.metrics.RegistrationsFail.Add(1)
		slog.Debug("registration credentials read failed", "conn", id, "err", err)
		sendStatus(conn, protocol.RegistrationIOError)
		return
	}

	registered, err := s.store.IsRegistered(username)
	if err == nil && registered {
		err = store.ErrUsernameTaken
	}
	if err == nil {
		err = s.store.Register(username, password)
	}

	switch {
	case err == nil:
		s.metrics.Registrations.Add(1)
		sendStatus(conn, protocol.RegistrationSucceeded)
		s.logf("New client '%s' has just registered!", username)
	case errors.Is(err, store.ErrUsernameTaken):
		s.metrics.RegistrationsFail.Add(1)
		s.logf("Registration denied: username '%s' already taken.", username)
		sendStatus(conn, protocol.RegistrationUsernameTaken)
	default:
		s.metrics.RegistrationsFail.Add(1)
		slog.Warn("registration failed", "user", username, "conn", id, "err", err)
		s.logf("Registration denied: IO error occurred.")
		sendStatus(conn, protocol.RegistrationIOError)
	}
}

func (s *Server) readCredentials(r *protocol.Reader) (username, password string, err error) {
	if username, err = r.ReadLine(); err != nil {
		s.countLineError(err)
		return "", "", err
	}
	if password, err = r.ReadLine(); err != nil {
		s.countLineError(err)
		return "", "", err
	}
	return username, password, nil
}

func (s *Server) countLineError(err error) {
	if errors.Is(err, protocol.ErrLineTooLong) {
		s.metrics.ProtocolErrors.Add(1)
	}
}

// sendStatus writes a handshake status byte. The caller closes the connection.
func sendStatus(conn net.Conn, status protocol.Status) {
	_ = protocol.WriteStatus(conn, status)
}
