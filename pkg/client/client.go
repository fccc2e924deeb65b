// Package client implements the chatd client side of the wire protocol:
// the login and registration handshakes and the framed session stream.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/NicolasHaas/chatd/pkg/protocol"
)

var (
	ErrServerFull      = errors.New("client: server is full")
	ErrAlreadyLoggedIn = errors.New("client: already logged in")
	ErrBanned          = errors.New("client: banned from the server")
	ErrWrongPassword   = errors.New("client: wrong password")
	ErrNotRegistered   = errors.New("client: username not registered")
	ErrUsernameTaken   = errors.New("client: username already taken")
	ErrIO              = errors.New("client: server reported an IO error")
	ErrRejected        = errors.New("client: unexpected handshake status")
)

var aLongTimeAgo = time.Unix(1, 0)

var loginErrors = map[protocol.Status]error{
	protocol.LoginIOError:         ErrIO,
	protocol.LoginServerFull:      ErrServerFull,
	protocol.LoginAlreadyLoggedIn: ErrAlreadyLoggedIn,
	protocol.LoginBanned:          ErrBanned,
	protocol.LoginWrongPassword:   ErrWrongPassword,
	protocol.LoginNotRegistered:   ErrNotRegistered,
}

// Conn is a logged-in session.
type Conn struct {
	Username string

	conn net.Conn
	r    *protocol.Reader
	mu   sync.Mutex // serializes writes
}

// Dial opens a TCP connection to a chatd server.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return conn, nil
}

// Login dials addr and logs in. On success the returned Conn carries the
// session stream; any other outcome closes the connection.
func Login(ctx context.Context, addr, username, password string) (*Conn, error) {
	conn, err := Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	c, err := LoginConn(ctx, conn, username, password)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// LoginConn runs the login handshake over an established connection.
// The caller closes conn if an error is returned.
func LoginConn(ctx context.Context, conn net.Conn, username, password string) (*Conn, error) {
	stop := watchContext(ctx, conn)
	defer stop()

	r := protocol.NewReader(conn)
	if err := protocol.WriteRequest(conn, protocol.LoginRequest); err != nil {
		return nil, fmt.Errorf("client: login: %w", err)
	}

	status, err := r.ReadStatus()
	if err != nil {
		return nil, fmt.Errorf("client: login: %w", err)
	}
	if status != protocol.LoginEstablished {
		return nil, statusError(status)
	}

	if err := writeCredentials(conn, username, password); err != nil {
		return nil, fmt.Errorf("client: login: %w", err)
	}

	if status, err = r.ReadStatus(); err != nil {
		return nil, fmt.Errorf("client: login: %w", err)
	}
	if status != protocol.LoginAccepted {
		return nil, statusError(status)
	}
	return &Conn{Username: username, conn: conn, r: r}, nil
}

// Register dials addr and creates an account. The server closes the
// connection after answering.
func Register(ctx context.Context, addr, username, password string) error {
	conn, err := Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return RegisterConn(ctx, conn, username, password)
}

// RegisterConn runs the registration handshake over an established connection.
func RegisterConn(ctx context.Context, conn net.Conn, username, password string) error {
	stop := watchContext(ctx, conn)
	defer stop()

	if err := protocol.WriteRequest(conn, protocol.RegistrationRequest); err != nil {
		return fmt.Errorf("client: register: %w", err)
	}
	if err := writeCredentials(conn, username, password); err != nil {
		return fmt.Errorf("client: register: %w", err)
	}

	status, err := protocol.NewReader(conn).ReadStatus()
	if err != nil {
		return fmt.Errorf("client: register: %w", err)
	}
	switch status {
	case protocol.RegistrationSucceeded:
		return nil
	case protocol.RegistrationUsernameTaken:
		return ErrUsernameTaken
	case protocol.RegistrationIOError:
		return ErrIO
	default:
		return fmt.Errorf("%w: %d", ErrRejected, status)
	}
}

// Send writes one chat line. Lines starting with "/" are commands.
func (c *Conn) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := protocol.WriteLine(c.conn, line); err != nil {
		return fmt.Errorf("client: send: %w", err)
	}
	return nil
}

// Receive blocks for the next server frame. Unknown flags are returned with
// protocol.ErrUnknownFlag; the caller may keep receiving.
func (c *Conn) Receive() (protocol.Frame, error) {
	return c.r.ReadFrame()
}

// Close closes the connection; the server treats it as a disconnect.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func writeCredentials(conn net.Conn, username, password string) error {
	if err := protocol.WriteLine(conn, username); err != nil {
		return err
	}
	return protocol.WriteLine(conn, password)
}

func statusError(s protocol.Status) error {
	if err, ok := loginErrors[s]; ok {
		return err
	}
	return fmt.Errorf("%w: %d", ErrRejected, s)
}

// watchContext expires conn's deadlines when ctx is cancelled so pending
// handshake reads return. The returned func stops the watch.
func watchContext(ctx context.Context, conn net.Conn) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
	})
	return func() { stop() }
}
