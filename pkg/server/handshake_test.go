package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NicolasHaas/chatd/pkg/client"
	"github.com/NicolasHaas/chatd/pkg/model"
	"github.com/NicolasHaas/chatd/pkg/protocol"
	"github.com/NicolasHaas/chatd/pkg/store"
)

func tryLogin(t *testing.T, srv *Server, username, pw string) (*client.Conn, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	conn, err := client.Login(ctx, srv.Addr().String(), username, pw)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, err
}

func TestLoginStatuses(t *testing.T) {
	srv, st := newTestServer(t)
	addUser(t, st, "alice", model.PrivilegeUser)
	addUser(t, st, "mallory", model.PrivilegeUser)
	if err := st.Ban("mallory"); err != nil {
		t.Fatalf("Ban: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"not registered", "nobody", "x", client.ErrNotRegistered},
		{"wrong password", "alice", "nope", client.ErrWrongPassword},
		{"banned", "mallory", password("mallory"), client.ErrBanned},
		{"banned with wrong password", "mallory", "nope", client.ErrWrongPassword},
		{"accepted", "alice", password("alice"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tryLogin(t, srv, tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login(%s): want %v, got %v", tt.username, tt.wantErr, err)
			}
		})
	}
}

func TestLoginAlreadyLoggedIn(t *testing.T) {
	srv, st := newTestServer(t)
	addUser(t, st, "alice", model.PrivilegeUser)

	loginAs(t, srv, "alice")
	if _, err := tryLogin(t, srv, "alice", password("alice")); !errors.Is(err, client.ErrAlreadyLoggedIn) {
		t.Fatalf("second Login: want ErrAlreadyLoggedIn, got %v", err)
	}
}

func TestConcurrentLoginSameUser(t *testing.T) {
	srv, st := newTestServer(t)
	addUser(t, st, "alice", model.PrivilegeUser)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()
			conn, err := client.Login(ctx, srv.Addr().String(), "alice", password("alice"))
			errs[i] = err
			if conn != nil {
				t.Cleanup(func() { _ = conn.Close() })
			}
		}(i)
	}
	wg.Wait()

	var accepted, duplicate int
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, client.ErrAlreadyLoggedIn):
			duplicate++
		default:
			t.Fatalf("unexpected login error: %v", err)
		}
	}
	if accepted != 1 || duplicate != attempts-1 {
		t.Fatalf("want 1 accepted and %d duplicates, got %d and %d", attempts-1, accepted, duplicate)
	}
	if n := srv.Registry().Count(); n != 1 {
		t.Fatalf("Registry.Count: want 1, got %d", n)
	}
}

func TestServerFull(t *testing.T) {
	srv, st := newTestServer(t, func(c *Config) { c.MaxClients = 1 })
	addUser(t, st, "alice", model.PrivilegeUser)
	addUser(t, st, "bob", model.PrivilegeUser)

	loginAs(t, srv, "alice")
	if _, err := tryLogin(t, srv, "bob", password("bob")); !errors.Is(err, client.ErrServerFull) {
		t.Fatalf("Login(bob): want ErrServerFull, got %v", err)
	}
}

func TestLoginOversizedCredentials(t *testing.T) {
	srv, _ := newTestServer(t)

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(testTimeout))

	r := protocol.NewReader(bufio.NewReader(conn))
	if err := protocol.WriteRequest(conn, protocol.LoginRequest); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	if st, err := r.ReadStatus(); err != nil || st != protocol.LoginEstablished {
		t.Fatalf("ReadStatus: want established, got %v %v", st, err)
	}
	if err := protocol.WriteLine(conn, strings.Repeat("a", protocol.MaxLineLength+10)); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if st, err := r.ReadStatus(); err != nil || st != protocol.LoginIOError {
		t.Fatalf("ReadStatus: want io error, got %v %v", st, err)
	}
}

func TestConnectAnnouncement(t *testing.T) {
	srv, st := newTestServer(t)
	addUser(t, st, "alice", model.PrivilegeUser)
	addUser(t, st, "bob", model.PrivilegeModerator)

	alice := loginAs(t, srv, "alice")
	alice.expect(protocol.GlobalServer, "User alice has just connected!")
	loginAs(t, srv, "bob")
	alice.expect(protocol.GlobalServer, "Moderator bob has just connected!")
}

func TestRegistration(t *testing.T) {
	srv, st := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	addr := srv.Addr().String()

	if err := client.Register(ctx, addr, "newbie", password("newbie")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	level, err := st.PrivilegeOf("newbie")
	if err != nil || level != model.PrivilegeUser {
		t.Fatalf("PrivilegeOf(newbie): want User, got %v %v", level, err)
	}
	banned, _ := st.IsBanned("newbie")
	if banned {
		t.Fatalf("new account must not be banned")
	}

	if err := client.Register(ctx, addr, "newbie", "other"); !errors.Is(err, client.ErrUsernameTaken) {
		t.Fatalf("Register duplicate: want ErrUsernameTaken, got %v", err)
	}
	if err := client.Register(ctx, addr, "has space", "secret"); !errors.Is(err, client.ErrIO) {
		t.Fatalf("Register invalid name: want ErrIO, got %v", err)
	}

	if got := srv.Metrics().Registrations.Load(); got != 1 {
		t.Fatalf("Registrations: want 1, got %d", got)
	}

	newbie := loginAs(t, srv, "newbie")
	newbie.expect(protocol.GlobalServer, "User newbie has just connected!")
}

func TestRegistrationStoreFailure(t *testing.T) {
	srv, st := newTestServer(t)
	st.FailWrites(errors.New("disk full"))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := client.Register(ctx, srv.Addr().String(), "newbie", "secret"); !errors.Is(err, client.ErrIO) {
		t.Fatalf("Register: want ErrIO, got %v", err)
	}
	if ok, _ := st.IsRegistered("newbie"); ok {
		t.Fatalf("failed registration must not create the account")
	}
}

// holdingStore parks the first ban lookup for one user until released.
type holdingStore struct {
	*store.MemoryStore
	user    string
	once    sync.Once
	held    chan struct{}
	release chan struct{}
}

func (h *holdingStore) IsBanned(username string) (bool, error) {
	banned, err := h.MemoryStore.IsBanned(username)
	if username == h.user {
		h.once.Do(func() {
			close(h.held)
			<-h.release
		})
	}
	return banned, err
}

func TestModerationDuringLogin(t *testing.T) {
	tests := []struct {
		name    string
		rank    model.Privilege
		command string
		notice  protocol.Frame
		wantErr error
	}{
		{
			name:    "ban",
			rank:    model.PrivilegeAdmin,
			command: "/ban bob",
			notice:  protocol.Frame{Flag: protocol.Ban, Fields: []string{"'bob' was banned from the server by 'alice'."}},
			wantErr: client.ErrBanned,
		},
		{
			name:    "delete",
			rank:    model.PrivilegeOwner,
			command: "/delete bob",
			notice:  protocol.Frame{Flag: protocol.Delete, Fields: []string{"'bob' was deleted by 'alice'."}},
			wantErr: client.ErrNotRegistered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &holdingStore{
				MemoryStore: store.NewMemory(),
				user:        "bob",
				held:        make(chan struct{}),
				release:     make(chan struct{}),
			}
			srv := New(testConfig(), Dependencies{Store: st})
			if err := srv.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}
			t.Cleanup(func() { _ = srv.Close() })
			addUser(t, st, "alice", tt.rank)
			addUser(t, st, "bob", model.PrivilegeUser)
			alice := loginAs(t, srv, "alice")

			errCh := make(chan error, 1)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
				defer cancel()
				conn, err := client.Login(ctx, srv.Addr().String(), "bob", password("bob"))
				if conn != nil {
					_ = conn.Close()
				}
				errCh <- err
			}()

			select {
			case <-st.held:
			case <-time.After(testTimeout):
				t.Fatalf("bob's login never reached the ban check")
			}
			alice.send(tt.command)
			alice.expect(tt.notice.Flag, tt.notice.Fields...)
			close(st.release)

			if err := <-errCh; !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login(bob): want %v, got %v", tt.wantErr, err)
			}
			if srv.Registry().IsOnline("bob") {
				t.Fatalf("bob is online after %s", tt.name)
			}
		})
	}
}
