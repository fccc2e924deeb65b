package server

import (
	"strings"
	"testing"

	"github.com/NicolasHaas/chatd/pkg/model"
	"github.com/NicolasHaas/chatd/pkg/protocol"
)

func TestGlobalMessageReachesEveryone(t *testing.T) {
	srv, st := newTestServer(t)
	addUser(t, st, "alice", model.PrivilegeUser)
	addUser(t, st, "bob", model.PrivilegeUser)
	alice := loginAs(t, srv, "alice")
	bob := loginAs(t, srv, "bob")

	alice.send("hello  world ")
	alice.expect(protocol.GlobalClient, "alice", "hello  world ")
	bob.expect(protocol.GlobalClient, "alice", "hello  world ")

	alice.send("")
	bob.expect(protocol.GlobalClient, "alice", "")

	if got := srv.Metrics().GlobalMessages.Load(); got != 2 {
		t.Fatalf("GlobalMessages: want 2, got %d", got)
	}
}

func TestMessagesKeepSenderOrder(t *testing.T) {
	srv, st := newTestServer(t)
	addUser(t, st, "alice", model.PrivilegeUser)
	addUser(t, st, "bob", model.PrivilegeUser)
	alice := loginAs(t, srv, "alice")
	bob := loginAs(t, srv, "bob")
	bob.sync()

	words := []string{"one", "two", "three", "four", "five"}
	for _, w := range words {
		alice.send(w)
	}
	for _, w := range words {
		skipped := bob.until(protocol.GlobalClient, "alice", w)
		if hasFlag(skipped, protocol.GlobalClient) {
			t.Fatalf("bob: out of order before %q: %v", w, skipped)
		}
	}
}

func TestOversizedLineIsRejected(t *testing.T) {
	srv, st := newTestServer(t)
	addUser(t, st, "alice", model.PrivilegeUser)
	alice := loginAs(t, srv, "alice")

	alice.send(strings.Repeat("x", protocol.MaxLineLength*2))
	alice.reply("Message too long.")

	alice.send("after")
	alice.expect(protocol.GlobalClient, "alice", "after")
	if got := srv.Metrics().ProtocolErrors.Load(); got != 1 {
		t.Fatalf("ProtocolErrors: want 1, got %d", got)
	}
}
