package server

import (
	"errors"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/chatd/pkg/protocol"
)

// readFrames reads n frames from peer in the background.
func readFrames(peer net.Conn, n int) <-chan []protocol.Frame {
	out := make(chan []protocol.Frame, 1)
	go func() {
		r := protocol.NewReader(peer)
		var frames []protocol.Frame
		for i := 0; i < n; i++ {
			f, err := r.ReadFrame()
			if err != nil {
				break
			}
			frames = append(frames, f)
		}
		out <- frames
	}()
	return out
}

func TestRelayPrivateReachesBothEnds(t *testing.T) {
	reg := NewRegistry(nil)
	metrics := NewMetrics()
	relay := NewRelay(reg, metrics)

	alice, alicePeer := pipeSession(t, "alice")
	bob, bobPeer := pipeSession(t, "bob")
	carol, _ := pipeSession(t, "carol")
	for _, s := range []*Session{alice, bob, carol} {
		if err := reg.Add(s, nil); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	aliceGot := readFrames(alicePeer, 1)
	bobGot := readFrames(bobPeer, 1)
	if err := relay.Private("alice", "bob", "line\nbreak"); err != nil {
		t.Fatalf("Private: %v", err)
	}

	want := []protocol.Frame{{Flag: protocol.PrivateClient, Fields: []string{"alice", "bob", "line break"}}}
	if diff := cmp.Diff(want, <-aliceGot); diff != "" {
		t.Fatalf("alice frames (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, <-bobGot); diff != "" {
		t.Fatalf("bob frames (-want +got):\n%s", diff)
	}
	if got := metrics.PrivateMessages.Load(); got != 1 {
		t.Fatalf("PrivateMessages: want 1, got %d", got)
	}
}

func TestRelayBroadcastSurvivesFailedRecipient(t *testing.T) {
	reg := NewRegistry(nil)
	metrics := NewMetrics()
	relay := NewRelay(reg, metrics)

	alice, alicePeer := pipeSession(t, "alice")
	bob, bobPeer := pipeSession(t, "bob")
	_ = reg.Add(alice, nil)
	_ = reg.Add(bob, nil)

	_ = alicePeer.Close()
	bobGot := readFrames(bobPeer, 1)

	err := relay.GlobalServer("hello")
	if err == nil {
		t.Fatalf("GlobalServer: want delivery error for alice")
	}
	want := []protocol.Frame{{Flag: protocol.GlobalServer, Fields: []string{"hello"}}}
	if diff := cmp.Diff(want, <-bobGot); diff != "" {
		t.Fatalf("bob frames (-want +got):\n%s", diff)
	}
	if got := metrics.WriteFailures.Load(); got != 1 {
		t.Fatalf("WriteFailures: want 1, got %d", got)
	}

	// The failed recipient's transport is closed; later sends skip it quietly.
	if err := alice.Send(protocol.GlobalServer, "again"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Send after failure: want ErrSessionClosed, got %v", err)
	}
}

func TestRelayPrivateServerOffline(t *testing.T) {
	relay := NewRelay(NewRegistry(nil), nil)
	if err := relay.PrivateServer("ghost", "hi"); err != nil {
		t.Fatalf("PrivateServer to offline user: %v", err)
	}
}

func TestSessionTerminateIsFinal(t *testing.T) {
	sess, peer := pipeSession(t, "bob")
	got := readFrames(peer, 2)

	if err := sess.Terminate(protocol.Kicked, "mod"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if !sess.Terminated() {
		t.Fatalf("Terminated: want true")
	}
	if err := sess.Send(protocol.GlobalServer, "late"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Send after Terminate: want ErrSessionClosed, got %v", err)
	}
	if err := sess.Terminate(protocol.Banned, "adam"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("second Terminate: want ErrSessionClosed, got %v", err)
	}

	want := []protocol.Frame{{Flag: protocol.Kicked, Fields: []string{"mod"}}}
	if diff := cmp.Diff(want, <-got); diff != "" {
		t.Fatalf("frames (-want +got):\n%s", diff)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close after Terminate: %v", err)
	}
}
