package server

import (
	"errors"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/NicolasHaas/chatd/pkg/protocol"
)

// Relay delivers framed messages to live sessions.
// Delivery is best effort per recipient: a failed write closes that
// recipient's transport and never stops delivery to the others.
type Relay struct {
	registry *Registry
	metrics  *Metrics
}

// NewRelay creates a relay over reg. metrics may be nil.
func NewRelay(reg *Registry, metrics *Metrics) *Relay {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Relay{registry: reg, metrics: metrics}
}

// Broadcast sends the frame to every session registered at call time.
func (rl *Relay) Broadcast(flag protocol.Flag, fields ...string) error {
	return rl.deliver(rl.registry.Snapshot(), flag, fields...)
}

// Private sends a client private message to both sender and receiver.
func (rl *Relay) Private(sender, receiver, message string) error {
	var targets []*Session
	for _, name := range []string{sender, receiver} {
		if s, ok := rl.registry.Lookup(name); ok {
			targets = append(targets, s)
		}
		if sender == receiver {
			break
		}
	}
	rl.metrics.PrivateMessages.Add(1)
	return rl.deliver(targets, protocol.PrivateClient, sender, receiver, message)
}

// PrivateServer sends a server message to one user.
func (rl *Relay) PrivateServer(username, message string) error {
	s, ok := rl.registry.Lookup(username)
	if !ok {
		return nil
	}
	return rl.deliver([]*Session{s}, protocol.PrivateServer, message)
}

// Global broadcasts a chat line from sender.
func (rl *Relay) Global(sender, message string) error {
	rl.metrics.GlobalMessages.Add(1)
	return rl.Broadcast(protocol.GlobalClient, sender, message)
}

// GlobalServer broadcasts a server announcement.
func (rl *Relay) GlobalServer(message string) error {
	return rl.Broadcast(protocol.GlobalServer, message)
}

// Notice broadcasts a one-line kick, ban, delete or disconnect announcement.
func (rl *Relay) Notice(flag protocol.Flag, message string) error {
	return rl.Broadcast(flag, message)
}

func (rl *Relay) deliver(targets []*Session, flag protocol.Flag, fields ...string) error {
	for i, f := range fields {
		fields[i] = protocol.Sanitize(f)
	}

	var err error
	for _, s := range targets {
		if serr := s.Send(flag, fields...); serr != nil {
			if errors.Is(serr, ErrSessionClosed) {
				continue
			}
			rl.metrics.WriteFailures.Add(1)
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Username, serr))
		}
	}
	if err != nil {
		slog.Debug("delivery failed", "flag", flag, "recipients", len(targets),
			"failed", len(multierr.Errors(err)), "err", err)
	}
	return err
}
