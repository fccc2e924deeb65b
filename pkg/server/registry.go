package server

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/NicolasHaas/chatd/pkg/protocol"
)

var (
	// ErrAlreadyOnline is returned when a username already has a live session.
	ErrAlreadyOnline = errors.New("server: user already online")
	// ErrAdmissionRefused is returned by Add when confirm withdrew the session.
	ErrAdmissionRefused = errors.New("server: admission refused")
)

// Registry holds the live sessions keyed by username.
// At most one session per username exists at any time.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	events   *Events
}

// NewRegistry creates an empty registry that reports to events (may be nil).
func NewRegistry(events *Events) *Registry {
	if events == nil {
		events = &Events{}
	}
	return &Registry{
		sessions: make(map[string]*Session),
		events:   events,
	}
}

// Add inserts s unless its username is already online, then notifies
// connected listeners.
//
// When confirm is non-nil it runs right after the insert with s's write lock
// held, and the status it returns is written to the client before any other
// frame can reach it. Any status other than LoginAccepted withdraws s and
// closes it.
func (r *Registry) Add(s *Session, confirm func() protocol.Status) error {
	if err := r.admit(s, confirm); err != nil {
		return err
	}
	r.events.emitConnected(s.Username)
	return nil
}

func (r *Registry) admit(s *Session, confirm func() protocol.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := r.insert(s); err != nil {
		return err
	}
	if confirm == nil {
		return nil
	}
	status := confirm()
	err := s.writeStatusLocked(status)
	if err == nil && status != protocol.LoginAccepted {
		err = fmt.Errorf("%w: %s", ErrAdmissionRefused, status)
	}
	if err != nil {
		r.delete(s)
		_ = s.closeLocked()
		return err
	}
	return nil
}

// Remove deletes s if it is the registered session for its username and
// notifies disconnected listeners. It reports whether s was removed.
func (r *Registry) Remove(s *Session) bool {
	if !r.delete(s) {
		return false
	}
	r.events.emitDisconnected(s.Username)
	return true
}

func (r *Registry) insert(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.Username]; exists {
		slog.Warn("session already registered", "user", s.Username, "conn", s.ID)
		return ErrAlreadyOnline
	}
	r.sessions[s.Username] = s
	return nil
}

func (r *Registry) delete(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.Username]; !ok || cur != s {
		return false
	}
	delete(r.sessions, s.Username)
	return true
}

// Lookup returns the live session for username.
func (r *Registry) Lookup(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[username]
	return s, ok
}

// IsOnline reports whether username has a live session.
func (r *Registry) IsOnline(username string) bool {
	_, ok := r.Lookup(username)
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the live sessions ordered by username. The slice is a
// copy; later registry changes do not affect it.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result
}

// Usernames returns the online usernames in ascending order.
func (r *Registry) Usernames() []string {
	snap := r.Snapshot()
	names := make([]string, len(snap))
	for i, s := range snap {
		names[i] = s.Username
	}
	return names
}
