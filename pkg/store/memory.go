package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/NicolasHaas/chatd/pkg/crypto"
	"github.com/NicolasHaas/chatd/pkg/model"
)

// MemoryStore provides an in-memory UserStore implementation for tests.
// It mirrors SQLite behavior for validation and error handling.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	users map[string]*model.User

	failWrites error
}

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// FailWrites makes every later mutation return err. A nil err clears it.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	s.failWrites = err
	s.mu.Unlock()
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:   now,
		users: make(map[string]*model.User),
	}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateUser validates the credentials, hashes the password and stores the account.
func (s *MemoryStore) CreateUser(username, password string, privilege model.Privilege) (*model.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	if !privilege.Valid() {
		return nil, fmt.Errorf("store: create user: %w", model.ErrInvalidPrivilege)
	}
	hash, err := crypto.EncodePassword(password)
	if err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return nil, fmt.Errorf("store: create user: %w", s.failWrites)
	}
	if _, exists := s.users[username]; exists {
		return nil, ErrUsernameTaken
	}
	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		Privilege:    privilege,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	s.users[username] = user
	copyUser := *user
	return &copyUser, nil
}

// Register creates a User-level account.
func (s *MemoryStore) Register(username, password string) error {
	_, err := s.CreateUser(username, password, model.PrivilegeUser)
	return err
}

// GetUser retrieves an account by username.
func (s *MemoryStore) GetUser(username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	copyUser := *user
	return &copyUser, nil
}

// Authenticate checks password against the stored hash.
func (s *MemoryStore) Authenticate(username, password string) (bool, error) {
	u, _ := s.GetUser(username)
	if u == nil {
		return false, nil
	}
	ok, err := crypto.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("store: authenticate: %w", err)
	}
	return ok, nil
}

// IsRegistered reports whether username exists.
func (s *MemoryStore) IsRegistered(username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok, nil
}

// IsBanned reports the ban flag of username.
func (s *MemoryStore) IsBanned(username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	return ok && user.Banned, nil
}

// PrivilegeOf returns the rank of username.
func (s *MemoryStore) PrivilegeOf(username string) (model.Privilege, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return model.PrivilegeUnregistered, nil
	}
	return user.Privilege, nil
}

// SetPrivilege changes the rank of username.
func (s *MemoryStore) SetPrivilege(username string, privilege model.Privilege) error {
	if !privilege.Valid() {
		return fmt.Errorf("store: set privilege: %w", model.ErrInvalidPrivilege)
	}
	return s.mutate("set privilege", username, func(u *model.User) error {
		u.Privilege = privilege
		return nil
	})
}

// Delete removes the account.
func (s *MemoryStore) Delete(username string) error {
	return s.mutate("delete", username, func(_ *model.User) error {
		delete(s.users, username)
		return nil
	})
}

// Ban sets the ban flag.
func (s *MemoryStore) Ban(username string) error {
	return s.mutate("ban", username, func(u *model.User) error {
		if u.Banned {
			return ErrAlreadyBanned
		}
		u.Banned = true
		return nil
	})
}

// Unban clears the ban flag.
func (s *MemoryStore) Unban(username string) error {
	return s.mutate("unban", username, func(u *model.User) error {
		if !u.Banned {
			return ErrNotBanned
		}
		u.Banned = false
		return nil
	})
}

func (s *MemoryStore) mutate(op, username string, fn func(u *model.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return fmt.Errorf("store: %s: %w", op, ErrUserNotFound)
	}
	if s.failWrites != nil {
		return fmt.Errorf("store: %s: %w", op, s.failWrites)
	}
	return fn(user)
}

// BannedUsernames returns banned usernames in ascending order.
func (s *MemoryStore) BannedUsernames() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name, u := range s.users {
		if u.Banned {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListUsers returns all accounts ordered by username.
func (s *MemoryStore) ListUsers() ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// CountUsers returns the number of accounts.
func (s *MemoryStore) CountUsers() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}
