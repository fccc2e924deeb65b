package store

import (
	"errors"

	"github.com/NicolasHaas/chatd/pkg/model"
)

var (
	ErrUserNotFound   = errors.New("store: user not found")
	ErrUsernameTaken  = errors.New("store: username taken")
	ErrAlreadyBanned  = errors.New("store: user already banned")
	ErrNotBanned      = errors.New("store: user not banned")
	ErrBadCredentials = errors.New("store: invalid credentials format")
)

// UserStore defines the persistence interface for registered accounts.
// Implementations include the default SQLite store and an in-memory store
// for tests. Username lookups are exact and case sensitive.
type UserStore interface {
	// Close closes the underlying storage connection.
	Close() error

	// CreateUser registers username with the given privilege.
	// Returns ErrUsernameTaken if the name exists.
	CreateUser(username, password string, privilege model.Privilege) (*model.User, error)

	// Register creates a User-level, unbanned account.
	Register(username, password string) error

	// Authenticate reports whether password matches. Unknown users yield (false, nil).
	Authenticate(username, password string) (bool, error)

	// IsRegistered reports whether username has an account.
	IsRegistered(username string) (bool, error)

	// IsBanned reports the ban flag. Unknown users yield (false, nil).
	IsBanned(username string) (bool, error)

	// PrivilegeOf returns the rank, or model.PrivilegeUnregistered for unknown users.
	PrivilegeOf(username string) (model.Privilege, error)

	// SetPrivilege changes the rank. Returns ErrUserNotFound for unknown users.
	SetPrivilege(username string, privilege model.Privilege) error

	// Delete removes the account. Returns ErrUserNotFound for unknown users.
	Delete(username string) error

	// Ban sets the ban flag. Returns ErrAlreadyBanned if already set.
	Ban(username string) error

	// Unban clears the ban flag. Returns ErrNotBanned if not set.
	Unban(username string) error

	// BannedUsernames returns banned usernames in ascending order.
	BannedUsernames() ([]string, error)

	// GetUser retrieves an account. Returns (nil, nil) if not found.
	GetUser(username string) (*model.User, error)

	// ListUsers returns all accounts ordered by username.
	ListUsers() ([]model.User, error)

	// CountUsers returns the number of accounts.
	CountUsers() (int, error)
}

// Compile-time checks.
var (
	_ UserStore = (*Store)(nil)
	_ UserStore = (*MemoryStore)(nil)
)
