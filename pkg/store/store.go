// Package store provides persistence for chatd user accounts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/chatd/pkg/crypto"
	"github.com/NicolasHaas/chatd/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// Store is the SQLite-backed UserStore.
// All mutations are serialized by a single writer lock so read-modify-write
// sequences (ban, unban, set, delete) cannot lose updates.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) a SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT    NOT NULL UNIQUE CHECK(length(username) > 0 AND length(username) <= 32),
		password_hash TEXT    NOT NULL,
		privilege     INTEGER NOT NULL DEFAULT 0 CHECK(privilege >= 0 AND privilege <= 4),
		created_at    TEXT    NOT NULL DEFAULT (datetime('now'))
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version      int
		statements   []string
		ignoreErrors bool
	}{
		{
			version:    1,
			statements: []string{schema},
		},
		{
			version: 2,
			statements: []string{
				"ALTER TABLE users ADD COLUMN banned INTEGER NOT NULL DEFAULT 0",
			},
			ignoreErrors: true,
		},
		{
			version: 3,
			statements: []string{
				"CREATE INDEX IF NOT EXISTS idx_users_banned ON users(banned)",
			},
			ignoreErrors: true,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if err := s.execMigration(ctx, stmt, m.ignoreErrors); err != nil {
				return err
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
		slog.Debug("applied schema migration", "version", m.version)
	}
	return nil
}

func (s *Store) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("store: create schema_migrations: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("store: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("store: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *Store) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("store: read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("store: update schema version: %w", err)
	}
	return nil
}

func (s *Store) execMigration(ctx context.Context, stmt string, ignoreErrors bool) error {
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		if ignoreErrors {
			return nil
		}
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func validateCredentials(username, password string) error {
	if err := model.ValidateUsername(username); err != nil {
		return fmt.Errorf("%w: %w", ErrBadCredentials, err)
	}
	if err := model.ValidatePassword(password); err != nil {
		return fmt.Errorf("%w: %w", ErrBadCredentials, err)
	}
	return nil
}

// ---- Users ----

// CreateUser validates the credentials, hashes the password and inserts the account.
func (s *Store) CreateUser(username, password string, privilege model.Privilege) (*model.User, error) {
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

	now := time.Now().UTC()
	_, err = s.db.ExecContext(context.Background(),
		"INSERT INTO users (username, password_hash, privilege, banned, created_at) VALUES (?, ?, ?, 0, ?)",
		username, hash, int(privilege), formatDBTime(now))
	if isUniqueViolation(err) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return &model.User{
		Username:     username,
		PasswordHash: hash,
		Privilege:    privilege,
		CreatedAt:    now.Truncate(time.Second),
	}, nil
}

// Register creates a User-level account.
func (s *Store) Register(username, password string) error {
	_, err := s.CreateUser(username, password, model.PrivilegeUser)
	return err
}

// GetUser retrieves an account by username.
func (s *Store) GetUser(username string) (*model.User, error) {
	u := &model.User{}
	var privilege int
	var banned bool
	var createdAt string
	err := s.db.QueryRowContext(context.Background(),
		"SELECT username, password_hash, privilege, banned, created_at FROM users WHERE username = ?", username).
		Scan(&u.Username, &u.PasswordHash, &privilege, &banned, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	u.Privilege = model.Privilege(privilege)
	u.Banned = banned
	if u.CreatedAt, err = parseDBTime(createdAt); err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return u, nil
}

// Authenticate checks password against the stored hash.
func (s *Store) Authenticate(username, password string) (bool, error) {
	u, err := s.GetUser(username)
	if err != nil || u == nil {
		return false, err
	}
	ok, err := crypto.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("store: authenticate: %w", err)
	}
	return ok, nil
}

// IsRegistered reports whether username exists.
func (s *Store) IsRegistered(username string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&n); err != nil {
		return false, fmt.Errorf("store: is registered: %w", err)
	}
	return n > 0, nil
}

// IsBanned reports the ban flag of username.
func (s *Store) IsBanned(username string) (bool, error) {
	var banned bool
	err := s.db.QueryRowContext(context.Background(),
		"SELECT banned FROM users WHERE username = ?", username).Scan(&banned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: is banned: %w", err)
	}
	return banned, nil
}

// PrivilegeOf returns the rank of username.
func (s *Store) PrivilegeOf(username string) (model.Privilege, error) {
	var privilege int
	err := s.db.QueryRowContext(context.Background(),
		"SELECT privilege FROM users WHERE username = ?", username).Scan(&privilege)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PrivilegeUnregistered, nil
	}
	if err != nil {
		return model.PrivilegeUnregistered, fmt.Errorf("store: privilege of: %w", err)
	}
	return model.Privilege(privilege), nil
}

// SetPrivilege changes the rank of username.
func (s *Store) SetPrivilege(username string, privilege model.Privilege) error {
	if !privilege.Valid() {
		return fmt.Errorf("store: set privilege: %w", model.ErrInvalidPrivilege)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateOne("set privilege", "UPDATE users SET privilege = ? WHERE username = ?", int(privilege), username)
}

// Delete removes the account.
func (s *Store) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateOne("delete", "DELETE FROM users WHERE username = ?", username)
}

// Ban sets the ban flag.
func (s *Store) Ban(username string) error {
	return s.setBanned(username, true)
}

// Unban clears the ban flag.
func (s *Store) Unban(username string) error {
	return s.setBanned(username, false)
}

func (s *Store) setBanned(username string, banned bool) error {
	op := "unban"
	if banned {
		op = "ban"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.IsBanned(username)
	if err != nil {
		return err
	}
	if ok, err := s.IsRegistered(username); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("store: %s: %w", op, ErrUserNotFound)
	}
	if current == banned {
		if banned {
			return ErrAlreadyBanned
		}
		return ErrNotBanned
	}
	flag := 0
	if banned {
		flag = 1
	}
	return s.updateOne(op, "UPDATE users SET banned = ? WHERE username = ?", flag, username)
}

// updateOne runs a statement that must affect exactly one account row.
// Callers hold s.mu.
func (s *Store) updateOne(op, query string, args ...any) error {
	res, err := s.db.ExecContext(context.Background(), query, args...)
	if err != nil {
		return fmt.Errorf("store: %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s: %w", op, ErrUserNotFound)
	}
	return nil
}

// BannedUsernames returns banned usernames in ascending order.
func (s *Store) BannedUsernames() ([]string, error) {
	rows, err := s.db.QueryContext(context.Background(), "SELECT username FROM users WHERE banned = 1 ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("store: banned usernames: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: scan banned: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListUsers returns all accounts ordered by username.
func (s *Store) ListUsers() ([]model.User, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT username, password_hash, privilege, banned, created_at FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		var u model.User
		var privilege int
		var createdAt string
		if err := rows.Scan(&u.Username, &u.PasswordHash, &privilege, &u.Banned, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		u.Privilege = model.Privilege(privilege)
		parsed, err := parseDBTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		u.CreatedAt = parsed
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of accounts.
func (s *Store) CountUsers() (int, error) {
	var n int
	if err := s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count users: %w", err)
	}
	return n, nil
}
