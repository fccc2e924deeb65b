package model

import (
	"errors"
	"fmt"
	"time"
)

const MaxUsernameLength = 32

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must contain only alphanumeric characters, underscores, or hyphens")

// User is a registered account as held by the user store.
type User struct {
	Username     string    `json:"username" yaml:"username"`
	PasswordHash string    `json:"-" yaml:"-"`
	Privilege    Privilege `json:"privilege" yaml:"privilege"`
	Banned       bool      `json:"banned" yaml:"banned"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// Rank returns the display name of the user's privilege.
func (u User) Rank() string {
	return u.Privilege.String()
}

// ValidateUsername checks that a username is 1-32 ASCII alphanumeric, underscore,
// or hyphen characters. Returns nil on success or a descriptive error.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}
