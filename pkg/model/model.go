// Package model defines the core domain types for chatd.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Privilege is a user's rank. Ranks are strictly ordered.
type Privilege int

const (
	PrivilegeUser        Privilege = iota // Chat and private messages
	PrivilegeModerator                    // Can kick
	PrivilegeAdmin                        // Can ban, unban and list bans
	PrivilegeMasterAdmin                  // Can promote up to Admin
	PrivilegeOwner                        // Can delete accounts

	// PrivilegeUnregistered is reported for usernames the store does not know.
	PrivilegeUnregistered Privilege = -1
)

// MaxPrivilege is the highest defined rank.
const MaxPrivilege = PrivilegeOwner

var ErrInvalidPrivilege = fmt.Errorf("privilege level must be an integer in range from 0 to %d", MaxPrivilege)

var rankNames = [...]string{"User", "Moderator", "Admin", "Master Admin", "Owner"}

// String returns the display name of the rank ("Master Admin", "Owner", ...).
func (p Privilege) String() string {
	if !p.Valid() {
		if p == PrivilegeUnregistered {
			return "Unregistered"
		}
		return "Unknown"
	}
	return rankNames[p]
}

// Valid returns true if p is one of the five defined ranks.
func (p Privilege) Valid() bool {
	return p >= PrivilegeUser && p <= MaxPrivilege
}

// ParsePrivilege parses a decimal rank. Only values 0..MaxPrivilege are accepted.
func ParsePrivilege(s string) (Privilege, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return PrivilegeUnregistered, ErrInvalidPrivilege
	}
	p := Privilege(n)
	if !p.Valid() {
		return PrivilegeUnregistered, ErrInvalidPrivilege
	}
	return p, nil
}

// MaxPasswordLength bounds credential lines read during the handshake.
const MaxPasswordLength = 128

var ErrPasswordEmpty = errors.New("password must not be empty")
var ErrPasswordTooLong = fmt.Errorf("password must not exceed %d bytes", MaxPasswordLength)
var ErrPasswordInvalidChars = errors.New("password must not contain line breaks")

// ValidatePassword checks that a password fits on one protocol line.
func ValidatePassword(pw string) error {
	if len(pw) == 0 {
		return ErrPasswordEmpty
	}
	if len(pw) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if strings.ContainsAny(pw, "\r\n") {
		return ErrPasswordInvalidChars
	}
	return nil
}
