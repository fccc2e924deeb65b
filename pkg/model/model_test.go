package model

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid simple", "alice", nil},
		{"valid with numbers", "user123", nil},
		{"valid with underscore", "my_user", nil},
		{"valid with hyphen", "my-user", nil},
		{"valid max length", strings.Repeat("a", MaxUsernameLength), nil},
		{"empty", "", ErrUsernameEmpty},
		{"too long", strings.Repeat("a", MaxUsernameLength+1), ErrUsernameTooLong},
		{"contains space", "has space", ErrUsernameInvalidChars},
		{"command prefix", "/help", ErrUsernameInvalidChars},
		{"tab character", "user\tname", ErrUsernameInvalidChars},
		{"newline", "user\nname", ErrUsernameInvalidChars},
		{"carriage return", "user\r", ErrUsernameInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateUsername(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", "hunter2", nil},
		{"spaces allowed", "correct horse battery staple", nil},
		{"max length", strings.Repeat("p", MaxPasswordLength), nil},
		{"empty", "", ErrPasswordEmpty},
		{"too long", strings.Repeat("p", MaxPasswordLength+1), ErrPasswordTooLong},
		{"newline", "pass\nword", ErrPasswordInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidatePassword(tt.input); err != tt.wantErr {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestPrivilegeValid(t *testing.T) {
	tests := []struct {
		name string
		p    Privilege
		want bool
	}{
		{"User", PrivilegeUser, true},
		{"Moderator", PrivilegeModerator, true},
		{"Admin", PrivilegeAdmin, true},
		{"MasterAdmin", PrivilegeMasterAdmin, true},
		{"Owner", PrivilegeOwner, true},
		{"unregistered", PrivilegeUnregistered, false},
		{"five", Privilege(5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Valid(); got != tt.want {
				t.Errorf("Privilege(%d).Valid() = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestPrivilegeString(t *testing.T) {
	tests := []struct {
		p    Privilege
		want string
	}{
		{PrivilegeUser, "User"},
		{PrivilegeModerator, "Moderator"},
		{PrivilegeAdmin, "Admin"},
		{PrivilegeMasterAdmin, "Master Admin"},
		{PrivilegeOwner, "Owner"},
		{PrivilegeUnregistered, "Unregistered"},
		{Privilege(42), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.p.String(); got != tt.want {
				t.Errorf("Privilege(%d).String() = %q, want %q", tt.p, got, tt.want)
			}
		})
	}
}

func TestParsePrivilege(t *testing.T) {
	tests := []struct {
		input   string
		want    Privilege
		wantErr bool
	}{
		{"0", PrivilegeUser, false},
		{"3", PrivilegeMasterAdmin, false},
		{" 4 ", PrivilegeOwner, false},
		{"5", PrivilegeUnregistered, true},
		{"-1", PrivilegeUnregistered, true},
		{"admin", PrivilegeUnregistered, true},
		{"", PrivilegeUnregistered, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePrivilege(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePrivilege(%q): err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPrivilege) {
				t.Fatalf("ParsePrivilege(%q): expected ErrInvalidPrivilege, got %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParsePrivilege(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
