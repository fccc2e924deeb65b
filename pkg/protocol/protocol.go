// Package protocol defines the chatd wire format: single-byte handshake
// requests and statuses, and the flag-framed session stream.
//
// Handshake (client -> server): one Request byte; for login the server
// answers Established or ServerFull, then the client sends username and
// password as lines and receives one final login Status. Registration
// sends the two lines right away and receives one registration Status.
//
// Session stream (server -> client): one Flag byte followed by exactly
// FieldCount(flag) newline-terminated fields. Client -> server traffic is
// plain lines.
package protocol

import "fmt"

// Request is the first byte a client sends on a new connection.
type Request byte

const (
	LoginRequest        Request = 3
	RegistrationRequest Request = 4
)

func (r Request) String() string {
	switch r {
	case LoginRequest:
		return "login"
	case RegistrationRequest:
		return "registration"
	default:
		return fmt.Sprintf("request(%d)", byte(r))
	}
}

// Status is a handshake reply byte.
type Status byte

// Login statuses.
const (
	LoginIOError         Status = 32
	LoginEstablished     Status = 33
	LoginServerFull      Status = 34
	LoginAccepted        Status = 35
	LoginAlreadyLoggedIn Status = 36
	LoginBanned          Status = 37
	LoginWrongPassword   Status = 38
	LoginNotRegistered   Status = 39
)

// Registration statuses.
const (
	RegistrationIOError       Status = 40
	RegistrationUsernameTaken Status = 41
	RegistrationSucceeded     Status = 42
)

var statusNames = map[Status]string{
	LoginIOError:              "login io error",
	LoginEstablished:          "established",
	LoginServerFull:           "server full",
	LoginAccepted:             "accepted",
	LoginAlreadyLoggedIn:      "already logged in",
	LoginBanned:               "banned",
	LoginWrongPassword:        "wrong password",
	LoginNotRegistered:        "not registered",
	RegistrationIOError:       "registration io error",
	RegistrationUsernameTaken: "username taken",
	RegistrationSucceeded:     "registration succeeded",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", byte(s))
}

// Flag discriminates a framed session-stream message.
type Flag byte

const (
	PrivateClient Flag = 43 // sender, receiver, message
	PrivateServer Flag = 44 // message
	GlobalClient  Flag = 45 // sender, message
	GlobalServer  Flag = 46 // message
	Disconnect    Flag = 47 // announcement
	Kick          Flag = 48 // announcement
	Ban           Flag = 49 // announcement
	Delete        Flag = 50 // announcement
	Kicked        Flag = 51 // kicker
	Banned        Flag = 52 // banner
	Deleted       Flag = 53 // deleter
)

var flagSpecs = map[Flag]struct {
	name   string
	fields int
}{
	PrivateClient: {"private-client", 3},
	PrivateServer: {"private-server", 1},
	GlobalClient:  {"global-client", 2},
	GlobalServer:  {"global-server", 1},
	Disconnect:    {"disconnect", 1},
	Kick:          {"kick", 1},
	Ban:           {"ban", 1},
	Delete:        {"delete", 1},
	Kicked:        {"kicked", 1},
	Banned:        {"banned", 1},
	Deleted:       {"deleted", 1},
}

// FieldCount returns the number of payload lines that follow flag.
// ok is false for flags outside the vocabulary.
func FieldCount(f Flag) (n int, ok bool) {
	spec, ok := flagSpecs[f]
	return spec.fields, ok
}

// IsTerminal reports whether f ends the receiving session.
func (f Flag) IsTerminal() bool {
	return f == Kicked || f == Banned || f == Deleted
}

func (f Flag) String() string {
	if spec, ok := flagSpecs[f]; ok {
		return spec.name
	}
	return fmt.Sprintf("flag(%d)", byte(f))
}

// CommandPrefix marks a client line as a command.
const CommandPrefix = "/"
