package client

import (
	"errors"
	"fmt"

	"github.com/NicolasHaas/chatd/pkg/protocol"
)

// Format renders a frame as one display line.
func Format(f protocol.Frame) string {
	switch f.Flag {
	case protocol.PrivateClient:
		return fmt.Sprintf("[%s -> %s]: %s", f.Field(0), f.Field(1), f.Field(2))
	case protocol.GlobalClient:
		return fmt.Sprintf("%s: %s", f.Field(0), f.Field(1))
	case protocol.PrivateServer:
		return "[SERVER -> you]: " + f.Field(0)
	case protocol.GlobalServer:
		return "[SERVER]: " + f.Field(0)
	case protocol.Disconnect, protocol.Kick, protocol.Ban, protocol.Delete:
		return f.Field(0)
	case protocol.Kicked:
		return fmt.Sprintf("You were kicked from the server by '%s'.", f.Field(0))
	case protocol.Banned:
		return fmt.Sprintf("You were banned from the server by '%s'.", f.Field(0))
	case protocol.Deleted:
		return fmt.Sprintf("Your account was deleted by '%s'.", f.Field(0))
	default:
		return fmt.Sprintf("<unknown frame %d>", byte(f.Flag))
	}
}

// Describe returns the user-facing text for a handshake error.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrServerFull):
		return "Server is full."
	case errors.Is(err, ErrAlreadyLoggedIn):
		return "You are already logged in."
	case errors.Is(err, ErrBanned):
		return "You are banned from the server."
	case errors.Is(err, ErrNotRegistered):
		return "Given username is not registered."
	case errors.Is(err, ErrWrongPassword):
		return "Wrong password."
	case errors.Is(err, ErrUsernameTaken):
		return "Username is already taken."
	case errors.Is(err, ErrIO):
		return "Error establishing the connection with the server."
	default:
		return err.Error()
	}
}
