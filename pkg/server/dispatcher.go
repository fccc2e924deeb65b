package server

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/NicolasHaas/chatd/pkg/model"
	"github.com/NicolasHaas/chatd/pkg/rbac"
)

// Command is a named, privilege-gated server command.
type Command struct {
	Name        string
	Description string
	Usage       []string
	Action      rbac.Action

	// MaxArgs, when positive, stops argument splitting after MaxArgs-1
	// tokens so the last argument keeps its inner whitespace.
	MaxArgs int

	Run func(inv *Invocation)
}

// Required returns the minimum rank needed to invoke the command.
func (c *Command) Required() model.Privilege {
	return rbac.Required(c.Action)
}

// InvalidUsage is the reply for a wrong argument count.
func (c *Command) InvalidUsage() string {
	return fmt.Sprintf("Invalid usage. Type \"/help %s\" for proper command usage.", c.Name)
}

// Invocation is one execution of a command.
type Invocation struct {
	Server  *Server
	Command *Command
	Caller  *Session
	Level   model.Privilege
	Args    []string
}

// Reply sends a private server message to the caller.
func (inv *Invocation) Reply(format string, args ...any) {
	_ = inv.Server.relay.PrivateServer(inv.Caller.Username, fmt.Sprintf(format, args...))
}

// InvalidUsage replies with the command's usage hint.
func (inv *Invocation) InvalidUsage() {
	inv.Reply("%s", inv.Command.InvalidUsage())
}

// Dispatcher resolves command lines against a fixed command table.
type Dispatcher struct {
	srv     *Server
	ordered []*Command
	byName  map[string]*Command
}

// NewDispatcher builds the command table. Names must be unique.
func NewDispatcher(srv *Server, commands ...*Command) *Dispatcher {
	d := &Dispatcher{
		srv:     srv,
		ordered: make([]*Command, 0, len(commands)),
		byName:  make(map[string]*Command, len(commands)),
	}
	for _, c := range commands {
		if _, dup := d.byName[c.Name]; dup {
			panic("server: duplicate command " + c.Name)
		}
		d.byName[c.Name] = c
		d.ordered = append(d.ordered, c)
	}
	return d
}

// Lookup returns the command registered under name.
func (d *Dispatcher) Lookup(name string) (*Command, bool) {
	c, ok := d.byName[name]
	return c, ok
}

// Commands returns the commands in registration order.
func (d *Dispatcher) Commands() []*Command {
	return append([]*Command(nil), d.ordered...)
}

// Dispatch executes a command line (prefix already stripped and trimmed)
// on behalf of caller. Every outcome is reported to the caller privately.
func (d *Dispatcher) Dispatch(caller *Session, line string) {
	reply := func(msg string) { _ = d.srv.relay.PrivateServer(caller.Username, msg) }

	if line == "" {
		reply("Invalid, empty command.")
		return
	}

	name, rest := cutWord(line)
	cmd, ok := d.byName[name]
	if !ok {
		reply(fmt.Sprintf("Invalid command '%s'. For a list of valid commands, type /help", name))
		return
	}

	level, err := d.srv.store.PrivilegeOf(caller.Username)
	if err != nil {
		slog.Error("privilege lookup failed", "user", caller.Username, "command", name, "err", err)
		reply(fmt.Sprintf("IO error while executing '%s'.", name))
		return
	}
	if level < cmd.Required() {
		reply(fmt.Sprintf("You don't have the required privilege to perform the '%s' command.", name))
		return
	}

	d.srv.metrics.Commands.Add(1)
	slog.Debug("command", "user", caller.Username, "command", name)
	cmd.Run(&Invocation{
		Server:  d.srv,
		Command: cmd,
		Caller:  caller,
		Level:   level,
		Args:    splitArgs(rest, cmd.MaxArgs),
	})
}

// cutWord splits s at its first whitespace run.
func cutWord(s string) (word, rest string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// splitArgs splits s on whitespace. With limit > 0 at most limit arguments
// are produced and the last one holds the unsplit remainder.
func splitArgs(s string, limit int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	if limit <= 0 {
		return strings.Fields(s)
	}
	var args []string
	for len(args) < limit-1 {
		word, rest := cutWord(s)
		if rest == "" {
			break
		}
		args = append(args, word)
		s = rest
	}
	return append(args, s)
}
