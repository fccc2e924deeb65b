package server

import (
	"github.com/NicolasHaas/chatd/pkg/model"
	"github.com/NicolasHaas/chatd/pkg/rbac"
)

// builtinCommands returns the server command table in the order /help lists it.
func builtinCommands() []*Command {
	return []*Command{
		{
			Name:        "help",
			Description: "Lists all of the available server commands.",
			Usage: []string{
				"/help - Lists all of the commands that you can use.",
				"/help <command> - Displays the details about the specified command.",
			},
			Action: rbac.ActionHelp,
			Run:    runHelp,
		},
		{
			Name:        "pm",
			Description: "Sends the private message to the specified client.",
			Usage:       []string{"/pm <username> <message> - Sends the private message to the client with the given username."},
			Action:      rbac.ActionPrivateMessage,
			MaxArgs:     2,
			Run:         runPrivateMessage,
		},
		{
			Name:        "kick",
			Description: "Kicks the specified user from the server.",
			Usage:       []string{"/kick <username> - Kicks the specified client from the server."},
			Action:      rbac.ActionKick,
			Run:         runKick,
		},
		{
			Name:        "ban",
			Description: "Bans the specified client from the server.",
			Usage:       []string{"/ban <username> - Bans the client with the given username."},
			Action:      rbac.ActionBan,
			Run:         runBan,
		},
		{
			Name:        "unban",
			Description: "Un-bans the specified client from the server.",
			Usage:       []string{"/unban <username> - Un-bans the client with the given username."},
			Action:      rbac.ActionUnban,
			Run:         runUnban,
		},
		{
			Name:        "delete",
			Description: "Deletes the specified client account from the server.",
			Usage:       []string{"/delete <username> - Deletes the client account with specified username."},
			Action:      rbac.ActionDelete,
			Run:         runDelete,
		},
		{
			Name:        "set",
			Description: "Promotes the specified client with the specified level privilege.",
			Usage:       []string{"/set <username> <privilege_level>"},
			Action:      rbac.ActionSetPrivilege,
			Run:         runSetPrivilege,
		},
		{
			Name:        "banlist",
			Description: "Displays the list of all the banned usernames.",
			Usage:       []string{"/banlist - Displays the list of all the banned usernames."},
			Action:      rbac.ActionListBans,
			Run:         runBanList,
		},
	}
}

// peerCheck holds the replies for the shared target checks of a
// peer-targeting command.
type peerCheck struct {
	self   string // reply when the caller targets itself
	verb   string // used in "You do not have the permission to <verb> client 'X'."
	failed string // reply prefix when the store cannot be read
}

// checkPeer validates the target of a peer-targeting command in order:
// not the caller, registered, strictly outranked by the caller. It returns
// the target's level and whether the command may proceed.
func (inv *Invocation) checkPeer(target string, pc peerCheck) (model.Privilege, bool) {
	if target == inv.Caller.Username {
		inv.Reply("%s", pc.self)
		return model.PrivilegeUnregistered, false
	}
	level, err := inv.Server.store.PrivilegeOf(target)
	if err != nil {
		inv.Reply("%s '%s'.", pc.failed, target)
		return model.PrivilegeUnregistered, false
	}
	if level == model.PrivilegeUnregistered {
		inv.Reply("Client '%s' is not registered.", target)
		return level, false
	}
	if !rbac.Outranks(inv.Level, level) {
		inv.Reply("You do not have the permission to %s client '%s'.", pc.verb, target)
		return level, false
	}
	return level, true
}
