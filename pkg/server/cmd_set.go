package server

import (
	"fmt"
	"log/slog"

	"github.com/NicolasHaas/chatd/pkg/model"
	"github.com/NicolasHaas/chatd/pkg/rbac"
)

func runSetPrivilege(inv *Invocation) {
	if len(inv.Args) != 2 {
		inv.InvalidUsage()
		return
	}
	setter, subject := inv.Caller.Username, inv.Args[0]

	if subject == setter {
		inv.Reply("You cannot change your own privilege level.")
		return
	}

	level, err := model.ParsePrivilege(inv.Args[1])
	if err != nil {
		inv.Reply("Privilege level must be an integer in range from 0 to %d.", model.MaxPrivilege)
		return
	}

	current, err := inv.Server.store.PrivilegeOf(subject)
	if err != nil {
		slog.Error("privilege lookup failed", "user", subject, "err", err)
		inv.Reply("Error setting the privilege. Is the client '%s' registered?", subject)
		return
	}
	if !rbac.Outranks(inv.Level, current) {
		inv.Reply("Cannot change privilege level of a client with privilege level equal or higher to yours.")
		return
	}
	if !rbac.CanGrant(inv.Level, level) {
		inv.Reply("You do not have the permission to grant privilege level '%s'.", level)
		return
	}
	if level == current {
		inv.Reply("Subject already has the privilege level '%s'.", level)
		return
	}

	if err := inv.Server.store.SetPrivilege(subject, level); err != nil {
		slog.Warn("set privilege failed", "user", subject, "level", int(level), "by", setter, "err", err)
		inv.Reply("Error setting the privilege. Is the client '%s' registered?", subject)
		return
	}

	verb := "demoted"
	if level > current {
		verb = "promoted"
	}
	inv.Server.metrics.PrivilegeChanges.Add(1)
	inv.Server.announce(fmt.Sprintf("'%s' has %s '%s' to %s.", setter, verb, subject, level))
}
