package server

import (
	"log/slog"
	"strings"
)

func runBanList(inv *Invocation) {
	if len(inv.Args) != 0 {
		inv.InvalidUsage()
		return
	}

	banned, err := inv.Server.store.BannedUsernames()
	if err != nil {
		slog.Error("ban list failed", "err", err)
		inv.Reply("IO error while executing '%s'.", inv.Command.Name)
		return
	}
	if len(banned) == 0 {
		inv.Reply("There are no banned clients.")
		return
	}
	inv.Reply("Banned clients: %s", strings.Join(banned, ", "))
}
