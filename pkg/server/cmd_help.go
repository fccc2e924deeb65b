package server

import (
	"strings"

	"github.com/NicolasHaas/chatd/pkg/rbac"
)

func runHelp(inv *Invocation) {
	switch len(inv.Args) {
	case 0:
		var names []string
		for _, c := range inv.Server.dispatcher.Commands() {
			if rbac.Allowed(inv.Level, c.Action) {
				names = append(names, c.Name)
			}
		}
		inv.Reply("Valid commands are: %s", strings.Join(names, ", "))
	case 1:
		name := inv.Args[0]
		c, ok := inv.Server.dispatcher.Lookup(name)
		if !ok {
			inv.Reply("Unknown command '%s'.", name)
			return
		}
		inv.Reply("\t%s - %s", c.Name, c.Description)
		for _, usage := range c.Usage {
			inv.Reply("%s", usage)
		}
	default:
		inv.InvalidUsage()
	}
}
