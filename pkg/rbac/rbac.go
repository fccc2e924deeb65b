// Package rbac provides privilege checks for chat actions.
package rbac

import "github.com/NicolasHaas/chatd/pkg/model"

// Action is something a session may attempt on the server.
type Action int

const (
	ActionHelp Action = iota
	ActionPrivateMessage
	ActionKick
	ActionBan
	ActionUnban
	ActionDelete
	ActionSetPrivilege
	ActionListBans
)

// minimumRank maps each action to the lowest rank allowed to attempt it.
// ActionSetPrivilege is open to every rank; Outranks and CanGrant gate it.
var minimumRank = map[Action]model.Privilege{
	ActionHelp:           model.PrivilegeUser,
	ActionPrivateMessage: model.PrivilegeUser,
	ActionKick:           model.PrivilegeModerator,
	ActionBan:            model.PrivilegeAdmin,
	ActionUnban:          model.PrivilegeAdmin,
	ActionDelete:         model.PrivilegeOwner,
	ActionSetPrivilege:   model.PrivilegeUser,
	ActionListBans:       model.PrivilegeAdmin,
}

// Required returns the minimum rank for an action. Unknown actions require Owner.
func Required(a Action) model.Privilege {
	if p, ok := minimumRank[a]; ok {
		return p
	}
	return model.PrivilegeOwner
}

// Allowed reports whether rank p may attempt action a.
func Allowed(p model.Privilege, a Action) bool {
	return p.Valid() && p >= Required(a)
}

// Outranks reports whether actor is strictly above target.
// Peer-targeting actions require it so equal ranks cannot act on each other.
func Outranks(actor, target model.Privilege) bool {
	return actor.Valid() && actor > target
}

// CanGrant reports whether actor may assign level to someone else.
// A rank can only hand out levels strictly below its own.
func CanGrant(actor, level model.Privilege) bool {
	return level.Valid() && actor > level
}
