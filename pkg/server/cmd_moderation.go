package server

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/NicolasHaas/chatd/pkg/protocol"
	"github.com/NicolasHaas/chatd/pkg/store"
)

func runKick(inv *Invocation) {
	if len(inv.Args) != 1 {
		inv.InvalidUsage()
		return
	}
	kicker, kicked := inv.Caller.Username, inv.Args[0]

	if _, ok := inv.checkPeer(kicked, peerCheck{
		self:   "You cannot kick yourself.",
		verb:   "kick",
		failed: "IO error while kicking",
	}); !ok {
		return
	}

	if !inv.Server.evict(kicked, protocol.Kicked, kicker) {
		inv.Reply("Client '%s' is not online.", kicked)
		return
	}

	inv.Server.metrics.Kicks.Add(1)
	_ = inv.Server.relay.Notice(protocol.Kick, fmt.Sprintf("'%s' was kicked from the server by '%s'.", kicked, kicker))
	inv.Server.logf("'%s' was kicked by '%s'.", kicked, kicker)
}

func runBan(inv *Invocation) {
	if len(inv.Args) != 1 {
		inv.InvalidUsage()
		return
	}
	banner, banned := inv.Caller.Username, inv.Args[0]

	if _, ok := inv.checkPeer(banned, peerCheck{
		self:   "You cannot ban yourself.",
		verb:   "ban",
		failed: "IO error while banning",
	}); !ok {
		return
	}

	if err := inv.Server.store.Ban(banned); err != nil {
		if errors.Is(err, store.ErrAlreadyBanned) {
			inv.Reply("Client '%s' is already banned.", banned)
			return
		}
		slog.Error("ban failed", "user", banned, "by", banner, "err", err)
		inv.Reply("IO error while banning '%s'.", banned)
		return
	}

	inv.Server.evict(banned, protocol.Banned, banner)
	inv.Server.metrics.Bans.Add(1)
	_ = inv.Server.relay.Notice(protocol.Ban, fmt.Sprintf("'%s' was banned from the server by '%s'.", banned, banner))
	inv.Server.logf("'%s' was banned by '%s'.", banned, banner)
}

func runUnban(inv *Invocation) {
	if len(inv.Args) != 1 {
		inv.InvalidUsage()
		return
	}
	unbanner, unbanned := inv.Caller.Username, inv.Args[0]

	if _, ok := inv.checkPeer(unbanned, peerCheck{
		self:   "You cannot un-ban yourself.",
		verb:   "un-ban",
		failed: "IO error while un-banning",
	}); !ok {
		return
	}

	if err := inv.Server.store.Unban(unbanned); err != nil {
		if errors.Is(err, store.ErrNotBanned) {
			inv.Reply("Client '%s' is already un-banned.", unbanned)
			return
		}
		slog.Error("unban failed", "user", unbanned, "by", unbanner, "err", err)
		inv.Reply("IO error while un-banning '%s'.", unbanned)
		return
	}

	inv.Server.metrics.Unbans.Add(1)
	inv.Reply("Successfully un-banned '%s'.", unbanned)
	inv.Server.logf("'%s' was un-banned by '%s'.", unbanned, unbanner)
}

func runDelete(inv *Invocation) {
	if len(inv.Args) != 1 {
		inv.InvalidUsage()
		return
	}
	deleter, deleted := inv.Caller.Username, inv.Args[0]

	if _, ok := inv.checkPeer(deleted, peerCheck{
		self:   "You cannot delete your own account.",
		verb:   "delete",
		failed: "IO error while deleting",
	}); !ok {
		return
	}

	if err := inv.Server.store.Delete(deleted); err != nil {
		slog.Error("delete failed", "user", deleted, "by", deleter, "err", err)
		inv.Reply("IO error while deleting '%s'.", deleted)
		return
	}

	inv.Server.evict(deleted, protocol.Deleted, deleter)
	inv.Server.metrics.Deletes.Add(1)
	_ = inv.Server.relay.Notice(protocol.Delete, fmt.Sprintf("'%s' was deleted by '%s'.", deleted, deleter))
	inv.Server.logf("'%s' was deleted by '%s'.", deleted, deleter)
}

// evict terminates the live session of username with a notice naming actor
// and deregisters it. It reports whether a live session was ended.
func (s *Server) evict(username string, flag protocol.Flag, actor string) bool {
	sess, ok := s.registry.Lookup(username)
	if !ok {
		return false
	}
	if err := sess.Terminate(flag, actor); err != nil {
		if errors.Is(err, ErrSessionClosed) {
			return false
		}
		slog.Debug("termination notice failed", "user", username, "flag", flag, "err", err)
	}
	s.registry.Remove(sess)
	return true
}
