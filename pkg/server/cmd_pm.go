package server

func runPrivateMessage(inv *Invocation) {
	if len(inv.Args) != 2 {
		inv.InvalidUsage()
		return
	}
	sender := inv.Caller.Username
	receiver, message := inv.Args[0], inv.Args[1]

	if receiver == sender {
		inv.Reply("You cannot send a private message to yourself.")
		return
	}
	if !inv.Server.registry.IsOnline(receiver) {
		inv.Reply("Invalid user '%s'.", receiver)
		return
	}

	_ = inv.Server.relay.Private(sender, receiver, message)
	inv.Server.logf("%s sent \"%s\" to %s", sender, message, receiver)
}
