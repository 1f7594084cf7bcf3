/*
Package rpc1 implements the RPC1 network plugin on top of a transport session.

Every RPC1 message starts with the message id common.MsgIDRPC1 followed by a
sub-type byte:

	Signal                 id (string), aligned arguments
	CallBlocking           id (string), aligned arguments
	FunctionNotRegistered  -
	Return                 aligned return value

Blocking calls are answered by exactly one Return or FunctionNotRegistered.
Since replies carry no call id, CallBlocking admits one call in flight at a
time. A disconnect of the awaited connection releases the caller with an
empty reply.

Signals are delivered to all observers attached to the subject registered
under the signal id, see the observer package.

Usage:

	session := tcp.NewClientSession(common.DefaultClientConfig())
	rpc := rpc1.New(session)
	session.AddSessionListener(rpc)

	scope := observer.NewScopeWithHandler[rpc1.SlotFunc](onPing)
	rpc.RegisterSlot("Ping_1", scope.Get())

	result := bitstream.New()
	if rpc.CallBlocking("Echo_1", args, conn, result) {
		v, err := result.ReadInt32()
	}
*/
package rpc1
