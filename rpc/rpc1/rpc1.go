package rpc1

import (
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/ValentinKolb/hmdlink/rpc/observer"
	"github.com/ValentinKolb/hmdlink/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
)

var Logger = logger.GetLogger("rpc1")

var (
	callsSent         = metrics.GetOrCreateCounter(`hmdlink_rpc1_calls_total{side="caller"}`)
	callsServed       = metrics.GetOrCreateCounter(`hmdlink_rpc1_calls_total{side="callee"}`)
	returnsReceived   = metrics.GetOrCreateCounter(`hmdlink_rpc1_replies_total{kind="return"}`)
	notRegistered     = metrics.GetOrCreateCounter(`hmdlink_rpc1_replies_total{kind="not_registered"}`)
	disconnectWakeups = metrics.GetOrCreateCounter(`hmdlink_rpc1_replies_total{kind="disconnect"}`)
	signalsSent       = metrics.GetOrCreateCounter(`hmdlink_rpc1_signals_total{direction="sent"}`)
	signalsReceived   = metrics.GetOrCreateCounter(`hmdlink_rpc1_signals_total{direction="received"}`)
)

// BlockingFunc handles a blocking call. args holds the caller's arguments,
// whatever the handler writes to result is sent back as the reply.
type BlockingFunc func(args, result *bitstream.BitStream, payload *transport.ReceivePayload)

// SlotFunc handles a signal. args holds the signal's arguments.
type SlotFunc func(args *bitstream.BitStream, payload *transport.ReceivePayload)

// RPC1 is a network plugin that multiplexes blocking calls and signals on
// the MsgIDRPC1 message id.
//
// Blocking calls are single-flight: the wire format carries no call id, so
// at most one CallBlocking is in flight per RPC1 at any time.
type RPC1 struct {
	session    transport.ISession
	registered *xsync.MapOf[string, BlockingFunc]
	slots      *observer.ObserverHash[SlotFunc]

	// callLock serializes callers of CallBlocking
	callLock sync.Mutex

	// callMu guards the pending call, callCond is signaled when it completes
	callMu         sync.Mutex
	callCond       *sync.Cond
	blockingOn     *transport.Connection
	blockingReturn *bitstream.BitStream
}

// New creates an RPC1 sending through session. The caller still has to
// register it as a listener of the session.
func New(session transport.ISession) *RPC1 {
	r := &RPC1{
		session:    session,
		registered: xsync.NewMapOf[string, BlockingFunc](),
		slots:      observer.NewHash[SlotFunc](),
	}
	r.callCond = sync.NewCond(&r.callMu)
	return r
}

// --------------------------------------------------------------------------
// Registration
// --------------------------------------------------------------------------

// RegisterSlot attaches o to the subject named id. Registering several
// observers for the same id is additive.
func (r *RPC1) RegisterSlot(id string, o *observer.Observer[SlotFunc]) {
	if !r.slots.AddObserverToSubject(id, o) {
		Logger.Warningf("Slot %s was not registered, the observer is shut down", id)
	}
}

// UnregisterSlot shuts the subject named id down, detaching all its observers
func (r *RPC1) UnregisterSlot(id string) {
	r.slots.RemoveSubject(id)
}

// RegisterBlockingFunction installs fn for id. It returns false and changes
// nothing if id is already registered.
func (r *RPC1) RegisterBlockingFunction(id string, fn BlockingFunc) bool {
	_, loaded := r.registered.LoadOrStore(id, fn)
	return !loaded
}

// UnregisterBlockingFunction removes the handler of id if present
func (r *RPC1) UnregisterBlockingFunction(id string) {
	r.registered.Delete(id)
}

// --------------------------------------------------------------------------
// Outgoing
// --------------------------------------------------------------------------

// CallBlocking invokes id on conn and waits until the peer replied, the peer
// reported that id is unknown, or conn disconnected. The reply is appended
// to result (which may be nil); it stays empty unless a Return arrived.
// Returns false if conn is nil or the request could not be sent.
//
// There is no timeout. CallBlocking must not be called from the goroutine
// polling the session, since that goroutine delivers the reply.
func (r *RPC1) CallBlocking(id string, args *bitstream.BitStream, conn *transport.Connection, result *bitstream.BitStream) bool {
	if conn == nil {
		return false
	}

	out := encode(common.RPCCallBlocking, id, args)
	if result != nil {
		result.Reset()
	}

	r.callLock.Lock()
	defer r.callLock.Unlock()

	r.callMu.Lock()
	r.blockingReturn = nil
	r.blockingOn = conn

	if err := r.session.Send(conn, out.Bytes()); err != nil {
		r.blockingOn = nil
		r.callMu.Unlock()
		Logger.Debugf("Call %s on %s not sent: %v", id, conn, err)
		return false
	}
	callsSent.Inc()

	for r.blockingOn == conn {
		r.callCond.Wait()
	}
	reply := r.blockingReturn
	r.blockingReturn = nil
	r.callMu.Unlock()

	if result != nil && reply != nil {
		result.WriteStream(reply)
		result.ResetReadPointer()
	}
	return true
}

// Signal sends id to conn without waiting for a reply
func (r *RPC1) Signal(id string, args *bitstream.BitStream, conn *transport.Connection) bool {
	if conn == nil {
		return false
	}
	out := encode(common.RPCSignal, id, args)
	if err := r.session.Send(conn, out.Bytes()); err != nil {
		Logger.Debugf("Signal %s on %s not sent: %v", id, conn, err)
		return false
	}
	signalsSent.Inc()
	return true
}

// BroadcastSignal sends id to every connected peer
func (r *RPC1) BroadcastSignal(id string, args *bitstream.BitStream) bool {
	out := encode(common.RPCSignal, id, args)
	if err := r.session.Broadcast(out.Bytes()); err != nil {
		Logger.Debugf("Broadcast of %s incomplete: %v", id, err)
		return false
	}
	signalsSent.Inc()
	return true
}

// encode builds a Signal or CallBlocking message
func encode(subType common.RPCSubType, id string, args *bitstream.BitStream) *bitstream.BitStream {
	out := bitstream.New()
	out.WriteUint8(byte(common.MsgIDRPC1))
	out.WriteUint8(byte(subType))
	out.WriteString(id)
	if args != nil {
		args.ResetReadPointer()
		out.AlignWriteToByteBoundary()
		out.WriteStream(args)
	}
	return out
}

// reply builds a Return or FunctionNotRegistered message
func reply(subType common.RPCSubType, result *bitstream.BitStream) *bitstream.BitStream {
	out := bitstream.New()
	out.WriteUint8(byte(common.MsgIDRPC1))
	out.WriteUint8(byte(subType))
	if result != nil {
		result.ResetReadPointer()
		out.AlignWriteToByteBoundary()
		out.WriteStream(result)
	}
	return out
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.INetworkPlugin)
// --------------------------------------------------------------------------

func (r *RPC1) OnReceive(payload *transport.ReceivePayload) {
	data := payload.Data
	if len(data) < 2 || common.MessageID(data[0]) != common.MsgIDRPC1 {
		return
	}

	in := bitstream.NewFromBytes(data, false)
	in.IgnoreBytes(2)

	switch subType := common.RPCSubType(data[1]); subType {
	case common.RPCFunctionNotRegistered:
		notRegistered.Inc()
		r.complete(payload.Connection, nil)

	case common.RPCReturn:
		returnsReceived.Inc()
		in.AlignReadToByteBoundary()
		r.complete(payload.Connection, bitstream.NewFromBytes(in.UnreadBytes(), true))

	case common.RPCCallBlocking:
		id, err := in.ReadString()
		if err != nil {
			Logger.Warningf("Malformed call from %s: %v", payload.Connection, err)
			return
		}
		r.serve(id, in, payload)

	case common.RPCSignal:
		id, err := in.ReadString()
		if err != nil {
			Logger.Warningf("Malformed signal from %s: %v", payload.Connection, err)
			return
		}
		signalsReceived.Inc()

		subject := r.slots.GetSubject(id)
		if subject == nil {
			Logger.Debugf("No slot registered for signal %s", id)
			return
		}
		in.AlignReadToByteBoundary()
		params := in.UnreadBytes()
		subject.Call(func(h SlotFunc) {
			h(bitstream.NewFromBytes(params, false), payload)
		})

	default:
		Logger.Warningf("Unknown RPC sub-type %d from %s", subType, payload.Connection)
	}
}

// OnConnected has no behavior, a new connection has no pending call
func (r *RPC1) OnConnected(conn *transport.Connection) {}

// OnDisconnected releases a caller waiting for a reply on conn
func (r *RPC1) OnDisconnected(conn *transport.Connection) {
	r.callMu.Lock()
	defer r.callMu.Unlock()

	if r.blockingOn != nil && r.blockingOn == conn {
		disconnectWakeups.Inc()
		r.blockingOn = nil
		r.blockingReturn = nil
		r.callCond.Broadcast()
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// complete wakes the caller waiting on conn with the given reply
func (r *RPC1) complete(conn *transport.Connection, result *bitstream.BitStream) {
	r.callMu.Lock()
	defer r.callMu.Unlock()

	if r.blockingOn == nil || r.blockingOn != conn {
		Logger.Debugf("Dropping reply from %s, no call pending on it", conn)
		return
	}
	r.blockingReturn = result
	r.blockingOn = nil
	r.callCond.Broadcast()
}

// serve runs a registered blocking function and sends its reply
func (r *RPC1) serve(id string, in *bitstream.BitStream, payload *transport.ReceivePayload) {
	fn, ok := r.registered.Load(id)
	if !ok {
		Logger.Debugf("Call %s from %s is not registered", id, payload.Connection)
		if err := r.session.Send(payload.Connection, reply(common.RPCFunctionNotRegistered, nil).Bytes()); err != nil {
			Logger.Debugf("Failed to reply to %s: %v", payload.Connection, err)
		}
		return
	}
	callsServed.Inc()

	in.AlignReadToByteBoundary()
	args := bitstream.NewFromBytes(in.UnreadBytes(), false)
	result := bitstream.New()
	fn(args, result, payload)

	if err := r.session.Send(payload.Connection, reply(common.RPCReturn, result).Bytes()); err != nil {
		Logger.Debugf("Failed to reply to %s: %v", payload.Connection, err)
	}
}
