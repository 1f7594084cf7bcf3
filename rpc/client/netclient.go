package client

import (
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/ValentinKolb/hmdlink/rpc/observer"
	"github.com/ValentinKolb/hmdlink/rpc/rpc1"
	"github.com/ValentinKolb/hmdlink/rpc/transport"
	"github.com/ValentinKolb/hmdlink/rpc/transport/base"
	"github.com/ValentinKolb/hmdlink/rpc/transport/tcp"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/time/rate"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("netclient")

// ConnState is the client side view of the service connection
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// NetClient is the application side of the service channel. It owns a
// session to the local service, the RPC1 plugin on top of it and the
// goroutine polling the session.
//
// A process normally creates one NetClient, calls Start once and Close on
// teardown. All methods are safe for concurrent use. Every domain call
// returns its documented default when the service cannot be reached.
type NetClient struct {
	config   common.ClientConfig
	endpoint string
	session  *base.Session
	rpc      *rpc1.RPC1

	// reconnect throttles reconnect attempts, nil if unthrottled
	reconnect *rate.Limiter

	initialStateScope *observer.ObserverScope[rpc1.SlotFunc]
	latencyScope      *observer.ObserverScope[rpc1.SlotFunc]
	hmdCountScope     *observer.ObserverScope[rpc1.SlotFunc]

	// push notification state, written by the polling goroutine
	latencyTesterAvailable atomic.Bool
	hmdCount               atomic.Int32
	edgeTriggeredHMDCount  atomic.Bool

	lastErrorMu sync.Mutex
	lastError   string

	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a NetClient for the service on the loopback port of config.
// No connection is made until the first call or an explicit Connect.
func New(config common.ClientConfig) *NetClient {
	session := tcp.NewClientSession(config)
	c := &NetClient{
		config:   config,
		endpoint: config.Address(),
		session:  session,
		rpc:      rpc1.New(session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if interval := config.ReconnectInterval(); interval > 0 {
		c.reconnect = rate.NewLimiter(rate.Every(interval), 1)
	}

	session.AddSessionListener(c.rpc)
	session.AddSessionListener(c)
	c.registerSlots()

	return c
}

// registerSlots installs the push notification handlers
func (c *NetClient) registerSlots() {
	c.initialStateScope = observer.NewScopeWithHandler[rpc1.SlotFunc](c.onLatencyTesterAvailable)
	c.latencyScope = observer.NewScopeWithHandler[rpc1.SlotFunc](c.onLatencyTesterAvailable)
	c.hmdCountScope = observer.NewScopeWithHandler[rpc1.SlotFunc](c.onHMDCountUpdate)

	c.rpc.RegisterSlot(common.PushInitialServerState, c.initialStateScope.Get())
	c.rpc.RegisterSlot(common.PushLatencyTesterAvailable, c.latencyScope.Get())
	c.rpc.RegisterSlot(common.PushHMDCountUpdate, c.hmdCountScope.Get())
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Start runs the polling loop on a new goroutine. Calling it more than once
// or after Close has no effect.
func (c *NetClient) Start() {
	if c.session.IsClosed() || !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run()
}

// run polls the session until Close is called. It is the only goroutine
// executing RPC1 handlers of this client.
func (c *NetClient) run() {
	defer close(c.done)
	Logger.Debugf("Polling loop started")

	for {
		select {
		case <-c.stop:
			// deliver the disconnects, they release pending calls
			c.session.Drain()
			Logger.Debugf("Polling loop stopped")
			return
		default:
		}

		c.session.Poll(false)

		if c.session.GetActiveSocketsCount() == 0 {
			select {
			case <-c.stop:
			case <-time.After(c.config.PollInterval()):
			}
		}
	}
}

// Close stops the polling loop, drops the connection and releases all
// slots. The client can not be used afterwards.
func (c *NetClient) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.session.Close()
		if c.started.Load() {
			<-c.done
		} else {
			c.session.Drain()
		}
		c.initialStateScope.Shutdown()
		c.latencyScope.Shutdown()
		c.hmdCountScope.Shutdown()
		Logger.Infof("Client closed")
	})
}

// --------------------------------------------------------------------------
// Connection Management
// --------------------------------------------------------------------------

// Connect connects to the service. A connection that is already
// established or in progress counts as success.
func (c *NetClient) Connect(blocking bool) bool {
	res := c.session.Connect(c.endpoint, blocking)
	if !res.Succeeded() {
		Logger.Debugf("Connect to %s failed: %s", c.endpoint, res)
	}
	return res.Succeeded()
}

// Disconnect drops the connection. The next call that may reconnect does so.
func (c *NetClient) Disconnect() {
	c.session.Shutdown()
}

// IsConnected reports whether the service is connected. If not and
// attemptReconnect is set, a reconnect is attempted first.
func (c *NetClient) IsConnected(attemptReconnect, blockOnReconnect bool) bool {
	if c.session.GetConnectionCount() > 0 {
		return true
	}
	if !attemptReconnect {
		return false
	}

	// the limiter only throttles new dials, joining one in flight is free
	if c.reconnect == nil || c.session.IsConnecting(c.endpoint) || c.reconnect.Allow() {
		c.Connect(blockOnReconnect)
	}
	return c.session.GetConnectionCount() > 0
}

// ConnectionState returns the current state of the service connection
func (c *NetClient) ConnectionState() ConnState {
	switch {
	case c.session.GetConnectionCount() > 0:
		return Connected
	case c.session.GetActiveSocketsCount() > 0:
		return Connecting
	default:
		return Disconnected
	}
}

// GetLocalProtocolVersion returns the protocol version of this build
func (c *NetClient) GetLocalProtocolVersion() common.ProtocolVersion {
	return common.LocalProtocolVersion()
}

// GetRemoteProtocolVersion returns the protocol version of the connected
// service, false if there is no connection
func (c *NetClient) GetRemoteProtocolVersion() (common.ProtocolVersion, bool) {
	conn := c.session.GetConnectionAtIndex(0)
	if conn == nil {
		return common.ProtocolVersion{}, false
	}
	return conn.RemoteVersion(), true
}

// LatencyTesterAvailable returns the last availability pushed by the service
func (c *NetClient) LatencyTesterAvailable() bool {
	return c.latencyTesterAvailable.Load()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.INetworkPlugin)
// --------------------------------------------------------------------------

func (c *NetClient) OnReceive(payload *transport.ReceivePayload) {}

func (c *NetClient) OnConnected(conn *transport.Connection) {
	Logger.Infof("Connected to a service running version %s (my version=%s)",
		conn.RemoteVersion(), common.LocalProtocolVersion())
	c.edgeTriggeredHMDCount.Store(false)
}

func (c *NetClient) OnDisconnected(conn *transport.Connection) {
	Logger.Infof("Disconnected from %s", conn)
	c.edgeTriggeredHMDCount.Store(false)
}

// --------------------------------------------------------------------------
// Push Notifications
// --------------------------------------------------------------------------

func (c *NetClient) onLatencyTesterAvailable(args *bitstream.BitStream, payload *transport.ReceivePayload) {
	b, err := args.ReadUint8()
	if err != nil {
		Logger.Warningf("Malformed latency tester notification: %v", err)
		return
	}
	c.latencyTesterAvailable.Store(b != 0)
}

func (c *NetClient) onHMDCountUpdate(args *bitstream.BitStream, payload *transport.ReceivePayload) {
	n, err := args.ReadInt32()
	if err != nil {
		Logger.Warningf("Malformed HMD count notification: %v", err)
		return
	}
	c.hmdCount.Store(n)
	c.edgeTriggeredHMDCount.Store(true)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// call invokes id on the service and returns the reply. The reply is empty
// if the service does not know id or the connection dropped.
func (c *NetClient) call(id string, args *bitstream.BitStream) (*bitstream.BitStream, bool) {
	result := bitstream.New()
	if !c.rpc.CallBlocking(id, args, c.session.GetConnectionAtIndex(0), result) {
		Logger.Debugf("Call %s failed", id)
		return nil, false
	}
	return result, true
}

// signal sends id to the service without waiting
func (c *NetClient) signal(id string, args *bitstream.BitStream) bool {
	if !c.rpc.Signal(id, args, c.session.GetConnectionAtIndex(0)) {
		Logger.Debugf("Signal %s failed", id)
		return false
	}
	return true
}

// keyArgs starts the arguments of a profile accessor
func keyArgs(hmd common.VirtualHmdId, key string) *bitstream.BitStream {
	bs := bitstream.New()
	bs.WriteInt32(hmd)
	bs.WriteString(key)
	return bs
}

// hmdArgs starts the arguments of a per HMD call
func hmdArgs(hmd common.VirtualHmdId) *bitstream.BitStream {
	bs := bitstream.New()
	bs.WriteInt32(hmd)
	return bs
}
