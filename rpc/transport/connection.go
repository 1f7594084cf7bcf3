package transport

import (
	"fmt"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/google/uuid"
	"net"
	"sync"
	"sync/atomic"
)

// ConnectionState is the lifecycle state of a Connection
type ConnectionState int32

const (
	StateConnecting ConnectionState = iota
	StateConnectedWait
	StateConnected
	StateZombie
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateConnectedWait:
		return "ConnectedWait"
	case StateConnected:
		return "Connected"
	case StateZombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// Connection is one logical peer of a session. Connections are compared by
// pointer; a reconnect always yields a new Connection.
type Connection struct {
	ID        uuid.UUID
	Transport string
	Incoming  bool // accepted by a listener

	netConn net.Conn
	writeMu sync.Mutex
	state   atomic.Int32
	closed  atomic.Bool

	versionMu     sync.RWMutex
	remoteVersion common.ProtocolVersion
}

// NewConnection wraps an established socket
func NewConnection(netConn net.Conn, transportName string, incoming bool) *Connection {
	c := &Connection{
		ID:        uuid.New(),
		Transport: transportName,
		Incoming:  incoming,
		netConn:   netConn,
	}
	c.state.Store(int32(StateConnectedWait))
	return c
}

func (c *Connection) String() string {
	return fmt.Sprintf("%s(%s %s)", c.Transport, c.RemoteAddr(), c.ID.String()[:8])
}

// RemoteAddr returns the address of the peer
func (c *Connection) RemoteAddr() string {
	if c.netConn == nil {
		return "<nil>"
	}
	return c.netConn.RemoteAddr().String()
}

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Connection) SetState(s ConnectionState) {
	c.state.Store(int32(s))
}

func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// RemoteVersion returns the protocol version announced by the peer
func (c *Connection) RemoteVersion() common.ProtocolVersion {
	c.versionMu.RLock()
	defer c.versionMu.RUnlock()
	return c.remoteVersion
}

func (c *Connection) SetRemoteVersion(v common.ProtocolVersion) {
	c.versionMu.Lock()
	defer c.versionMu.Unlock()
	c.remoteVersion = v
}

// --------------------------------------------------------------------------
// Socket Access
// --------------------------------------------------------------------------

// NetConn returns the underlying socket
func (c *Connection) NetConn() net.Conn {
	return c.netConn
}

// WithWriter runs fn with exclusive write access to the socket
func (c *Connection) WithWriter(fn func(net.Conn) error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return fn(c.netConn)
}

// Close marks the connection as zombie and closes the socket. It returns
// true only for the call that actually closed it.
func (c *Connection) Close() bool {
	c.SetState(StateZombie)
	if !c.closed.CompareAndSwap(false, true) {
		return false
	}
	if c.netConn != nil {
		_ = c.netConn.Close()
	}
	return true
}
