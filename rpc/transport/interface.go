package transport

// --------------------------------------------------------------------------
// Network Plugin
// --------------------------------------------------------------------------

// INetworkPlugin is implemented by everything that consumes session traffic.
// All methods are called from the goroutine that polls the session, never
// from a socket reader goroutine.
type INetworkPlugin interface {
	// OnReceive is called for every message received on a connected Connection
	OnReceive(payload *ReceivePayload)
	// OnConnected is called once the handshake of a Connection completed
	OnConnected(conn *Connection)
	// OnDisconnected is called once a Connected Connection was closed
	OnDisconnected(conn *Connection)
}

// ReceivePayload is one inbound message
type ReceivePayload struct {
	Connection *Connection
	Data       []byte
}

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

// ISession is the part of a session used by network plugins to send
type ISession interface {
	// Send transmits data to one connected peer
	Send(conn *Connection, data []byte) error
	// Broadcast transmits data to every connected peer
	Broadcast(data []byte) error
	// GetConnectionCount returns the number of connected peers
	GetConnectionCount() int
	// GetConnectionAtIndex returns a connected peer or nil if out of range
	GetConnectionAtIndex(index int) *Connection
}

// SessionResult is the outcome of Connect and Listen
type SessionResult int

const (
	SessionResultOK SessionResult = iota
	SessionResultBindFailure
	SessionResultListenFailure
	SessionResultConnectFailure
	SessionResultConnectInProgress
	SessionResultAlreadyConnected
	SessionResultIncompatibleProtocol
	SessionResultClosed
)

func (r SessionResult) String() string {
	switch r {
	case SessionResultOK:
		return "OK"
	case SessionResultBindFailure:
		return "BindFailure"
	case SessionResultListenFailure:
		return "ListenFailure"
	case SessionResultConnectFailure:
		return "ConnectFailure"
	case SessionResultConnectInProgress:
		return "ConnectInProgress"
	case SessionResultAlreadyConnected:
		return "AlreadyConnected"
	case SessionResultIncompatibleProtocol:
		return "IncompatibleProtocol"
	case SessionResultClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Succeeded reports whether a connect attempt counts as connected or about to be
func (r SessionResult) Succeeded() bool {
	return r == SessionResultOK ||
		r == SessionResultAlreadyConnected ||
		r == SessionResultConnectInProgress
}
