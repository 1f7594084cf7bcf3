package tcp

import (
	"fmt"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/ValentinKolb/hmdlink/rpc/transport/base"
	"net"
	"time"
)

const (
	keepAlivePeriod = 15 * time.Second
	writeTimeout    = 5 * time.Second
)

// serverConnector implements the IServerConnector interface for IPv6 TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp6"
}

func (c *serverConnector) Listen(endpoint string) (net.Listener, error) {
	host, _, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %v", endpoint, err)
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return nil, fmt.Errorf("refusing to bind non-loopback address %q", host)
	}

	listener, err := net.Listen("tcp6", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create tcp6 socket: %v", err)
	}
	return listener, nil
}

func (c *serverConnector) UpgradeConnection(conn net.Conn) error {
	return upgradeConnection(conn)
}

// AcceptPeer only serves clients on the same host
func (c *serverConnector) AcceptPeer(addr net.Addr) bool {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return false
	}
	return tcpAddr.IP.IsLoopback()
}

// --------------------------------------------------------------------------
// Server Session Factory Method
// --------------------------------------------------------------------------

// NewServerSession creates a session that accepts local clients
func NewServerSession(config common.ServerConfig) *base.Session {
	return base.NewSession(base.SessionConfig{
		HandshakeTimeout: common.DefaultConnectTimeoutMs * time.Millisecond,
		WriteTimeout:     writeTimeout,
		PollInterval:     common.DefaultPollIntervalMs * time.Millisecond,
	}, nil, &serverConnector{})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// upgradeConnection applies latency optimizations to a TCP connection
func upgradeConnection(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Disable Nagle's algorithm, every message is a small request or reply
	if err := tcpConn.SetNoDelay(true); err != nil {
		return err
	}

	// Detect a vanished peer so a pending call is released
	if err := tcpConn.SetKeepAlive(true); err != nil {
		return err
	}
	return tcpConn.SetKeepAlivePeriod(keepAlivePeriod)
}
