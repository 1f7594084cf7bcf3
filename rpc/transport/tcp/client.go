package tcp

import (
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/ValentinKolb/hmdlink/rpc/transport/base"
	"net"
	"time"
)

// clientConnector implements the IClientConnector interface for IPv6 TCP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp6"
}

func (c *clientConnector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp6", endpoint, timeout)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn) error {
	return upgradeConnection(conn)
}

// --------------------------------------------------------------------------
// Client Session Factory Method
// --------------------------------------------------------------------------

// NewClientSession creates a session that connects to the service
func NewClientSession(config common.ClientConfig) *base.Session {
	return base.NewSession(base.SessionConfig{
		ConnectTimeout:   config.ConnectTimeout(),
		HandshakeTimeout: config.ConnectTimeout(),
		WriteTimeout:     config.ConnectTimeout(),
		PollInterval:     config.PollInterval(),
	}, &clientConnector{}, nil)
}
