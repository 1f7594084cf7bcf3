// Package tcp implements the IPv6 loopback TCP transport of the session layer.
// It provides concrete implementations of the base package's connector
// interfaces and factory methods for client and service sessions.
//
// The service never binds a routable interface: Listen refuses any address
// that is not a loopback address, and AcceptPeer drops connections whose
// remote address is not a loopback address. Client and service must
// therefore run on the same host.
//
// Key Components:
//
//   - clientConnector: tcp6 implementation of base.IClientConnector
//
//   - serverConnector: tcp6 implementation of base.IServerConnector
//
// Every connection has Nagle's algorithm disabled and TCP keep-alive enabled.
package tcp
