// Package transport defines the types shared between the session layer and
// the network plugins running on top of it.
//
// A session owns the sockets, performs the connection handshake and hands
// every inbound message and lifecycle event to its registered plugins. The
// concrete session lives in the base package, the socket specific parts (IPv6
// loopback TCP) in the tcp package.
//
// Key Components:
//
//   - INetworkPlugin: Receives messages (OnReceive) and lifecycle events
//     (OnConnected, OnDisconnected). It is always invoked on the goroutine
//     polling the session.
//
//   - ISession: The send side of a session as seen by a plugin.
//
//   - Connection: One versioned peer. It carries the protocol version the
//     peer announced during the handshake and a unique id for log correlation.
//
//   - SessionResult: Outcome of connect and listen attempts.
package transport
