// Package base provides the session layer, implementing connection handling
// independent of the specific socket type. It serves as a base layer that is
// extended with protocol-specific connectors (see the tcp package).
//
// The package focuses on:
//   - Outgoing and incoming connections with a version handshake
//   - Length prefixed framing of messages
//   - Delivery of messages and lifecycle events to network plugins on a single
//     polling goroutine
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the session with different socket types.
//
//   - Session: Owns listeners and connections. Every socket has a reader
//     goroutine that pushes events onto a multi-producer single-consumer
//     queue. Poll drains that queue and calls the plugins, so plugin code
//     never runs on a socket goroutine.
//
// Handshake:
//
//	After the socket connected the client sends a Hello carrying its protocol
//	version. The service answers with an Authorization. Only when both sides
//	accepted the exchange the connection becomes Connected, is counted by
//	GetConnectionCount and produces an OnConnected event. Connected events are
//	queued before the reader goroutine of the connection starts, so a plugin
//	always sees OnConnected before the first message of a connection.
//
// Frame Format:
//
//   - 4 bytes: data length (uint32, little endian)
//   - N bytes: data payload
//
// Thread Safety:
//
//	All public methods are thread-safe, except Poll which must always be
//	called from the same goroutine.
package base
