// Package rpc provides the loopback messaging layer between HMD applications
// and the background device service. It moves typed blocking calls and push
// notifications over one versioned connection on the IPv6 loopback interface.
//
// The package is organized into several subpackages:
//
//   - common: Protocol constants, call identifiers, the handshake records,
//     HMD descriptions, configuration structures, and logging.
//
//   - bitstream: The little endian encoder/decoder used for every payload.
//
//   - observer: Thread-safe one-to-many callback fan-out (Observer,
//     ObserverScope, ObserverHash).
//
//   - transport: The session/connection abstraction with the base session
//     implementation and the TCP loopback connectors.
//
//   - rpc1: The network plugin that multiplexes signals, blocking calls and
//     their replies onto one message id.
//
//   - client: NetClient, the application facing facade with typed calls.
//
//   - server: The reference service answering every NetClient call, backed
//     by the profile store.
package rpc
