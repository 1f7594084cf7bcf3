// Package common provides the protocol definitions and utilities shared by
// the client and the service. It defines fundamental types, configuration
// structures and the records exchanged while a connection is set up.
//
// The package focuses on:
//   - Protocol definition (message ids, RPC sub-types, call identifiers, version)
//   - The hello / authorization handshake records
//   - Codecs for the domain records returned by the service
//   - Configuration structures for client and service
//   - Custom logging implementation integrated with the dragonboat logger
//
// Key Components:
//
//   - RPCSubType: Enumeration of the four logical operations multiplexed on
//     the RPC1 message id (Signal, CallBlocking, FunctionNotRegistered, Return).
//
//   - Call identifiers: Version suffixed names of every blocking call and
//     signal. A peer that does not know an identifier answers with
//     FunctionNotRegistered, which keeps old and new builds compatible.
//
//   - Hello / Authorization: The first message of each direction on a new
//     connection. The service accepts clients with the same major version and
//     an equal or older minor version.
//
//   - HMDInfo / HMDNetworkInfo: Domain records serialized in a fixed field order.
//
//   - ServerConfig / ClientConfig: Configuration of the service and the client.
//
//   - Logger: Custom logging implementation that integrates with dragonboat's
//     logging system while providing consistent formatting across the application.
package common
