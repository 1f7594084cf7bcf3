package server

import (
	"github.com/ValentinKolb/hmdlink/rpc/rpc1"
)

// IServiceAdapter is the interface for all service adapters. An adapter
// answers one area of the protocol, e.g. profile values or HMD management.
type IServiceAdapter interface {
	// Register installs the blocking functions and slots of the adapter.
	Register(r *rpc1.RPC1)
	// Release removes everything Register installed and frees the slots.
	Release(r *rpc1.RPC1)
}
