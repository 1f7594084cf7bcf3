// Package client implements NetClient, the application side of the channel to
// the local HMD service.
//
// A NetClient composes a loopback session (see transport/tcp) with the RPC1
// plugin and exposes typed domain calls on top of it:
//
//   - Profile values: Get/Set String, Bool, Int, Number and Number arrays
//   - HMD management: detect, create, release, caps, driver mode, tracking
//   - Latency tester: process inputs, results string
//   - Service control: remote shutdown
//
// The service pushes three notifications which the client caches:
// InitialServerState_1 and LatencyTesterAvailable_1 update the latency tester
// availability, HMDCountUpdate_1 updates the HMD count. The HMD count is
// edge triggered: once known it is served from cache until the connection
// changes.
//
// Usage Example:
//
//	cfg := common.DefaultClientConfig()
//	c := client.New(cfg)
//	c.Start()
//	defer c.Close()
//
//	depth := c.GetNumberValue(common.InvalidVirtualHmdId, "CenterPupilDepth", 0.0)
//	if c.HmdDetect() > 0 {
//	  info, ok := c.HmdCreate(0)
//	}
//
// Error Handling:
//
//	No method returns an error. If the service is not reachable, does not know
//	a call or drops the connection mid call, the caller supplied default (or
//	the zero value with false) is returned. Profile and driver calls attempt a
//	blocking reconnect first, HmdDetect a non-blocking one, per HMD calls none.
//	Reconnect attempts are throttled by ClientConfig.ReconnectIntervalMs.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Blocking calls are serialized, only
//	one is in flight at a time. Calls must not be made from RPC1 handlers, since
//	those run on the polling goroutine that delivers the replies.
package client
