// Package server implements NetServer, a reference service answering every
// call of the client package.
//
// The service listens on the IPv6 loopback interface only. Its behavior is
// split into adapters, each registering its blocking functions and slots on
// the service's RPC1 plugin:
//
//   - NewProfileAdapter: Get/Set*Value calls backed by a store.Profile. The
//     "server:" bypass prefix of keys is stripped before storage. Missing
//     values are answered with the default sent by the client.
//
//   - NewHMDAdapter: a simulated set of HMDs answering Hmd_*, driver mode and,
//     if enabled, latency tester calls.
//
// On every new connection the service pushes InitialServerState_1 and
// HMDCountUpdate_1. SetHMDCount broadcasts a new HMDCountUpdate_1 to all
// clients. Shutdown_1 stops Serve if remote shutdown is allowed.
//
// Usage Example:
//
//	cfg := common.DefaultServerConfig()
//	cfg.DataDir = "/var/lib/hmdlink"
//
//	srv, err := server.NewNetServer(cfg, nil)
//	if err != nil {
//	  return err
//	}
//	defer srv.Close()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	  return err
//	}
//
// Metrics:
//
//	If MetricsEndpoint is set, the counters of the service, the RPC1 plugin and
//	the session are served in prometheus format on /metrics.
package server
