// Package cmd implements the command-line interface for hmdlink. It provides
// a hierarchical command structure for running the reference service and
// talking to it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the reference service
//   - profile: Reads and writes profile values (get, set)
//   - hmd: Detects and inspects HMDs, driver mode and remote shutdown
//   - latency: Drives the latency tester
//   - perf: Measures blocking call round trips against a running service
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See hmdlink -help for a list of all commands.
package cmd
