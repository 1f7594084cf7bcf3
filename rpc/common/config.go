package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultConnectTimeoutMs    = 5000
	DefaultPollIntervalMs      = 10
	DefaultReconnectIntervalMs = 250
	DefaultHMDCount            = 1
)

// --------------------------------------------------------------------------
// Service configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the reference service.
type ServerConfig struct {
	// Port the service listens on (IPv6 loopback only); 0 picks a free port
	Port int

	// Simulated hardware
	HMDCount      int
	LatencyTester bool

	// Profile storage, an empty directory keeps profiles in memory
	DataDir string

	// Whether a client may stop the service with Shutdown_1
	AllowRemoteShutdown bool

	// HTTP endpoint exposing metrics in prometheus format, empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns the configuration used when no flags are given
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:     ServicePort,
		HMDCount: DefaultHMDCount,
		LogLevel: "info",
	}
}

// Address returns the listen address of the service
func (c *ServerConfig) Address() string {
	return LoopbackEndpoint(c.Port)
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Service")
	addField("Endpoint", c.Address())
	addField("Protocol Version", fmt.Sprintf("%d.%d.%d", RPCVersionMajor, RPCVersionMinor, RPCVersionPatch))
	addField("Remote Shutdown", strconv.FormatBool(c.AllowRemoteShutdown))

	// Devices
	addSection("Devices")
	addField("HMD Count", strconv.Itoa(c.HMDCount))
	addField("Latency Tester", strconv.FormatBool(c.LatencyTester))

	// Storage
	addSection("Storage")
	if c.DataDir == "" {
		addField("Data Directory", "(in memory)")
	} else {
		addField("Data Directory", c.DataDir)
	}

	// Metrics
	if c.MetricsEndpoint != "" {
		addSection("Metrics")
		addField("Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	// Port of the service on the IPv6 loopback interface
	Port int

	// How long a blocking connect waits for the handshake to complete
	ConnectTimeoutMs int

	// Sleep of the poll loop while no socket is active
	PollIntervalMs int

	// Minimum time between two reconnect attempts
	ReconnectIntervalMs int

	// Logging configuration
	LogLevel string
}

// DefaultClientConfig returns the configuration for the well-known service port
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Port:                ServicePort,
		ConnectTimeoutMs:    DefaultConnectTimeoutMs,
		PollIntervalMs:      DefaultPollIntervalMs,
		ReconnectIntervalMs: DefaultReconnectIntervalMs,
		LogLevel:            "info",
	}
}

// Address returns the address of the service
func (c *ClientConfig) Address() string {
	return LoopbackEndpoint(c.Port)
}

// ConnectTimeout returns ConnectTimeoutMs as a duration, falling back to the default
func (c *ClientConfig) ConnectTimeout() time.Duration {
	if c.ConnectTimeoutMs <= 0 {
		return DefaultConnectTimeoutMs * time.Millisecond
	}
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

// PollInterval returns PollIntervalMs as a duration, falling back to the default
func (c *ClientConfig) PollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return DefaultPollIntervalMs * time.Millisecond
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ReconnectInterval returns ReconnectIntervalMs as a duration. Zero disables throttling.
func (c *ClientConfig) ReconnectInterval() time.Duration {
	if c.ReconnectIntervalMs < 0 {
		return 0
	}
	return time.Duration(c.ReconnectIntervalMs) * time.Millisecond
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Endpoint", c.Address())
	addField("Connect Timeout", c.ConnectTimeout().String())
	addField("Poll Interval", c.PollInterval().String())
	addField("Reconnect Interval", c.ReconnectInterval().String())

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// LoopbackEndpoint formats the IPv6 loopback address with the given port
func LoopbackEndpoint(port int) string {
	return fmt.Sprintf("[%s]:%d", LoopbackAddress, port)
}
