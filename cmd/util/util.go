package util

import (
	"fmt"
	"github.com/ValentinKolb/hmdlink/rpc/client"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strconv"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by viper
	EnvPrefix = "hmdlink"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the connection flags shared by all client commands
func SetupClientFlags(cmd *cobra.Command) {
	key := "port"
	cmd.PersistentFlags().Int(key, common.ServicePort, WrapString("The port of the service on the IPv6 loopback interface"))

	key = "connect-timeout"
	cmd.PersistentFlags().Int(key, common.DefaultConnectTimeoutMs, WrapString("How long to wait for the connection handshake (in milliseconds)"))

	key = "poll-interval"
	cmd.PersistentFlags().Int(key, common.DefaultPollIntervalMs, WrapString("Sleep of the poll loop while no socket is active (in milliseconds)"))

	key = "reconnect-interval"
	cmd.PersistentFlags().Int(key, common.DefaultReconnectIntervalMs, WrapString("Minimum time between two reconnect attempts (in milliseconds, 0 disables throttling)"))

	key = "hmd"
	cmd.PersistentFlags().Int(key, int(common.InvalidVirtualHmdId), WrapString("The virtual HMD id the command applies to (-1 addresses the global profile)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads .env files and makes viper read HMDLINK_* variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() common.ClientConfig {
	return common.ClientConfig{
		Port:                viper.GetInt("port"),
		ConnectTimeoutMs:    viper.GetInt("connect-timeout"),
		PollIntervalMs:      viper.GetInt("poll-interval"),
		ReconnectIntervalMs: viper.GetInt("reconnect-interval"),
		LogLevel:            viper.GetString("log-level"),
	}
}

// GetHMD returns the virtual HMD id selected with --hmd
func GetHMD() common.VirtualHmdId {
	return common.VirtualHmdId(viper.GetInt("hmd"))
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// NewClient creates a started client from the viper configuration and
// connects it. The returned client must be closed by the caller.
func NewClient() (*client.NetClient, error) {
	config := GetClientConfig()
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return nil, err
	}

	c := client.New(config)
	c.Start()
	if !c.Connect(true) {
		c.Close()
		return nil, fmt.Errorf("no service reachable at %s", config.Address())
	}
	return c, nil
}

// ParseHMD parses a virtual HMD id given as a positional argument
func ParseHMD(arg string) (common.VirtualHmdId, error) {
	id, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		return common.InvalidVirtualHmdId, fmt.Errorf("invalid hmd id %q: %v", arg, err)
	}
	return common.VirtualHmdId(id), nil
}
