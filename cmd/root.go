package cmd

import (
	"fmt"
	"github.com/ValentinKolb/hmdlink/cmd/hmd"
	"github.com/ValentinKolb/hmdlink/cmd/latency"
	"github.com/ValentinKolb/hmdlink/cmd/perf"
	"github.com/ValentinKolb/hmdlink/cmd/profile"
	"github.com/ValentinKolb/hmdlink/cmd/serve"
	"github.com/ValentinKolb/hmdlink/cmd/util"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "1.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "hmdlink",
		Short: "loopback RPC link between HMD applications and the device service",
		Long: fmt.Sprintf(`hmdlink (v%s)

A client library and reference service for talking to a background
device service over a single IPv6 loopback connection. Profiles, HMD
management and the latency tester are exposed as typed blocking calls
and push notifications.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of hmdlink",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hmdlink v%s (protocol %s)\n", Version, common.LocalProtocolVersion())
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(profile.ProfileCommands)
	RootCmd.AddCommand(hmd.HMDCommands)
	RootCmd.AddCommand(latency.LatencyCommands)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
