package serve

import (
	"context"
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/hmdlink/cmd/util"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/ValentinKolb/hmdlink/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

var (
	serveCmdConfig = common.DefaultServerConfig()
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the reference device service",
		Long:    `Start the reference device service on the IPv6 loopback interface. The configuration can be set via command line flags or environment variables. The format of the environment variables is HMDLINK_<flag> (e.g. HMDLINK_HMD_COUNT=2)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "port"
	ServeCmd.PersistentFlags().Int(key, common.ServicePort, cmdUtil.WrapString("The port the service listens on. Only the IPv6 loopback address is ever bound"))

	key = "hmd-count"
	ServeCmd.PersistentFlags().Int(key, common.DefaultHMDCount, cmdUtil.WrapString("Number of simulated HMDs reported to clients"))

	key = "latency-tester"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Whether a simulated latency tester is attached"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Directory of the profile database. If empty, profiles are kept in memory"))

	key = "allow-remote-shutdown"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Whether clients may stop the service with the Shutdown call"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of an HTTP endpoint serving /metrics in prometheus format (e.g. 127.0.0.1:9090). Empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Port = viper.GetInt("port")
	serveCmdConfig.HMDCount = viper.GetInt("hmd-count")
	serveCmdConfig.LatencyTester = viper.GetBool("latency-tester")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.AllowRemoteShutdown = viper.GetBool("allow-remote-shutdown")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Port < 0 || serveCmdConfig.Port > 65535 {
		return fmt.Errorf("invalid port %d", serveCmdConfig.Port)
	}
	if serveCmdConfig.HMDCount < 0 {
		return fmt.Errorf("invalid hmd count %d", serveCmdConfig.HMDCount)
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the service and blocks until it is interrupted or shut down remotely
func run(_ *cobra.Command, _ []string) error {
	srv, err := server.NewNetServer(serveCmdConfig, nil)
	if err != nil {
		return err
	}
	defer srv.Close()

	if err := srv.Listen(); err != nil {
		return err
	}

	fmt.Println("hmdlink service")
	fmt.Println(serveCmdConfig.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = srv.Serve(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println("interrupted, shutting down")
		return nil
	case errors.Is(err, server.ErrShutdownRequested):
		fmt.Println("shutdown requested by client")
		return nil
	default:
		return err
	}
}
