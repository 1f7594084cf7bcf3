package hmd

import (
	"github.com/ValentinKolb/hmdlink/cmd/util"
	"github.com/ValentinKolb/hmdlink/rpc/client"
	"github.com/spf13/cobra"
)

var (
	netClient *client.NetClient

	// HMDCommands represents the hmd command group
	HMDCommands = &cobra.Command{
		Use:                "hmd",
		Short:              "Detect and inspect HMDs and control the display driver",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	util.SetupClientFlags(HMDCommands)

	// Add subcommands
	HMDCommands.AddCommand(detectCmd)
	HMDCommands.AddCommand(infoCmd)
	HMDCommands.AddCommand(capsCmd)
	HMDCommands.AddCommand(driverModeCmd)
	HMDCommands.AddCommand(shutdownCmd)
}

// setupClient connects the client used by all hmd commands
func setupClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	netClient, err = util.NewClient()
	return err
}

func closeClient(_ *cobra.Command, _ []string) error {
	if netClient != nil {
		netClient.Close()
	}
	return nil
}
