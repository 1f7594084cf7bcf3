package profile

import (
	"github.com/ValentinKolb/hmdlink/cmd/util"
	"github.com/ValentinKolb/hmdlink/rpc/client"
	"github.com/spf13/cobra"
)

var (
	netClient *client.NetClient

	// ProfileCommands represents the profile command group
	ProfileCommands = &cobra.Command{
		Use:                "profile",
		Short:              "Read and write profile values of the service",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	// Add common client flags to the profile command
	util.SetupClientFlags(ProfileCommands)

	key := "type"
	ProfileCommands.PersistentFlags().String(key, "string", util.WrapString("Type of the value (string, bool, int, number, numbers)"))

	// Add subcommands
	ProfileCommands.AddCommand(getCmd)
	ProfileCommands.AddCommand(setCmd)
}

// setupClient connects the client used by all profile commands
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
