package latency

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/hmdlink/cmd/util"
	"github.com/ValentinKolb/hmdlink/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"time"
)

var (
	netClient *client.NetClient

	// LatencyCommands represents the latency tester command group
	LatencyCommands = &cobra.Command{
		Use:                "latency",
		Short:              "Drive the latency tester of the service",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Runs a latency test and prints the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := waitForTester(viper.GetDuration("wait")); err != nil {
				return err
			}

			duration := viper.GetDuration("duration")
			ticker := time.NewTicker(time.Second / time.Duration(max(viper.GetInt("rate"), 1)))
			defer ticker.Stop()

			start := time.Now()
			var last [3]uint8
			for now := range ticker.C {
				elapsed := now.Sub(start)
				if elapsed > duration {
					break
				}
				rgb, ok := netClient.LatencyUtilProcessInputs(elapsed.Seconds())
				if !ok {
					return errors.New("latency tester no longer reachable")
				}
				if rgb != last {
					fmt.Printf("%8.3fs  color=#%02x%02x%02x\n", elapsed.Seconds(), rgb[0], rgb[1], rgb[2])
					last = rgb
				}
			}

			return printResults()
		},
	}
	resultsCmd = &cobra.Command{
		Use:   "results",
		Short: "Prints the results of the last latency test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResults()
		},
	}
)

func init() {
	util.SetupClientFlags(LatencyCommands)

	key := "wait"
	LatencyCommands.PersistentFlags().Duration(key, time.Second, util.WrapString("How long to wait for the service to report a latency tester"))
	key = "duration"
	runCmd.Flags().Duration(key, 2*time.Second, util.WrapString("How long to drive the latency test"))
	key = "rate"
	runCmd.Flags().Int(key, 60, util.WrapString("How often per second the tester is polled"))

	LatencyCommands.AddCommand(runCmd)
	LatencyCommands.AddCommand(resultsCmd)
}

// setupClient connects the client used by all latency commands
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

// waitForTester waits for the availability push that follows the handshake
func waitForTester(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !netClient.LatencyTesterAvailable() {
		if time.Now().After(deadline) {
			return errors.New("the service has no latency tester")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func printResults() error {
	results, ok := netClient.LatencyUtilGetResultsString()
	if !ok {
		return errors.New("could not read the latency results")
	}
	if results == "" {
		results = "(no results)"
	}
	fmt.Printf("results: %s\n", results)
	return nil
}
