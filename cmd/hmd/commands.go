package hmd

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/hmdlink/cmd/util"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strconv"
	"strings"
)

var (
	detectCmd = &cobra.Command{
		Use:   "detect",
		Short: "Prints the number of HMDs known to the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("hmds=%d\n", netClient.HmdDetect())
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info [index]",
		Short: "Creates the HMD at index, prints its description and releases it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index must be a number: %w", err)
			}

			netInfo, ok := netClient.HmdCreate(index)
			if !ok {
				return fmt.Errorf("could not create hmd %d", index)
			}
			defer netClient.HmdRelease(netInfo.NetId)

			info, ok := netClient.HmdGetHmdInfo(netInfo.NetId)
			if !ok {
				return fmt.Errorf("no info for hmd %d: %s", netInfo.NetId, netClient.HmdGetLastError(netInfo.NetId))
			}
			fmt.Print(formatInfo(netInfo, info, netClient.HmdGetEnabledCaps(netInfo.NetId)))
			return nil
		},
	}
	capsCmd = &cobra.Command{
		Use:   "caps [index] [supported] [required]",
		Short: "Configures tracking of the HMD at index and prints the enabled caps",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index must be a number: %w", err)
			}
			supported, err := strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return fmt.Errorf("supported caps must be a number: %w", err)
			}
			required, err := strconv.ParseUint(args[2], 0, 32)
			if err != nil {
				return fmt.Errorf("required caps must be a number: %w", err)
			}

			netInfo, ok := netClient.HmdCreate(index)
			if !ok {
				return fmt.Errorf("could not create hmd %d", index)
			}
			defer netClient.HmdRelease(netInfo.NetId)

			if !netClient.HmdConfigureTracking(netInfo.NetId, uint32(supported), uint32(required)) {
				return fmt.Errorf("configure tracking failed: %s", netClient.HmdGetLastError(netInfo.NetId))
			}
			fmt.Printf("hmd=%d, enabledCaps=0x%x\n", netInfo.NetId, netClient.HmdGetEnabledCaps(netInfo.NetId))
			return nil
		},
	}
	driverModeCmd = &cobra.Command{
		Use:   "driver-mode",
		Short: "Prints the display driver mode, or sets it if --compat or --hide-dk1 is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("compat") || cmd.Flags().Changed("hide-dk1") {
				current, ok := netClient.GetDriverMode()
				if !ok {
					return errors.New("could not read the driver mode")
				}
				compat, hide := current.CompatMode, current.HideDK1Mode
				if cmd.Flags().Changed("compat") {
					compat = viper.GetBool("compat")
				}
				if cmd.Flags().Changed("hide-dk1") {
					hide = viper.GetBool("hide-dk1")
				}
				if !netClient.SetDriverMode(compat, hide) {
					return errors.New("the service rejected the driver mode")
				}
			}

			mode, ok := netClient.GetDriverMode()
			if !ok {
				return errors.New("could not read the driver mode")
			}
			fmt.Printf("installed=%v, compat=%v, hideDK1=%v\n", mode.DriverInstalled, mode.CompatMode, mode.HideDK1Mode)
			return nil
		},
	}
	shutdownCmd = &cobra.Command{
		Use:   "shutdown",
		Short: "Asks the service to exit (ignored unless it allows remote shutdown)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !netClient.ShutdownServer() {
				return errors.New("could not send the shutdown request")
			}
			fmt.Println("shutdown requested")
			return nil
		},
	}
)

func init() {
	key := "compat"
	driverModeCmd.Flags().Bool(key, false, util.WrapString("Enable the display driver compatibility mode"))
	key = "hide-dk1"
	driverModeCmd.Flags().Bool(key, false, util.WrapString("Hide DK1 displays from the desktop"))
}

// formatInfo renders the HMD description in the same section layout as the configs
func formatInfo(netInfo common.HMDNetworkInfo, info common.HMDInfo, caps uint32) string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("HMD")
	addField("Net Id", strconv.Itoa(int(netInfo.NetId)))
	addField("Shared Memory", netInfo.SharedMemoryName)
	addField("Product", info.ProductName)
	addField("Manufacturer", info.Manufacturer)
	addField("Serial", info.PrintedSerial)
	addField("Firmware", fmt.Sprintf("%d.%d", info.FirmwareMajor, info.FirmwareMinor))
	addField("Enabled Caps", fmt.Sprintf("0x%x", caps))

	addSection("Display")
	addField("Resolution", fmt.Sprintf("%dx%d", info.ResolutionInPixels.W, info.ResolutionInPixels.H))
	addField("Screen Size", fmt.Sprintf("%.4fm x %.4fm", info.ScreenSizeInMeters.W, info.ScreenSizeInMeters.H))
	addField("Desktop Position", fmt.Sprintf("%d,%d", info.DesktopX, info.DesktopY))
	addField("Device Name", info.DisplayDeviceName)
	addField("Compatibility Mode", strconv.FormatBool(info.InCompatibilityMode))

	return sb.String()
}
