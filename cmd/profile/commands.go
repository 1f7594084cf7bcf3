package profile

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/hmdlink/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strconv"
	"strings"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads a profile value, printing the default if the key is unset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			hmd := util.GetHMD()
			def := viper.GetString("default")

			switch viper.GetString("type") {
			case "string":
				fmt.Printf("key=%s, value=%s\n", key, netClient.GetStringValue(hmd, key, def))
			case "bool":
				d, err := parseBool(def)
				if err != nil {
					return err
				}
				fmt.Printf("key=%s, value=%v\n", key, netClient.GetBoolValue(hmd, key, d))
			case "int":
				d, err := parseInt(def)
				if err != nil {
					return err
				}
				fmt.Printf("key=%s, value=%d\n", key, netClient.GetIntValue(hmd, key, d))
			case "number":
				d, err := parseNumber(def)
				if err != nil {
					return err
				}
				fmt.Printf("key=%s, value=%g\n", key, netClient.GetNumberValue(hmd, key, d))
			case "numbers":
				values := make([]float64, viper.GetInt("count"))
				n := netClient.GetNumberValues(hmd, key, values)
				fmt.Printf("key=%s, count=%d, values=%s\n", key, n, formatNumbers(values[:n]))
			default:
				return fmt.Errorf("invalid type %s", viper.GetString("type"))
			}
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets a profile value (numbers are given comma separated)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := args[0], args[1]
			hmd := util.GetHMD()

			var ok bool
			switch viper.GetString("type") {
			case "string":
				ok = netClient.SetStringValue(hmd, key, raw)
			case "bool":
				v, err := parseBool(raw)
				if err != nil {
					return err
				}
				ok = netClient.SetBoolValue(hmd, key, v)
			case "int":
				v, err := parseInt(raw)
				if err != nil {
					return err
				}
				ok = netClient.SetIntValue(hmd, key, v)
			case "number":
				v, err := parseNumber(raw)
				if err != nil {
					return err
				}
				ok = netClient.SetNumberValue(hmd, key, v)
			case "numbers":
				values, err := parseNumbers(raw)
				if err != nil {
					return err
				}
				ok = netClient.SetNumberValues(hmd, key, values)
			default:
				return fmt.Errorf("invalid type %s", viper.GetString("type"))
			}

			if !ok {
				return errors.New("set failed: service not reachable")
			}
			fmt.Println("set successfully")
			return nil
		},
	}
)

func init() {
	key := "default"
	getCmd.Flags().String(key, "", util.WrapString("Value printed if the key is unset"))
	key = "count"
	getCmd.Flags().Int(key, 16, util.WrapString("Maximum number of values to read (only for type numbers)"))
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("value must be a bool: %w", err)
	}
	return v, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("value must be a 32 bit integer: %w", err)
	}
	return int(v), nil
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("value must be a number: %w", err)
	}
	return v, nil
}

func parseNumbers(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("values must be comma separated numbers: %w", err)
		}
		values = append(values, v)
	}
	return values, nil
}

func formatNumbers(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
