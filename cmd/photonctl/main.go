package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "photonctl",
	Short: "Photon light sensor companion",
	Long: `Command-line companion for the Photon BLE light sensor:

- Find and connect to the sensor, reconnecting when the link drops
- Show live light readings and connection status
- Scan for Wi-Fi networks through the sensor
- Provision the sensor with Wi-Fi credentials
- Forward telemetry to an MQTT broker

Use --fixture to run against a simulated sensor without Bluetooth hardware.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// main() prints errors itself
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(wifiCmd)

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().Bool("fixture", false, "Use a simulated sensor instead of the Bluetooth radio")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
