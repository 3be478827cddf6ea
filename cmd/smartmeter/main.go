// Package main is the entry point for the smartmeter CLI.
//
// The meter can be embedded as a library (SDK) or run as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	smartmeter serve -c config.yaml     # Read the meter and serve the dashboard
//	smartmeter validate -c config.yaml  # Validate configuration
//	smartmeter decode capture.bin       # Print the readings in a raw capture
//	smartmeter version                  # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd only displays help; functionality lives in subcommands.
var rootCmd = &cobra.Command{
	Use:   "smartmeter",
	Short: "Read D0 smart meter telegrams",
	Long: `smartmeter reads the optical (D0) interface of an electricity meter.

It reassembles the meter's telegrams from a serial read head or a
serial-over-TCP bridge, keeps the latest value of every OBIS address and
serves them on a small web dashboard with Server-Sent Events.
Readings can optionally be published to MQTT or Kafka.

Quick start:
  1. Create a config file (smartmeter.yaml)
  2. Run: smartmeter serve -c smartmeter.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  serial:
    device: /dev/ttyUSB0
    baud_rate: 9600
  sensors:
    - "1-0:1.8.0*255"
    - "1-0:16.7.0*255"`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this smartmeter binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "smartmeter %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
