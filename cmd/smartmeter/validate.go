package main

import (
	"fmt"

	"github.com/jpalmerr/smartmeter/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without connecting to the meter.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a smartmeter configuration file without opening the meter.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  smartmeter validate -c config.yaml
  smartmeter validate --config /etc/smartmeter/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// sensor options are validated again by the SDK
	if _, err := config.BuildSensors(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	messaging := "disabled"
	if cfg.Messaging.Backend != "" {
		messaging = cfg.Messaging.Backend + " -> " + cfg.Messaging.Topic
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:      %d\n", cfg.Port)
	fmt.Fprintf(out, "  Source:    %s\n", config.BuildSource(cfg))
	fmt.Fprintf(out, "  Sensors:   %d\n", len(cfg.Sensors))
	fmt.Fprintf(out, "  Messaging: %s\n", messaging)

	return nil
}
