// Fleet Core - device fleet registry and automation service.
//
// This is the main entry point. It tracks ESP32-class sensors and actuators
// over MQTT, evaluates automation rules against their telemetry, and serves
// the HTTP and WebSocket API used by the dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	configEnvVar = "FLEETCORE_CONFIG"
)

func main() {
	// Cancel on Ctrl+C or SIGTERM so run can shut down gracefully.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the CLI. The root command runs the service; the
// version subcommand prints build information.
func newRootCommand() *cobra.Command {
	var configFlag string

	cmd := &cobra.Command{
		Use:   "fleetcore",
		Short: "Device fleet registry and automation service",
		Long: `fleetcore tracks sensors and actuators over MQTT, evaluates
automation rules against their telemetry, and serves the HTTP API.

Configuration is read from --config, then $FLEETCORE_CONFIG, then
configs/config.yaml. Built-in defaults apply when none of those exist.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, explicit := resolveConfigPath(configFlag)
			return run(cmd.Context(), path, explicit)
		},
	}

	cmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to config file")
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "fleetcore %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}

// resolveConfigPath picks the config file path. The boolean reports whether
// the path was chosen by the operator, in which case it must exist.
func resolveConfigPath(flag string) (string, bool) {
	if flag != "" {
		return flag, true
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// configFileMissing reports whether an implicit config path can be skipped
// in favour of built-in defaults.
func configFileMissing(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, os.ErrNotExist)
}
