// Package cli implements the command-line interface for the monitor
// core.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/monitordev/monitor/internal/util"
	"github.com/monitordev/monitor/internal/version"
)

// Global flags
var (
	configPath string
	logLevel   string
	logJSON    bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "core",
	Short: "Monitor core",
	Long: `The monitor core is the control plane for building and deploying
containers across a fleet of servers. It keeps the desired state of
servers, builds, deployments, repos and builders, drives the periphery
agents running on each server, and records every operation as an
auditable update.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		util.SetLogLevel(logLevel)
		if logJSON {
			util.SetJSONLogging()
		}
	},
}

// Execute runs the CLI. Called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the core config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
}
