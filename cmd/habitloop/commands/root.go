// Package commands defines all Cobra CLI commands for the habitloop binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/habitloop/habitloop/internal/audit"
	"github.com/habitloop/habitloop/internal/config"
	"github.com/habitloop/habitloop/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "habitloop",
		Short: "HabitLoop — habit tracking with an AI wellness coach",
		Long: `HabitLoop is a habit-tracking backend with a built-in wellness coach.

The coach answers questions grounded in an ingested expert knowledge base,
the user's tracked habits, and the recent conversation. Habit data and chat
history are stored locally in SQLite.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.habitloop/config.yaml).
See 'habitloop --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.habitloop/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewDiagnoseCmd(),
		NewVersionCmd(),
	)

	return root
}
