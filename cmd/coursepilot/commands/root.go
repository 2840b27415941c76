// Package commands defines all Cobra CLI commands for the coursepilot binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/KP1729/coursepilot/internal/audit"
	"github.com/KP1729/coursepilot/internal/config"
	"github.com/KP1729/coursepilot/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coursepilot",
		Short: "CoursePilot — ask questions about your course materials",
		Long: `CoursePilot is a local-first assistant for course materials.

It ingests course transcript documents into a vector store, then answers
natural language questions about their content with cited sources, using
retrieval-augmented generation over the ingested material.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.coursepilot/config.yaml).
See 'coursepilot --help' for available commands.`,
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.coursepilot/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewCoursesCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
