package commands

import (
	"github.com/merxlabs/merx/internal/config"
	"github.com/spf13/cobra"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merx",
		Short: "Merx - Autonomous Commerce Agent",
		Long:  `Merx is a command-driven commerce agent that plans, gates and executes storefront, social and messaging actions.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return configureLogger(config.DefaultConfig(), logLevelOverride)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewServeCmd(),
		NewCommandCmd(),
		NewStatusCmd(),
		NewApprovalCmd(),
		NewVersionCmd(),
	)

	return cmd
}
