package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dispatchctl",
		Short: "Operator tooling for the dispatch service",
		Long: `dispatchctl prepares and inspects a dispatch-service deployment.

It applies database migrations and seed data, validates policy and incident
template files before they are rolled out, and issues actor tokens for
environments that run with AUTH_REQUIRE_TOKEN=true.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newMigrateCmd(), newSeedCmd(), newTokenCmd(), newPolicyCmd(), newTemplatesCmd())
	return root
}

// Execute runs the root command. Interrupts cancel the command context so a running
// migration or seed rolls back.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}
