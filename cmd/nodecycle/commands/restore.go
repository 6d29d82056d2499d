package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/nodecycle/cmd/nodecycle/handlers"
	"github.com/imamik/nodecycle/internal/config"
)

var restore = handlers.Restore

// Restore returns the command that returns a node to service.
func Restore() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Uncordon a node once it is Ready again",
		Long: `Wait for --node to report Ready, then uncordon it if nodecycle cordoned it.

Without a cordon marker the node is left untouched.

Examples:
  nodecycle restore --node worker-1
  nodecycle restore --node worker-1 --wait-ready 20m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Changed = cmd.Flags().Changed
			return restore(cmd.Context(), *opts)
		},
	}

	inherit(cmd, opts)
	cmd.Flags().DurationVar(&opts.WaitReady, "wait-ready", 10*time.Minute, "How long to wait for the node to become Ready")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report what would be restored")
	cmd.Flags().StringVar(&opts.LogDir, "log-dir", config.DefaultLogDir, "Directory for the log file")

	return cmd
}
