package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodecycle/cmd/nodecycle/handlers"
)

var history = handlers.History

// History returns the command that lists recorded sessions.
func History() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded maintenance sessions for a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Changed = cmd.Flags().Changed
			return history(*opts)
		},
	}

	inherit(cmd, opts)
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output in JSON format")

	return cmd
}
