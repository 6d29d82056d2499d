package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodecycle/cmd/nodecycle/handlers"
)

var audit = handlers.Audit

// Audit returns the command that prints the health report without changing
// anything.
//
// Optional flags:
//
//	--json: Output in JSON format
//	--role: Override the role detected from node labels
func Audit() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the cluster health report for a node",
		Long: `Run the read-only preflight checks and the health audit for --node.

Never mutates the cluster and never takes the node lock, so it is safe to run
while a maintenance session is in progress.

Examples:
  nodecycle audit --node worker-1
  nodecycle audit --node worker-1 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Changed = cmd.Flags().Changed
			return audit(cmd.Context(), *opts)
		},
	}

	inherit(cmd, opts)
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output in JSON format")
	cmd.Flags().StringVar(&opts.Role, "role", "", "Node role (control-plane or worker)")
	cmd.Flags().BoolVar(&opts.AllowSingleReplica, "allow-single-replica", false, "Report replica placement violations as notes")

	return cmd
}

// inherit copies the persistent root flags into opts before the command
// runs. Flags missing from the command tree keep their zero value.
func inherit(cmd *cobra.Command, opts *handlers.Options) {
	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		for name, dst := range map[string]*string{
			"node":       &opts.Node,
			"kubeconfig": &opts.Kubeconfig,
			"config":     &opts.ConfigFile,
			"state-dir":  &opts.StateDir,
			"log-level":  &opts.LogLevel,
		} {
			if fl := cmd.Flags().Lookup(name); fl != nil {
				*dst = fl.Value.String()
			}
		}
	}
}
