// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodecycle/cmd/nodecycle/handlers"
	"github.com/imamik/nodecycle/internal/config"
)

// maintain is replaced in tests.
var maintain = handlers.Maintain

// Root returns the root command for the nodecycle CLI.
//
// Without a subcommand it runs the maintenance sequence for --node:
// preflight, health audit, confirmation, cordon, drain, storage
// quiescence, service shutdown and the power action.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:   "nodecycle",
		Short: "Take a k3s node out of service for maintenance",
		Long: `Take a k3s node out of service for maintenance.

The node is cordoned and drained, Longhorn volumes are given time to detach,
the k3s service is stopped and the machine is powered off or rebooted. An
interrupted session uncordons the node before exiting.

Examples:
  # Rehearse without changing anything
  nodecycle --node worker-1 --dry-run

  # Drain and reboot a worker
  nodecycle --node worker-1 --action reboot

  # Bring the node back once it has rebooted
  nodecycle restore --node worker-1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Changed = cmd.Flags().Changed
			return maintain(cmd.Context(), *opts)
		},
	}

	bindCommon(cmd, opts)

	f := cmd.Flags()
	f.IntVar(&opts.GracePeriod, "grace-period", 30, "Seconds pods get to terminate before forced deletion (min 10)")
	f.IntVar(&opts.ForceTimeout, "force-timeout", 120, "Seconds to wait after forced deletion (min 30, greater than --grace-period)")
	f.IntVar(&opts.StorageWait, "storage-wait", 300, "Seconds to wait for volumes to detach")
	f.BoolVar(&opts.DryRun, "dry-run", false, "Log every action without changing the cluster or the host")
	f.BoolVar(&opts.AllowSingleReplica, "allow-single-replica", false, "Do not warn about volumes without a replica on a surviving node")
	f.StringVar(&opts.Role, "role", "", "Node role (control-plane or worker); detected from labels when empty")
	f.StringVar(&opts.Action, "action", string(config.ActionPowerOff), "Final action: poweroff, reboot or none")
	f.StringVar(&opts.LogDir, "log-dir", config.DefaultLogDir, "Directory for the per-session log file")
	f.StringVar(&opts.MetricsDir, "metrics-dir", "", "node-exporter textfile collector directory")

	cmd.AddCommand(Audit())
	cmd.AddCommand(Restore())
	cmd.AddCommand(History())
	cmd.AddCommand(Version())

	return cmd
}

// bindCommon registers the flags every command accepts.
func bindCommon(cmd *cobra.Command, opts *handlers.Options) {
	f := cmd.PersistentFlags()
	f.StringVar(&opts.Node, "node", "", "Name of the node to maintain (required)")
	f.StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to the kubeconfig (default: standard rules, then /etc/rancher/k3s/k3s.yaml)")
	f.StringVarP(&opts.ConfigFile, "config", "c", "", "Path to a YAML configuration file")
	f.StringVar(&opts.StateDir, "state-dir", config.DefaultStateDir, "Directory for markers and the session journal")
	f.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
}
