// Package handlers implements the business logic for CLI commands.
//
// Each handler resolves the session configuration from defaults, an optional
// YAML file and explicit flags, then delegates to the internal packages.
package handlers

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/imamik/nodecycle/internal/config"
	"github.com/imamik/nodecycle/internal/confirm"
	"github.com/imamik/nodecycle/internal/k8s"
	"github.com/imamik/nodecycle/internal/logging"
	"github.com/imamik/nodecycle/internal/util/retry"
)

// Options carries the flag values of one invocation.
type Options struct {
	Node   string
	Role   string
	Action string

	// Durations in whole seconds, as given on the command line.
	GracePeriod  int
	ForceTimeout int
	StorageWait  int

	DryRun             bool
	AllowSingleReplica bool

	Kubeconfig string
	ConfigFile string
	LogDir     string
	StateDir   string
	MetricsDir string
	LogLevel   string

	// WaitReady bounds the readiness wait of restore.
	WaitReady time.Duration
	JSON      bool

	// Changed reports whether a flag was set explicitly. When nil every
	// non-zero value overrides the file.
	Changed func(name string) bool
}

func (o Options) set(flag string, zero bool) bool {
	if o.Changed != nil {
		return o.Changed(flag)
	}
	return !zero
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	loadConfigFile = config.LoadFile

	newClient = func(cfg *config.Config) (*k8s.Client, error) {
		return k8s.NewClient(cfg.Kubeconfig,
			k8s.WithAPITimeout(cfg.Timings.APICall),
			k8s.WithRetry(
				retry.WithMaxRetries(cfg.Timings.RetryMaxAttempts),
				retry.WithInitialDelay(cfg.Timings.RetryInitialDelay),
			),
		)
	}

	openLog = logging.Open

	newPrompter = func() confirm.Prompter {
		return confirm.NewPrompter(os.Stdin, os.Stderr)
	}

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// resolveConfig layers flags over the config file over the defaults.
func resolveConfig(opts Options) (*config.Config, error) {
	cfg, err := loadConfigFile(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	if opts.set("node", opts.Node == "") {
		cfg.Node = opts.Node
	}
	if opts.set("role", opts.Role == "") {
		role, err := config.ParseRole(opts.Role)
		if err != nil {
			return nil, err
		}
		cfg.Role = role
	}
	if opts.set("action", opts.Action == "") {
		cfg.Action = config.PowerAction(opts.Action)
	}
	if opts.set("grace-period", opts.GracePeriod == 0) {
		cfg.GracePeriod = seconds(opts.GracePeriod)
	}
	if opts.set("force-timeout", opts.ForceTimeout == 0) {
		cfg.ForceTimeout = seconds(opts.ForceTimeout)
	}
	if opts.set("storage-wait", opts.StorageWait == 0) {
		cfg.StorageWait = seconds(opts.StorageWait)
	}
	if opts.set("dry-run", !opts.DryRun) {
		cfg.DryRun = opts.DryRun
	}
	if opts.set("allow-single-replica", !opts.AllowSingleReplica) {
		cfg.AllowSingleReplica = opts.AllowSingleReplica
	}
	if opts.set("kubeconfig", opts.Kubeconfig == "") {
		cfg.Kubeconfig = opts.Kubeconfig
	}
	if opts.set("log-dir", opts.LogDir == "") {
		cfg.LogDir = opts.LogDir
	}
	if opts.set("state-dir", opts.StateDir == "") {
		cfg.StateDir = opts.StateDir
	}
	if opts.set("metrics-dir", opts.MetricsDir == "") {
		cfg.MetricsDir = opts.MetricsDir
	}
	if opts.set("wait-ready", opts.WaitReady == 0) {
		cfg.Timings.NodeReadyWait = opts.WaitReady
	}

	if cfg.Node == "" {
		return nil, errors.New("--node is required")
	}
	return cfg, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// openSessionLog opens the per-invocation log for cfg.
func openSessionLog(cfg *config.Config, sessionID, level string, withFile bool) (*logging.Session, error) {
	dir := cfg.LogDir
	if !withFile {
		dir = ""
	}
	return openLog(logging.Options{
		Dir:       dir,
		Node:      cfg.Node,
		SessionID: sessionID,
		Level:     logging.Level(level),
		Console:   stderr,
	})
}
