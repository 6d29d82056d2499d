package testing

import (
	"slices"
	"time"

	"github.com/imamik/nodecycle/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a builder with defaults and timings short enough
// for unit tests.
func NewConfigBuilder() *ConfigBuilder {
	cfg := *config.Defaults()
	cfg.Node = "node-1"
	cfg.Role = config.RoleWorker
	cfg.Action = config.ActionNone
	cfg.LogDir = ""
	cfg.StateDir = ""
	cfg.KillallScript = ""
	cfg.Timings = FastTimings()
	return &ConfigBuilder{cfg: cfg}
}

// FastTimings returns intervals in the millisecond range.
func FastTimings() config.Timings {
	return config.Timings{
		APICall:           time.Second,
		DrainPoll:         5 * time.Millisecond,
		ForceSettle:       10 * time.Millisecond,
		QuiescePoll:       5 * time.Millisecond,
		ServiceStopWait:   5 * time.Millisecond,
		EscalationSettle:  5 * time.Millisecond,
		NodeReadyWait:     200 * time.Millisecond,
		NodeReadyPoll:     5 * time.Millisecond,
		LockTimeout:       50 * time.Millisecond,
		RetryMaxAttempts:  1,
		RetryInitialDelay: time.Millisecond,
	}
}

// WithNode sets the target node.
func (b *ConfigBuilder) WithNode(name string) *ConfigBuilder {
	n := b.clone()
	n.cfg.Node = name
	return n
}

// WithRole sets the node role.
func (b *ConfigBuilder) WithRole(role config.Role) *ConfigBuilder {
	n := b.clone()
	n.cfg.Role = role
	return n
}

// WithGracePeriod sets the grace period.
func (b *ConfigBuilder) WithGracePeriod(d time.Duration) *ConfigBuilder {
	n := b.clone()
	n.cfg.GracePeriod = d
	return n
}

// WithForceTimeout sets the force timeout.
func (b *ConfigBuilder) WithForceTimeout(d time.Duration) *ConfigBuilder {
	n := b.clone()
	n.cfg.ForceTimeout = d
	return n
}

// WithStorageWait sets the storage wait deadline.
func (b *ConfigBuilder) WithStorageWait(d time.Duration) *ConfigBuilder {
	n := b.clone()
	n.cfg.StorageWait = d
	return n
}

// WithDryRun sets dry-run mode.
func (b *ConfigBuilder) WithDryRun(dryRun bool) *ConfigBuilder {
	n := b.clone()
	n.cfg.DryRun = dryRun
	return n
}

// WithAllowSingleReplica sets the single replica override.
func (b *ConfigBuilder) WithAllowSingleReplica(allow bool) *ConfigBuilder {
	n := b.clone()
	n.cfg.AllowSingleReplica = allow
	return n
}

// WithAction sets the power action.
func (b *ConfigBuilder) WithAction(action config.PowerAction) *ConfigBuilder {
	n := b.clone()
	n.cfg.Action = action
	return n
}

// WithStateDir sets the state directory.
func (b *ConfigBuilder) WithStateDir(dir string) *ConfigBuilder {
	n := b.clone()
	n.cfg.StateDir = dir
	return n
}

// WithTimings replaces the internal timings.
func (b *ConfigBuilder) WithTimings(t config.Timings) *ConfigBuilder {
	n := b.clone()
	n.cfg.Timings = t
	return n
}

// Build returns a copy of the configuration.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.clone().cfg
	return &cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	cfg := b.cfg
	cfg.ExcludedNamespaces = slices.Clone(b.cfg.ExcludedNamespaces)
	return &ConfigBuilder{cfg: cfg}
}
