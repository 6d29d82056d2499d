package config

import (
	"fmt"
	"time"
)

// Role is the node role within the platform.
type Role string

// Node roles.
const (
	RoleControlPlane Role = "control-plane"
	RoleWorker       Role = "worker"
)

// Opposite returns the role whose nodes survive while a node of r is down.
func (r Role) Opposite() Role {
	if r == RoleControlPlane {
		return RoleWorker
	}
	return RoleControlPlane
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleControlPlane || r == RoleWorker
}

// ParseRole converts a CLI value into a Role. The empty string means
// "detect from node labels".
func ParseRole(s string) (Role, error) {
	switch s {
	case "":
		return "", nil
	case "control-plane", "controlplane", "server", "master":
		return RoleControlPlane, nil
	case "worker", "agent":
		return RoleWorker, nil
	}
	return "", fmt.Errorf("unknown role %q (expected control-plane or worker)", s)
}

// PowerAction is the terminal machine-level action.
type PowerAction string

// Power actions.
const (
	ActionPowerOff PowerAction = "poweroff"
	ActionReboot   PowerAction = "reboot"
	ActionNone     PowerAction = "none"
)

// Numeric floors.
const (
	MinGracePeriod  = 10 * time.Second
	MinForceTimeout = 30 * time.Second
)

// Default paths and namespaces.
const (
	DefaultLogDir              = "/var/log/nodecycle"
	DefaultStateDir            = "/var/lib/nodecycle"
	DefaultStorageNamespace    = "longhorn-system"
	DefaultReconcilerNamespace = "argocd"
	DefaultKillallScript       = "/usr/local/bin/k3s-killall.sh"
)

// ServiceUnits maps each role to the systemd unit running the node agent.
type ServiceUnits struct {
	ControlPlane string `yaml:"control_plane"`
	Worker       string `yaml:"worker"`
}

// For returns the unit for role.
func (u ServiceUnits) For(role Role) string {
	if role == RoleControlPlane {
		return u.ControlPlane
	}
	return u.Worker
}

// Config is the resolved configuration of one maintenance session.
type Config struct {
	Node               string        `yaml:"node"`
	Role               Role          `yaml:"role"`
	GracePeriod        time.Duration `yaml:"grace_period"`
	ForceTimeout       time.Duration `yaml:"force_timeout"`
	StorageWait        time.Duration `yaml:"storage_wait"`
	DryRun             bool          `yaml:"dry_run"`
	AllowSingleReplica bool          `yaml:"allow_single_replica"`
	Action             PowerAction   `yaml:"action"`

	Kubeconfig string `yaml:"kubeconfig"`
	LogDir     string `yaml:"log_dir"`
	StateDir   string `yaml:"state_dir"`
	// MetricsDir is a node-exporter textfile collector directory. Empty disables metrics.
	MetricsDir string `yaml:"metrics_dir"`

	StorageNamespace    string   `yaml:"storage_namespace"`
	ReconcilerNamespace string   `yaml:"reconciler_namespace"`
	ExcludedNamespaces  []string `yaml:"excluded_namespaces"`

	Units         ServiceUnits `yaml:"units"`
	KillallScript string       `yaml:"killall_script"`

	Timings Timings `yaml:"-"`
}

// Defaults returns a Config populated with the documented defaults.
func Defaults() *Config {
	return &Config{
		GracePeriod:         30 * time.Second,
		ForceTimeout:        120 * time.Second,
		StorageWait:         300 * time.Second,
		Action:              ActionPowerOff,
		LogDir:              DefaultLogDir,
		StateDir:            DefaultStateDir,
		StorageNamespace:    DefaultStorageNamespace,
		ReconcilerNamespace: DefaultReconcilerNamespace,
		ExcludedNamespaces:  []string{DefaultStorageNamespace},
		Units: ServiceUnits{
			ControlPlane: "k3s.service",
			Worker:       "k3s-agent.service",
		},
		KillallScript: DefaultKillallScript,
		Timings:       *LoadTimings(),
	}
}

// ServiceUnit returns the unit to stop for the configured role.
func (c *Config) ServiceUnit() string {
	return c.Units.For(c.Role)
}

// DrainBound is the upper bound on the wall-clock duration of the drain phase.
func (c *Config) DrainBound() time.Duration {
	return c.GracePeriod + c.ForceTimeout + c.Timings.ForceSettle
}

// IsExcluded reports whether pods in ns are left alone by the drain.
func (c *Config) IsExcluded(ns string) bool {
	for _, excluded := range c.ExcludedNamespaces {
		if excluded == ns {
			return true
		}
	}
	return false
}
