package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.Node = "node-1"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 30*time.Second, cfg.GracePeriod)
	assert.Equal(t, 120*time.Second, cfg.ForceTimeout)
	assert.Equal(t, 300*time.Second, cfg.StorageWait)
	assert.Equal(t, ActionPowerOff, cfg.Action)
	assert.Equal(t, []string{"longhorn-system"}, cfg.ExcludedNamespaces)
	assert.False(t, cfg.DryRun)
	assert.False(t, cfg.AllowSingleReplica)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults with node", mutate: func(*Config) {}},
		{name: "floors are inclusive", mutate: func(c *Config) {
			c.GracePeriod = MinGracePeriod
			c.ForceTimeout = MinForceTimeout
		}},
		{name: "missing node", mutate: func(c *Config) { c.Node = " " }, wantErr: "node is required"},
		{name: "grace below floor", mutate: func(c *Config) { c.GracePeriod = 9 * time.Second }, wantErr: "below the minimum of 10s"},
		{name: "force below floor", mutate: func(c *Config) { c.ForceTimeout = 29 * time.Second; c.GracePeriod = 10 * time.Second }, wantErr: "below the minimum of 30s"},
		{name: "force equal to grace", mutate: func(c *Config) { c.GracePeriod = 60 * time.Second; c.ForceTimeout = 60 * time.Second }, wantErr: "must be greater than grace period"},
		{name: "zero storage wait", mutate: func(c *Config) { c.StorageWait = 0 }, wantErr: "storage wait must be positive"},
		{name: "bad action", mutate: func(c *Config) { c.Action = "halt" }, wantErr: "unknown power action"},
		{name: "bad role", mutate: func(c *Config) { c.Role = "etcd" }, wantErr: "unknown role"},
		{name: "missing unit", mutate: func(c *Config) { c.Units.Worker = "" }, wantErr: "service units"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"":              "",
		"control-plane": RoleControlPlane,
		"server":        RoleControlPlane,
		"worker":        RoleWorker,
		"agent":         RoleWorker,
	} {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRole("storage")
	assert.Error(t, err)
}

func TestRoleData(t *testing.T) {
	cfg := validConfig()

	cfg.Role = RoleControlPlane
	assert.Equal(t, "k3s.service", cfg.ServiceUnit())
	assert.Equal(t, RoleWorker, cfg.Role.Opposite())

	cfg.Role = RoleWorker
	assert.Equal(t, "k3s-agent.service", cfg.ServiceUnit())
	assert.Equal(t, RoleControlPlane, cfg.Role.Opposite())
}

func TestDrainBound(t *testing.T) {
	cfg := validConfig()
	cfg.GracePeriod = 10 * time.Second
	cfg.ForceTimeout = 30 * time.Second
	cfg.Timings.ForceSettle = 5 * time.Second

	assert.Equal(t, 45*time.Second, cfg.DrainBound())
}

func TestIsExcluded(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.IsExcluded("longhorn-system"))
	assert.False(t, cfg.IsExcluded("default"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodecycle.yaml")
	content := `node: node-2
role: worker
grace_period: 45s
force_timeout: 3m
action: reboot
excluded_namespaces: [longhorn-system, kube-system]
units:
  control_plane: rke2-server.service
  worker: rke2-agent.service
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "node-2", cfg.Node)
	assert.Equal(t, RoleWorker, cfg.Role)
	assert.Equal(t, 45*time.Second, cfg.GracePeriod)
	assert.Equal(t, 3*time.Minute, cfg.ForceTimeout)
	assert.Equal(t, ActionReboot, cfg.Action)
	assert.Equal(t, "rke2-agent.service", cfg.ServiceUnit())
	assert.Equal(t, 300*time.Second, cfg.StorageWait, "unset keys keep their defaults")
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults().GracePeriod, cfg.GracePeriod)
}

func TestLoadFile_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grace_perod: 10s\n"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
