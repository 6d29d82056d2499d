package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "nodecycle", cmd.Use)
	assert.Equal(t, "Take a k3s node out of service for maintenance", cmd.Short)
	assert.True(t, cmd.SilenceUsage)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range []string{"audit", "restore", "history", "version"} {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
	assert.Len(t, cmd.Commands(), 4)
}

func TestRoot_FlagDefaults(t *testing.T) {
	cmd := Root()

	tests := []struct {
		flag     string
		expected string
	}{
		{"grace-period", "30"},
		{"force-timeout", "120"},
		{"storage-wait", "300"},
		{"dry-run", "false"},
		{"allow-single-replica", "false"},
		{"action", "poweroff"},
		{"role", ""},
		{"log-dir", "/var/log/nodecycle"},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			f := cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.expected, f.DefValue)
		})
	}

	for _, name := range []string{"node", "kubeconfig", "config", "state-dir", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}
