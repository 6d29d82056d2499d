package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodecycle/cmd/nodecycle/handlers"
	"github.com/imamik/nodecycle/internal/confirm"
	"github.com/imamik/nodecycle/internal/session"
)

func stubMaintain(t *testing.T, err error) *handlers.Options {
	t.Helper()
	orig := maintain
	t.Cleanup(func() { maintain = orig })

	got := &handlers.Options{}
	maintain = func(_ context.Context, opts handlers.Options) error {
		*got = opts
		return err
	}
	return got
}

func TestExecute_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
		message  string
	}{
		{"success", nil, session.ExitOK, ""},
		{"failure", errors.New("boom"), session.ExitFailure, "Error: boom"},
		{"declined", fmt.Errorf("gate: %w", confirm.ErrDeclined), session.ExitDeclined, "Aborted:"},
		{"interrupted", session.ErrInterrupted, session.ExitInterrupted, "Interrupted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubMaintain(t, tt.err)

			var errOut bytes.Buffer
			code := Execute(context.Background(), []string{"--node", "worker-1"}, &errOut)

			assert.Equal(t, tt.expected, code)
			if tt.message != "" {
				assert.Contains(t, errOut.String(), tt.message)
			}
		})
	}
}

func TestExecute_PassesFlags(t *testing.T) {
	got := stubMaintain(t, nil)

	code := Execute(context.Background(), []string{
		"--node", "worker-1",
		"--grace-period", "45",
		"--force-timeout", "90",
		"--dry-run",
		"--action", "reboot",
		"--state-dir", "/tmp/state",
	}, &bytes.Buffer{})
	require.Equal(t, session.ExitOK, code)

	assert.Equal(t, "worker-1", got.Node)
	assert.Equal(t, 45, got.GracePeriod)
	assert.Equal(t, 90, got.ForceTimeout)
	assert.Equal(t, 300, got.StorageWait)
	assert.True(t, got.DryRun)
	assert.Equal(t, "reboot", got.Action)
	assert.Equal(t, "/tmp/state", got.StateDir)

	require.NotNil(t, got.Changed)
	assert.True(t, got.Changed("grace-period"))
	assert.False(t, got.Changed("storage-wait"))
}

func TestExecute_UnknownFlagFails(t *testing.T) {
	stubMaintain(t, nil)
	code := Execute(context.Background(), []string{"--bogus"}, &bytes.Buffer{})
	assert.Equal(t, session.ExitFailure, code)
}

func TestExecute_SubcommandsInheritPersistentFlags(t *testing.T) {
	origRestore := restore
	t.Cleanup(func() { restore = origRestore })

	var got handlers.Options
	restore = func(_ context.Context, opts handlers.Options) error {
		got = opts
		return nil
	}

	code := Execute(context.Background(), []string{"restore", "--node", "worker-2", "--wait-ready", "5m"}, &bytes.Buffer{})
	require.Equal(t, session.ExitOK, code)
	assert.Equal(t, "worker-2", got.Node)
	assert.Equal(t, 5*time.Minute, got.WaitReady)
	assert.Equal(t, "/var/lib/nodecycle", got.StateDir)
	assert.True(t, got.Changed("wait-ready"))
}

func TestExecute_AuditJSON(t *testing.T) {
	origAudit := audit
	t.Cleanup(func() { audit = origAudit })

	var got handlers.Options
	audit = func(_ context.Context, opts handlers.Options) error {
		got = opts
		return nil
	}

	code := Execute(context.Background(), []string{"audit", "--node", "cp-1", "--json"}, &bytes.Buffer{})
	require.Equal(t, session.ExitOK, code)
	assert.Equal(t, "cp-1", got.Node)
	assert.True(t, got.JSON)
}
