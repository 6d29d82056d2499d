package power

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodecycle/internal/config"
	testutil "github.com/imamik/nodecycle/internal/testing"
)

func TestExecute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action config.PowerAction
		expect string
	}{
		{name: "reboot", action: config.ActionReboot, expect: "Reboot"},
		{name: "poweroff", action: config.ActionPowerOff, expect: "PowerOff"},
		{name: "none", action: config.ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := new(testutil.MockPowerManager)
			m.On("Sync").Return().Once()
			if tt.expect != "" {
				m.On(tt.expect).Return(nil).Once()
			}

			c := &Controller{Manager: m, Action: tt.action, Log: testutil.TestLogger(t)}
			require.NoError(t, c.Execute(testutil.TestContext(t)))
			m.AssertExpectations(t)
		})
	}
}

func TestExecute_SyncHappensBeforeAction(t *testing.T) {
	t.Parallel()
	var order []string
	m := new(testutil.MockPowerManager)
	m.On("Sync").Run(func(mock.Arguments) { order = append(order, "sync") }).Return()
	m.On("PowerOff").Run(func(mock.Arguments) { order = append(order, "poweroff") }).Return(nil)

	c := &Controller{Manager: m, Action: config.ActionPowerOff, Log: testutil.TestLogger(t)}
	require.NoError(t, c.Execute(testutil.TestContext(t)))
	assert.Equal(t, []string{"sync", "poweroff"}, order)
}

func TestExecute_DryRunTouchesNothing(t *testing.T) {
	t.Parallel()
	for _, action := range []config.PowerAction{config.ActionReboot, config.ActionPowerOff, config.ActionNone} {
		m := new(testutil.MockPowerManager)
		c := &Controller{Manager: m, Action: action, DryRun: true, Log: testutil.TestLogger(t)}

		require.NoError(t, c.Execute(testutil.TestContext(t)))
		m.AssertNotCalled(t, "Sync")
		m.AssertNotCalled(t, "Reboot")
		m.AssertNotCalled(t, "PowerOff")
	}
}

func TestExecute_Failure(t *testing.T) {
	t.Parallel()
	m := new(testutil.MockPowerManager)
	m.On("Sync").Return()
	m.On("Reboot").Return(errors.New("operation not permitted"))

	c := &Controller{Manager: m, Action: config.ActionReboot, Log: testutil.TestLogger(t)}
	err := c.Execute(testutil.TestContext(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reboot failed")
}

func TestExecute_CancelledContext(t *testing.T) {
	t.Parallel()
	m := new(testutil.MockPowerManager)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Controller{Manager: m, Action: config.ActionPowerOff, Log: testutil.TestLogger(t)}
	assert.ErrorIs(t, c.Execute(ctx), context.Canceled)
	m.AssertNotCalled(t, "Sync")
}
