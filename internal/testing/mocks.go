package testing

import (
	"context"
	"syscall"

	"github.com/stretchr/testify/mock"
)

// MockUnitManager is a mock of the systemd unit manager used by the service
// shutdown controller.
type MockUnitManager struct {
	mock.Mock
}

// StopUnit requests a graceful stop.
func (m *MockUnitManager) StopUnit(ctx context.Context, unit string) (string, error) {
	args := m.Called(ctx, unit)
	return args.String(0), args.Error(1)
}

// KillUnit delivers signal to every process of the unit.
func (m *MockUnitManager) KillUnit(ctx context.Context, unit string, signal syscall.Signal) error {
	args := m.Called(ctx, unit, signal)
	return args.Error(0)
}

// ActiveState returns the unit's ActiveState property.
func (m *MockUnitManager) ActiveState(ctx context.Context, unit string) (string, error) {
	args := m.Called(ctx, unit)
	return args.String(0), args.Error(1)
}

// Close releases the connection.
func (m *MockUnitManager) Close() {
	m.Called()
}

// MockPowerManager is a mock of the host power interface.
type MockPowerManager struct {
	mock.Mock
}

// Sync flushes filesystem buffers.
func (m *MockPowerManager) Sync() {
	m.Called()
}

// Reboot restarts the machine.
func (m *MockPowerManager) Reboot() error {
	args := m.Called()
	return args.Error(0)
}

// PowerOff halts the machine.
func (m *MockPowerManager) PowerOff() error {
	args := m.Called()
	return args.Error(0)
}

// MockPrompter is a mock of the confirmation prompt.
type MockPrompter struct {
	mock.Mock
}

// Ask shows prompt and returns the operator's answer.
func (m *MockPrompter) Ask(ctx context.Context, title, description string) (string, error) {
	args := m.Called(ctx, title, description)
	return args.String(0), args.Error(1)
}
