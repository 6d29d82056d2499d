package service

import (
	"context"
	"fmt"
	"syscall"

	"github.com/coreos/go-systemd/v22/dbus"
)

// UnitManager is the subset of systemd the controller needs.
type UnitManager interface {
	// StopUnit queues a stop job and waits for its result or ctx.
	StopUnit(ctx context.Context, unit string) (string, error)
	// KillUnit sends signal to every process of unit.
	KillUnit(ctx context.Context, unit string, signal syscall.Signal) error
	// ActiveState returns the unit's ActiveState property.
	ActiveState(ctx context.Context, unit string) (string, error)
	Close()
}

// Connect opens a connection to the system bus.
func Connect(ctx context.Context) (UnitManager, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	return &systemdManager{conn: conn}, nil
}

type systemdManager struct {
	conn *dbus.Conn
}

func (m *systemdManager) StopUnit(ctx context.Context, unit string) (string, error) {
	done := make(chan string, 1)
	if _, err := m.conn.StopUnitContext(ctx, unit, "replace", done); err != nil {
		return "", fmt.Errorf("failed to stop %s: %w", unit, err)
	}
	select {
	case result := <-done:
		return result, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *systemdManager) KillUnit(ctx context.Context, unit string, signal syscall.Signal) error {
	if err := m.conn.KillUnitWithTarget(ctx, unit, dbus.All, int32(signal)); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", signal, unit, err)
	}
	return nil
}

func (m *systemdManager) ActiveState(ctx context.Context, unit string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", fmt.Errorf("failed to read state of %s: %w", unit, err)
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected ActiveState value %s", prop.Value.String())
	}
	return state, nil
}

func (m *systemdManager) Close() {
	m.conn.Close()
}
