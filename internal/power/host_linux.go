//go:build linux

package power

import (
	"github.com/coreos/go-systemd/v22/login1"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

type host struct {
	log zerolog.Logger
}

// Host returns the manager for the running machine.
func Host(log zerolog.Logger) Manager {
	return host{log: log}
}

func (host) Sync() {
	unix.Sync()
}

func (h host) Reboot() error {
	return h.run((*login1.Conn).Reboot, unix.LINUX_REBOOT_CMD_RESTART)
}

func (h host) PowerOff() error {
	return h.run((*login1.Conn).PowerOff, unix.LINUX_REBOOT_CMD_POWER_OFF)
}

// run asks logind first. The logind call does not report failures, so the
// syscall is only used when the bus cannot be reached at all.
func (h host) run(call func(*login1.Conn, bool), cmd int) error {
	conn, err := login1.New()
	if err == nil {
		defer conn.Close()
		call(conn, false)
		return nil
	}
	h.log.Warn().Err(err).Msg("logind unavailable, falling back to reboot(2)")
	return unix.Reboot(cmd)
}
