//go:build !linux

package power

import (
	"errors"

	"github.com/rs/zerolog"
)

var errUnsupported = errors.New("power actions are only supported on linux")

type host struct{}

// Host returns a manager that refuses every action.
func Host(zerolog.Logger) Manager {
	return host{}
}

func (host) Sync() {}

func (host) Reboot() error { return errUnsupported }

func (host) PowerOff() error { return errUnsupported }
