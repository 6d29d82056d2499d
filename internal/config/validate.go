package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks numeric ranges and enumerations. It does not contact the
// cluster; node existence is checked during preflight.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Node) == "" {
		errs = append(errs, errors.New("node is required"))
	}
	if c.Role != "" && !c.Role.Valid() {
		errs = append(errs, fmt.Errorf("unknown role %q", c.Role))
	}
	if c.GracePeriod < MinGracePeriod {
		errs = append(errs, fmt.Errorf("grace period %s is below the minimum of %s", c.GracePeriod, MinGracePeriod))
	}
	if c.ForceTimeout < MinForceTimeout {
		errs = append(errs, fmt.Errorf("force timeout %s is below the minimum of %s", c.ForceTimeout, MinForceTimeout))
	}
	if c.ForceTimeout <= c.GracePeriod {
		errs = append(errs, fmt.Errorf("force timeout %s must be greater than grace period %s", c.ForceTimeout, c.GracePeriod))
	}
	if c.StorageWait <= 0 {
		errs = append(errs, fmt.Errorf("storage wait must be positive, got %s", c.StorageWait))
	}
	switch c.Action {
	case ActionPowerOff, ActionReboot, ActionNone:
	default:
		errs = append(errs, fmt.Errorf("unknown power action %q (expected poweroff, reboot or none)", c.Action))
	}
	if c.Units.ControlPlane == "" || c.Units.Worker == "" {
		errs = append(errs, errors.New("service units must be set for both roles"))
	}

	return errors.Join(errs...)
}
