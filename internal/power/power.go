package power

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/imamik/nodecycle/internal/config"
	"github.com/imamik/nodecycle/internal/logging"
)

// Manager is the host power interface.
type Manager interface {
	Sync()
	Reboot() error
	PowerOff() error
}

// Controller runs the configured power action.
type Controller struct {
	Manager Manager
	Action  config.PowerAction
	DryRun  bool
	Log     zerolog.Logger
}

// New creates a controller using the host manager.
func New(cfg *config.Config, log zerolog.Logger) *Controller {
	return &Controller{
		Manager: Host(log),
		Action:  cfg.Action,
		DryRun:  cfg.DryRun,
		Log:     log,
	}
}

// Execute flushes filesystem buffers and performs the action. It must only
// run after the node agent has been stopped. In dry-run nothing is touched.
func (c *Controller) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.DryRun {
		logging.DryRun(c.Log, "sync filesystems", "host")
		if c.Action != config.ActionNone {
			logging.DryRun(c.Log, string(c.Action), "host")
		}
		return nil
	}

	c.Manager.Sync()
	c.Log.Info().Msg("Filesystem buffers flushed")

	var err error
	switch c.Action {
	case config.ActionNone:
		c.Log.Info().Msg("Power action is none, leaving the machine running")
		return nil
	case config.ActionReboot:
		err = c.Manager.Reboot()
	case config.ActionPowerOff:
		err = c.Manager.PowerOff()
	default:
		return fmt.Errorf("unknown power action %q", c.Action)
	}
	logging.Mutation(c.Log, string(c.Action), "host", err)
	if err != nil {
		return fmt.Errorf("%s failed: %w", c.Action, err)
	}
	return nil
}
