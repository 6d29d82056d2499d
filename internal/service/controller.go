package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/imamik/nodecycle/internal/config"
	"github.com/imamik/nodecycle/internal/logging"
	"github.com/imamik/nodecycle/internal/util/poll"
)

// Step names a rung of the shutdown ladder.
type Step string

// Ladder steps.
const (
	StepStop    Step = "stop"
	StepSIGTERM Step = "SIGTERM"
	StepSIGKILL Step = "SIGKILL"
)

// EscalationError reports a unit that was still active after SIGKILL.
type EscalationError struct {
	Unit  string
	State string
	Steps []Step
}

func (e *EscalationError) Error() string {
	return fmt.Sprintf("unit %s still %s after %v", e.Unit, e.State, e.Steps)
}

// Result describes how the unit went down.
type Result struct {
	Unit    string
	Steps   []Step
	Stopped bool
	Killall bool
}

// Escalated reports whether stop alone was not enough.
func (r *Result) Escalated() bool {
	return len(r.Steps) > 1
}

// Controller runs the shutdown ladder for one unit.
type Controller struct {
	Manager       UnitManager
	Unit          string
	StopWait      time.Duration
	Settle        time.Duration
	APITimeout    time.Duration
	KillallScript string
	DryRun        bool
	Log           zerolog.Logger

	runScript func(ctx context.Context, path string) ([]byte, error)
}

// New creates a controller for the session's role. manager may be nil in
// dry-run.
func New(manager UnitManager, cfg *config.Config, log zerolog.Logger) *Controller {
	return &Controller{
		Manager:       manager,
		Unit:          cfg.ServiceUnit(),
		StopWait:      cfg.Timings.ServiceStopWait,
		Settle:        cfg.Timings.EscalationSettle,
		APITimeout:    cfg.Timings.APICall,
		KillallScript: cfg.KillallScript,
		DryRun:        cfg.DryRun,
		Log:           log,
	}
}

// Shutdown stops the unit, escalating to signals when needed. A returned
// *EscalationError is a warning; the caller proceeds to the power action.
func (c *Controller) Shutdown(ctx context.Context) (*Result, error) {
	result := &Result{Unit: c.Unit}

	if c.DryRun {
		logging.DryRun(c.Log, "stop", "unit/"+c.Unit)
		if c.KillallScript != "" {
			logging.DryRun(c.Log, "run", c.KillallScript)
		}
		return result, nil
	}
	if c.Manager == nil {
		return nil, errors.New("no unit manager")
	}

	result.Steps = append(result.Steps, StepStop)
	stopCtx, cancel := context.WithTimeout(ctx, c.StopWait)
	jobResult, err := c.Manager.StopUnit(stopCtx, c.Unit)
	cancel()
	switch {
	case err == nil:
		c.Log.Info().Str("unit", c.Unit).Str("job", jobResult).Msg("Stop job finished")
	case errors.Is(err, context.DeadlineExceeded):
		c.Log.Info().Str("unit", c.Unit).Dur("waited", c.StopWait).Msg("Stop job still running")
	default:
		logging.Mutation(c.Log, "stop", "unit/"+c.Unit, err)
	}

	state := c.activeState(ctx)
	for _, step := range []struct {
		name   Step
		signal syscall.Signal
	}{
		{StepSIGTERM, syscall.SIGTERM},
		{StepSIGKILL, syscall.SIGKILL},
	} {
		if !isRunning(state) {
			break
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		result.Steps = append(result.Steps, step.name)
		logging.Event(c.Log, zerolog.WarnLevel, logging.EventEscalation).
			Str("unit", c.Unit).
			Str("state", state).
			Str("signal", string(step.name)).
			Msg("Unit did not stop, escalating")

		err := c.kill(ctx, step.signal)
		logging.Mutation(c.Log, "kill "+string(step.name), "unit/"+c.Unit, err)
		if err := poll.Sleep(ctx, c.Settle); err != nil {
			return result, err
		}
		state = c.activeState(ctx)
	}

	result.Stopped = !isRunning(state)
	result.Killall = c.killall(ctx)

	if !result.Stopped {
		return result, &EscalationError{Unit: c.Unit, State: state, Steps: result.Steps}
	}
	c.Log.Info().Str("unit", c.Unit).Str("state", state).Msg("Unit stopped")
	return result, nil
}

func (c *Controller) kill(ctx context.Context, signal syscall.Signal) error {
	callCtx, cancel := context.WithTimeout(ctx, c.apiTimeout())
	defer cancel()
	return c.Manager.KillUnit(callCtx, c.Unit, signal)
}

// activeState returns "unknown" when the state cannot be read, which keeps
// the ladder escalating.
func (c *Controller) activeState(ctx context.Context) string {
	callCtx, cancel := context.WithTimeout(ctx, c.apiTimeout())
	defer cancel()
	state, err := c.Manager.ActiveState(callCtx, c.Unit)
	if err != nil {
		c.Log.Debug().Err(err).Str("unit", c.Unit).Msg("Could not read unit state")
		return "unknown"
	}
	return state
}

func (c *Controller) apiTimeout() time.Duration {
	if c.APITimeout > 0 {
		return c.APITimeout
	}
	return 15 * time.Second
}

// killall runs the optional cleanup script when it exists.
func (c *Controller) killall(ctx context.Context) bool {
	if c.KillallScript == "" {
		return false
	}
	if _, err := os.Stat(c.KillallScript); errors.Is(err, fs.ErrNotExist) {
		c.Log.Debug().Str("script", c.KillallScript).Msg("Killall script not installed")
		return false
	}

	run := c.runScript
	if run == nil {
		run = runScript
	}
	scriptCtx, cancel := context.WithTimeout(ctx, c.StopWait+c.apiTimeout())
	defer cancel()
	out, err := run(scriptCtx, c.KillallScript)
	logging.Mutation(c.Log, "run", c.KillallScript, err)
	if err != nil && len(out) > 0 {
		c.Log.Warn().Str("output", string(out)).Msg("Killall script output")
	}
	return err == nil
}

func runScript(ctx context.Context, path string) ([]byte, error) {
	return exec.CommandContext(ctx, path).CombinedOutput()
}

func isRunning(state string) bool {
	switch state {
	case "inactive", "failed":
		return false
	default:
		return true
	}
}
