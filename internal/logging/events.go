package logging

import (
	"time"

	"github.com/rs/zerolog"
)

// EventType classifies a structured log line.
type EventType string

const (
	// EventPhaseStarted indicates a session phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a session phase completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a session phase failed.
	EventPhaseFailed EventType = "phase.failed"
	// EventPhaseSkipped indicates a phase did not apply.
	EventPhaseSkipped EventType = "phase.skipped"

	// EventMutation records the outcome of a call that changes cluster or host state.
	EventMutation EventType = "resource.mutation"
	// EventDryRun records a mutation that was suppressed.
	EventDryRun EventType = "resource.dryrun"

	// EventValidationWarning indicates a non-fatal finding.
	EventValidationWarning EventType = "validation.warning"
	// EventValidationError indicates a fatal validation finding.
	EventValidationError EventType = "validation.error"

	// EventEscalation indicates a graceful operation was escalated.
	EventEscalation EventType = "escalation"
	// EventInterrupted indicates a termination signal was received.
	EventInterrupted EventType = "session.interrupted"
	// EventRollback records the outcome of a rollback.
	EventRollback EventType = "session.rollback"
	// EventProgress indicates progress in a long-running wait.
	EventProgress EventType = "progress"
)

const eventField = "event"

// Event starts a log event of the given type at level.
func Event(l zerolog.Logger, level zerolog.Level, t EventType) *zerolog.Event {
	return l.WithLevel(level).Str(eventField, string(t))
}

// PhaseStarted logs a phase start event.
func PhaseStarted(l zerolog.Logger, phase string) {
	Event(l, zerolog.InfoLevel, EventPhaseStarted).Str("phase", phase).Msg("starting")
}

// PhaseCompleted logs a phase completion event.
func PhaseCompleted(l zerolog.Logger, phase string, d time.Duration) {
	Event(l, zerolog.InfoLevel, EventPhaseCompleted).
		Str("phase", phase).
		Dur("duration", d.Round(time.Millisecond)).
		Msg("completed")
}

// PhaseFailed logs a phase failure event.
func PhaseFailed(l zerolog.Logger, phase string, err error) {
	Event(l, zerolog.ErrorLevel, EventPhaseFailed).Str("phase", phase).Err(err).Msg("failed")
}

// PhaseSkipped logs that a phase was not applicable.
func PhaseSkipped(l zerolog.Logger, phase, reason string) {
	Event(l, zerolog.InfoLevel, EventPhaseSkipped).Str("phase", phase).Str("reason", reason).Msg("skipped")
}

// Mutation logs the outcome of a mutating call. Failures are logged at
// warn level; callers decide whether they are fatal.
func Mutation(l zerolog.Logger, action, resource string, err error) {
	if err != nil {
		Event(l, zerolog.WarnLevel, EventMutation).
			Str("action", action).Str("resource", resource).Err(err).Msg(action + " failed")
		return
	}
	Event(l, zerolog.InfoLevel, EventMutation).
		Str("action", action).Str("resource", resource).Msg(action + " succeeded")
}

// DryRun logs a mutation that would have happened.
func DryRun(l zerolog.Logger, action, resource string) {
	Event(l, zerolog.InfoLevel, EventDryRun).
		Str("action", action).Str("resource", resource).Msg("[DRY RUN] would " + action)
}

// Warning logs a non-fatal finding.
func Warning(l zerolog.Logger, msg string) {
	Event(l, zerolog.WarnLevel, EventValidationWarning).Msg(msg)
}
