package session

import (
	"context"
	"errors"

	"github.com/imamik/nodecycle/internal/confirm"
)

// ErrInterrupted is returned when a termination signal ended the session.
var ErrInterrupted = errors.New("session interrupted")

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitDeclined    = 2
	ExitInterrupted = 130
)

// Outcomes recorded in the journal and metrics.
const (
	OutcomeCompleted   = "completed"
	OutcomeDryRun      = "dry-run"
	OutcomeDeclined    = "declined"
	OutcomeFailed      = "failed"
	OutcomeRolledBack  = "rolled-back"
	OutcomeInterrupted = "interrupted"
)

// ExitCode maps a session error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, confirm.ErrDeclined):
		return ExitDeclined
	default:
		return ExitFailure
	}
}
