package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/imamik/nodecycle/internal/confirm"
	"github.com/imamik/nodecycle/internal/session"
)

// Execute runs the CLI and returns the process exit code. Termination
// signals are handled by the session itself, so ctx is not tied to them.
func Execute(ctx context.Context, args []string, errOut io.Writer) int {
	cmd := Root()
	cmd.SetArgs(args)
	cmd.SetErr(errOut)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return session.ExitOK
	}
	switch {
	case errors.Is(err, confirm.ErrDeclined):
		fmt.Fprintln(errOut, "Aborted:", err)
	case errors.Is(err, session.ErrInterrupted):
		fmt.Fprintln(errOut, "Interrupted: node rolled back")
	default:
		fmt.Fprintln(errOut, "Error:", err)
	}
	return session.ExitCode(err)
}
