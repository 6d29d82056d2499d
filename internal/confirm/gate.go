package confirm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/imamik/nodecycle/internal/config"
	"github.com/imamik/nodecycle/internal/health"
	"github.com/imamik/nodecycle/internal/logging"
)

// ErrDeclined is returned when the operator did not give the exact token.
var ErrDeclined = errors.New("operator declined")

// Accepted tokens.
const (
	TokenConfirm  = "yes"
	TokenOverride = "proceed"
)

// Prompter asks the operator a question and returns the raw answer.
type Prompter interface {
	Ask(ctx context.Context, title, description string) (string, error)
}

// Gate is the confirmation checkpoint.
type Gate struct {
	Prompter Prompter
	Out      io.Writer
	DryRun   bool
	Log      zerolog.Logger
}

// Confirm shows the report and configuration and requires TokenConfirm.
func (g *Gate) Confirm(ctx context.Context, report *health.Report, cfg *config.Config) error {
	fmt.Fprintln(g.Out, Render(report, cfg))

	if g.DryRun {
		logging.DryRun(g.Log, "prompt for confirmation", "operator")
		return nil
	}

	title := fmt.Sprintf("Take node %s out of service and %s it?", cfg.Node, actionVerb(cfg.Action))
	desc := fmt.Sprintf("Type %q to continue. Anything else aborts without changes.", TokenConfirm)
	if report != nil && report.HasWarnings() {
		desc = fmt.Sprintf("%d warning(s) above. %s", len(report.Warnings), desc)
	}
	return g.ask(ctx, title, desc, TokenConfirm)
}

// ConfirmOverride asks whether to continue past a safety gate. Dry-run
// sessions never override.
func (g *Gate) ConfirmOverride(ctx context.Context, title, detail string) error {
	fmt.Fprintln(g.Out, warningStyle.Render(detail))

	if g.DryRun {
		g.Log.Info().Msg("[DRY RUN] override prompt skipped; a real session would stop here unless the operator types " + TokenOverride)
		return ErrDeclined
	}
	desc := fmt.Sprintf("Type %q to continue anyway. Anything else aborts.", TokenOverride)
	return g.ask(ctx, title, desc, TokenOverride)
}

func (g *Gate) ask(ctx context.Context, title, desc, token string) error {
	answer, err := g.Prompter.Ask(ctx, title, desc)
	if err != nil {
		g.Log.Warn().Err(err).Msg("no answer from operator")
		return fmt.Errorf("%w: %v", ErrDeclined, err)
	}
	if strings.TrimSpace(answer) != token {
		g.Log.Warn().Str("answer", answer).Msg("confirmation not given")
		return ErrDeclined
	}
	g.Log.Info().Str("token", token).Msg("operator confirmed")
	return nil
}

func actionVerb(a config.PowerAction) string {
	switch a {
	case config.ActionReboot:
		return "reboot"
	case config.ActionNone:
		return "stop the node agent on"
	default:
		return "power off"
	}
}
