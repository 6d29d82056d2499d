package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/nodecycle/internal/session"
	"github.com/imamik/nodecycle/internal/state"
)

// newOrchestrator is replaced in tests.
var newOrchestrator = func(s *session.Session, deps session.Dependencies) runner {
	return session.NewOrchestrator(s, deps)
}

type runner interface {
	Run(ctx context.Context) error
}

// Maintain runs the full maintenance sequence for one node.
func Maintain(ctx context.Context, opts Options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	id := session.NewID()
	logs, err := openSessionLog(cfg, id, opts.LogLevel, true)
	if err != nil {
		return err
	}
	defer func() {
		_ = logs.Close()
	}()
	if logs.Path != "" {
		logs.Info().Str("path", logs.Path).Msg("Logging to file")
	}

	client, err := newClient(cfg)
	if err != nil {
		logs.Error().Err(err).Msg("Cannot build cluster client")
		return fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	s := session.New(id, cfg, logs.Logger)
	o := newOrchestrator(s, session.Dependencies{
		Client:   client,
		Markers:  state.NewMarkerStore(cfg.StateDir),
		Prompter: newPrompter(),
		Out:      stderr,
	})

	err = o.Run(ctx)
	logs.Info().
		Str("phase", s.Phase().String()).
		Int("exit_code", session.ExitCode(err)).
		Msg("Exiting")
	return err
}
