package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/nodecycle/internal/session"
	"github.com/imamik/nodecycle/internal/state"
)

// Restore returns a node to service after maintenance.
func Restore(ctx context.Context, opts Options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	logs, err := openSessionLog(cfg, "", opts.LogLevel, true)
	if err != nil {
		return err
	}
	defer func() {
		_ = logs.Close()
	}()

	client, err := newClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	r := &session.Restorer{
		Client:  client,
		Markers: state.NewMarkerStore(cfg.StateDir),
		Config:  cfg,
		Log:     logs.Logger,
	}
	res, err := r.Restore(ctx)
	if res != nil {
		fmt.Fprintf(stdout, "%s: %s\n", cfg.Node, res.Outcome)
	}
	return err
}
