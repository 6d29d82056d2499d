package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imamik/nodecycle/internal/confirm"
	"github.com/imamik/nodecycle/internal/health"
	"github.com/imamik/nodecycle/internal/preflight"
	"github.com/imamik/nodecycle/internal/state"
)

// Audit runs the read-only checks and prints the health report. It never
// mutates the cluster and never takes the node lock.
func Audit(ctx context.Context, opts Options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	logs, err := openSessionLog(cfg, "", opts.LogLevel, false)
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

	res, err := preflight.New(cfg, client, state.NewMarkerStore(cfg.StateDir), preflight.ModeReadOnly, logs.Logger).Run(ctx)
	if err != nil {
		return err
	}
	cfg.Role = res.Role

	report, err := health.New(client, cfg, logs.Logger).Audit(ctx)
	if err != nil {
		return err
	}
	report.Notes = append(report.Notes, res.Findings...)

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err = fmt.Fprint(stdout, confirm.Render(report, cfg))
	return err
}
