package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/imamik/nodecycle/internal/config"
	"github.com/imamik/nodecycle/internal/drain"
	"github.com/imamik/nodecycle/internal/k8s"
	"github.com/imamik/nodecycle/internal/logging"
	"github.com/imamik/nodecycle/internal/state"
)

// Restore outcomes.
const (
	OutcomeRestored      = "restored"
	OutcomeNothingToDo   = "nothing-to-restore"
	OutcomeRestoreFailed = "restore-failed"
)

// RestoreResult describes a restore.
type RestoreResult struct {
	Outcome    string
	Marker     *state.Marker
	Uncordoned bool
}

// Restorer returns a node to service after maintenance.
type Restorer struct {
	Client  *k8s.Client
	Markers *state.MarkerStore
	Config  *config.Config
	Log     zerolog.Logger
}

// Restore waits for the node to report Ready, then uncordons it if this tool
// cordoned it. Without a marker the node is left untouched.
func (r *Restorer) Restore(ctx context.Context) (*RestoreResult, error) {
	cfg := r.Config
	log := logging.WithComponent(r.Log, "restore")

	marker, found, err := r.Markers.Read(cfg.Node)
	if err != nil && !found {
		return nil, fmt.Errorf("failed to read cordon marker: %w", err)
	}
	if !found {
		log.Info().Str("node", cfg.Node).Msg("No cordon marker, nothing to restore")
		return &RestoreResult{Outcome: OutcomeNothingToDo}, nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("Cordon marker is unreadable; restoring anyway")
		marker = &state.Marker{Node: cfg.Node}
	}
	result := &RestoreResult{Marker: marker}

	if cfg.DryRun {
		logging.DryRun(log, fmt.Sprintf("wait up to %s for Ready, then uncordon", cfg.Timings.NodeReadyWait), "node/"+cfg.Node)
		result.Outcome = OutcomeDryRun
		return result, nil
	}

	journal, err := state.OpenJournal(cfg.StateDir, cfg.Node, cfg.Timings.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := journal.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close journal")
		}
	}()

	id := NewID()
	started := time.Now().UTC()
	if err := journal.Begin(state.Record{ID: id, Node: cfg.Node, Role: marker.Role, Started: started, Phase: "restore"}); err != nil {
		log.Warn().Err(err).Msg("Failed to journal restore")
	}

	finish := func(outcome string) {
		result.Outcome = outcome
		if err := journal.Finish(id, "restore", outcome, time.Now().UTC()); err != nil {
			log.Warn().Err(err).Msg("Failed to journal restore outcome")
		}
	}

	log.Info().Str("node", cfg.Node).Str("cordoned_by", marker.SessionID).Msg("Waiting for node to become Ready")
	if err := r.Client.WaitForNodeReady(ctx, cfg.Node, cfg.Timings.NodeReadyPoll, cfg.Timings.NodeReadyWait); err != nil {
		finish(OutcomeRestoreFailed)
		return result, fmt.Errorf("node %s did not become Ready: %w", cfg.Node, err)
	}

	controller := drain.New(r.Client, r.Markers, cfg, marker.SessionID, log)
	uncordoned, err := controller.Release(ctx)
	result.Uncordoned = uncordoned
	if err != nil {
		finish(OutcomeRestoreFailed)
		return result, err
	}
	finish(OutcomeRestored)
	log.Info().Str("node", cfg.Node).Bool("uncordoned", uncordoned).Msg("Node restored")
	return result, nil
}
