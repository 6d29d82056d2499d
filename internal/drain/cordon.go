package drain

import (
	"context"
	"errors"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	kubectldrain "k8s.io/kubectl/pkg/drain"

	"github.com/imamik/nodecycle/internal/logging"
	"github.com/imamik/nodecycle/internal/util/retry"
)

// CordonOutcome describes what Cordon found and did.
type CordonOutcome string

// Cordon outcomes.
const (
	// CordonApplied means the node was patched and the marker written.
	CordonApplied CordonOutcome = "applied"
	// CordonResumed means the node was already cordoned under a marker,
	// typically from a crashed earlier session.
	CordonResumed CordonOutcome = "resumed"
	// CordonPreExisting means someone else cordoned the node. No marker is
	// written and rollback leaves the node cordoned.
	CordonPreExisting CordonOutcome = "pre-existing"
	// CordonSkipped is the dry-run outcome.
	CordonSkipped CordonOutcome = "dry-run"
)

// Cordon marks the node unschedulable and writes the cordon marker before
// returning. On error the node is left as it was and no marker exists.
func (c *Controller) Cordon(ctx context.Context) (CordonOutcome, error) {
	c.guard.Lock()
	defer c.guard.Unlock()

	node, err := c.Client.GetNode(ctx, c.Node)
	if err != nil {
		return "", fmt.Errorf("cordon: %w", err)
	}

	if node.Spec.Unschedulable {
		ours, err := c.Markers.Exists(c.Node)
		if err != nil {
			return "", fmt.Errorf("cordon: %w", err)
		}
		if ours {
			c.Log.Info().Str("node", c.Node).Msg("Node already cordoned by a previous session, keeping its marker")
			// A dry run observes the marker but never adopts it.
			c.owned = !c.DryRun
			return CordonResumed, nil
		}
		c.preCordoned = true
		logging.Warning(c.Log, fmt.Sprintf("node %s was already cordoned by someone else; it will stay cordoned on rollback", c.Node))
		return CordonPreExisting, nil
	}

	if c.DryRun {
		logging.DryRun(c.Log, "cordon", nodeRef(c.Node))
		return CordonSkipped, nil
	}

	if err := c.setUnschedulable(ctx, true); err != nil {
		logging.Mutation(c.Log, "cordon", nodeRef(c.Node), err)
		return "", fmt.Errorf("cordon: %w", err)
	}
	logging.Mutation(c.Log, "cordon", nodeRef(c.Node), nil)

	if err := c.Markers.Write(c.marker()); err != nil {
		// Without a marker nobody would uncordon the node later.
		undoErr := c.setUnschedulable(ctx, false)
		logging.Mutation(c.Log, "uncordon", nodeRef(c.Node), undoErr)
		if undoErr != nil {
			return "", fmt.Errorf("cordon: marker write failed and node stays cordoned: %w", errors.Join(err, undoErr))
		}
		return "", fmt.Errorf("cordon: failed to record marker: %w", err)
	}
	c.Log.Info().Str("marker", c.Markers.Path(c.Node)).Msg("Cordon marker recorded")
	c.owned = true
	return CordonApplied, nil
}

// Release uncordons the node if and only if a cordon marker exists, then
// removes the marker. It is idempotent and safe to call from a signal handler
// while a drain is in flight. The returned bool reports whether the node was
// uncordoned.
func (c *Controller) Release(ctx context.Context) (bool, error) {
	c.guard.Lock()
	defer c.guard.Unlock()
	return c.releaseLocked(ctx)
}

// ReleaseOwned is the rollback path of a running session. Unlike Release it
// only acts when this controller applied or adopted the cordon, and never in
// dry-run, so a marker left by another session survives an interrupt.
func (c *Controller) ReleaseOwned(ctx context.Context) (bool, error) {
	c.guard.Lock()
	defer c.guard.Unlock()

	if c.DryRun || !c.owned {
		return false, nil
	}
	released, err := c.releaseLocked(ctx)
	if err == nil {
		c.owned = false
	}
	return released, err
}

func (c *Controller) releaseLocked(ctx context.Context) (bool, error) {
	ours, err := c.Markers.Exists(c.Node)
	if err != nil {
		return false, fmt.Errorf("release: %w", err)
	}
	if !ours {
		return false, nil
	}

	if err := c.setUnschedulable(ctx, false); err != nil {
		logging.Mutation(c.Log, "uncordon", nodeRef(c.Node), err)
		return false, fmt.Errorf("release: node stays cordoned with marker %s: %w", c.Markers.Path(c.Node), err)
	}
	logging.Mutation(c.Log, "uncordon", nodeRef(c.Node), nil)

	if err := c.Markers.Remove(c.Node); err != nil {
		return true, fmt.Errorf("release: node uncordoned but marker not removed: %w", err)
	}
	return true, nil
}

// setUnschedulable patches spec.unschedulable, re-reading the node on every
// attempt so conflicts resolve against the latest version.
func (c *Controller) setUnschedulable(ctx context.Context, desired bool) error {
	timeout := c.Client.APITimeout()
	return retry.API(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		node, err := c.Client.Clientset().CoreV1().Nodes().Get(callCtx, c.Node, metav1.GetOptions{})
		if err != nil {
			return err
		}
		return kubectldrain.RunCordonOrUncordon(c.helper(callCtx, c.GracePeriod), node, desired)
	}, c.Client.RetryOptions()...)
}
