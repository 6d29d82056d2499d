package drain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/imamik/nodecycle/internal/logging"
	"github.com/imamik/nodecycle/internal/util/async"
	"github.com/imamik/nodecycle/internal/util/poll"
)

// Plan is the set of evictable pods on the node.
type Plan struct {
	Node         string
	Pods         []corev1.Pod
	GracePeriod  time.Duration
	ForceTimeout time.Duration
	// Warnings are kubectl's notes about pods it deletes anyway, such as
	// unmanaged pods or pods with local storage.
	Warnings string
}

// Names returns namespace/name of every planned pod.
func (p *Plan) Names() []string {
	names := make([]string, 0, len(p.Pods))
	for _, pod := range p.Pods {
		names = append(names, pod.Namespace+"/"+pod.Name)
	}
	return names
}

// Result summarizes a drain.
type Result struct {
	Planned      int
	Forced       bool
	ForceDeleted int
	Residual     []string
	Duration     time.Duration
	// DeleteErrors aggregates failed delete calls. They are informational:
	// the pod set on the node is what decides the outcome.
	DeleteErrors error
}

// ResidualError reports pods still on the node after escalation. It is a
// warning; the session continues.
type ResidualError struct {
	Node string
	Pods []string
}

func (e *ResidualError) Error() string {
	return fmt.Sprintf("%d pod(s) still on node %s after forced deletion: %s",
		len(e.Pods), e.Node, strings.Join(e.Pods, ", "))
}

// Plan enumerates evictable pods on the node. DaemonSet pods, mirror pods
// and pods in excluded namespaces are left out.
func (c *Controller) Plan(ctx context.Context) (*Plan, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.Client.APITimeout())
	defer cancel()

	list, errs := c.helper(callCtx, c.GracePeriod).GetPodsForDeletion(c.Node)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to enumerate pods on %s: %w", c.Node, errors.Join(errs...))
	}

	plan := &Plan{Node: c.Node, GracePeriod: c.GracePeriod, ForceTimeout: c.ForceTimeout}
	if list != nil {
		plan.Pods = list.Pods()
		plan.Warnings = list.Warnings()
	}
	return plan, nil
}

// Drain deletes every planned pod with the grace period, waits for the node
// to empty, and escalates to zero-grace deletes when the grace period runs
// out. It returns a *ResidualError alongside the result when pods survive
// escalation. Dry-run only enumerates.
func (c *Controller) Drain(ctx context.Context) (*Result, error) {
	start := c.now()
	result := &Result{}

	plan, err := c.Plan(ctx)
	if err != nil {
		return nil, err
	}
	result.Planned = len(plan.Pods)
	if plan.Warnings != "" {
		c.Log.Warn().Str("node", c.Node).Msg(plan.Warnings)
	}
	c.Log.Info().Int("pods", result.Planned).Strs("targets", plan.Names()).Msg("Drain plan computed")

	if c.DryRun {
		for _, pod := range plan.Pods {
			logging.DryRun(c.Log, fmt.Sprintf("delete (grace %ds)", graceSeconds(c.GracePeriod)), podRef(pod))
		}
		result.Duration = c.now().Sub(start)
		return result, nil
	}

	if len(plan.Pods) == 0 {
		result.Duration = c.now().Sub(start)
		return result, nil
	}

	graceful := c.dispatchDeletes(ctx, plan.Pods, c.GracePeriod)

	err = poll.Until(ctx, c.PollInterval, c.GracePeriod, c.nodeEmpty)
	switch {
	case err == nil:
		result.DeleteErrors = graceful.Err()
		result.Duration = c.now().Sub(start)
		c.Log.Info().Dur("elapsed", result.Duration).Msg("Node drained within grace period")
		return result, nil
	case !errors.Is(err, poll.ErrDeadline):
		return nil, fmt.Errorf("drain interrupted: %w", err)
	}

	result.Forced = true
	remaining, err := c.Plan(ctx)
	if err != nil {
		return nil, fmt.Errorf("escalation: %w", err)
	}
	result.ForceDeleted = len(remaining.Pods)
	logging.Event(c.Log, zerolog.WarnLevel, logging.EventEscalation).
		Int("pods", result.ForceDeleted).
		Strs("targets", remaining.Names()).
		Msg("Grace period elapsed, forcing deletion")

	forced := c.dispatchDeletes(ctx, remaining.Pods, 0)
	waitCtx, cancel := context.WithTimeout(ctx, c.ForceTimeout)
	_ = forced.Wait(waitCtx)
	cancel()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("drain interrupted: %w", ctx.Err())
	}

	if err := poll.Until(ctx, c.PollInterval, c.Settle, c.nodeEmpty); err != nil && !errors.Is(err, poll.ErrDeadline) {
		return nil, fmt.Errorf("drain interrupted: %w", err)
	}

	result.DeleteErrors = errors.Join(graceful.Err(), forced.Err())
	result.Duration = c.now().Sub(start)

	final, err := c.Plan(ctx)
	if err != nil {
		logging.Warning(c.Log, fmt.Sprintf("could not verify node %s is empty: %v", c.Node, err))
		return result, nil
	}
	if len(final.Pods) > 0 {
		result.Residual = final.Names()
		return result, &ResidualError{Node: c.Node, Pods: result.Residual}
	}
	return result, nil
}

// dispatchDeletes starts one independent delete per pod. The deletes use a
// context detached from ctx's cancellation so a rollback does not abort them.
func (c *Controller) dispatchDeletes(ctx context.Context, pods []corev1.Pod, grace time.Duration) *async.Batch {
	base := context.WithoutCancel(ctx)
	timeout := c.Client.APITimeout()

	tasks := make([]async.Task, 0, len(pods))
	for _, pod := range pods {
		tasks = append(tasks, async.Task{
			Name: pod.Namespace + "/" + pod.Name,
			Func: func(_ context.Context) error {
				callCtx, cancel := context.WithTimeout(base, timeout)
				defer cancel()
				err := c.helper(callCtx, grace).DeletePod(pod)
				if apierrors.IsNotFound(err) {
					err = nil
				}
				logging.Mutation(c.Log, fmt.Sprintf("delete (grace %ds)", graceSeconds(grace)), podRef(pod), err)
				return err
			},
		})
	}
	return async.Dispatch(base, tasks)
}

// nodeEmpty is a poll condition. Enumeration errors are logged and retried
// on the next tick.
func (c *Controller) nodeEmpty(ctx context.Context) (bool, error) {
	plan, err := c.Plan(ctx)
	if err != nil {
		c.Log.Debug().Err(err).Msg("Pod enumeration failed, retrying")
		return false, nil
	}
	return len(plan.Pods) == 0, nil
}
