package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"

	"github.com/imamik/nodecycle/internal/config"
	"github.com/imamik/nodecycle/internal/gitops"
	"github.com/imamik/nodecycle/internal/k8s"
	"github.com/imamik/nodecycle/internal/logging"
	"github.com/imamik/nodecycle/internal/volumes"
)

const (
	maxListedPods = 10
	eventWindow   = time.Hour
)

// VolumeSource reads storage state.
type VolumeSource interface {
	List(ctx context.Context) ([]volumes.Volume, error)
	Settings(ctx context.Context, names ...string) (map[string]string, error)
}

// AppSource reads reconciler state.
type AppSource interface {
	Summarize(ctx context.Context) (*gitops.Summary, error)
}

// Auditor produces health reports.
type Auditor struct {
	Client  *k8s.Client
	Volumes VolumeSource
	Apps    AppSource
	Config  *config.Config
	Log     zerolog.Logger
	Now     func() time.Time
}

// New creates an Auditor that reads Longhorn and Argo CD through the
// client's dynamic interface.
func New(client *k8s.Client, cfg *config.Config, log zerolog.Logger) *Auditor {
	return &Auditor{
		Client:  client,
		Volumes: volumes.NewReader(client.Dynamic(), cfg.StorageNamespace, client.APITimeout()),
		Apps:    gitops.NewReader(client.Dynamic(), cfg.ReconcilerNamespace, client.APITimeout()),
		Config:  cfg,
		Log:     logging.WithComponent(log, "health"),
		Now:     time.Now,
	}
}

// audit collects partial results; each goroutine owns distinct fields.
type audit struct {
	report *Report

	liveErr, readyErr error
	nodeErr, podsErr  error
	appsErr           error
	storageErr        error
	eventsErr         error

	appsNote    string
	storageNote string

	volumes  []volumes.Volume
	nodes    []corev1.Node
	settings map[string]string
}

// Audit runs every read-only check and returns the report. It only returns
// an error if ctx is cancelled.
func (a *Auditor) Audit(ctx context.Context) (*Report, error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	st := &audit{report: &Report{
		Node:        a.Config.Node,
		Role:        a.Config.Role,
		GeneratedAt: now().UTC(),
	}}

	probes, pctx := errgroup.WithContext(ctx)
	probes.Go(func() error { st.liveErr = a.Client.Probe(pctx, k8s.EndpointLivez); return nil })
	probes.Go(func() error { st.readyErr = a.Client.Probe(pctx, k8s.EndpointReadyz); return nil })
	_ = probes.Wait()

	r := st.report
	r.Live = st.liveErr == nil
	r.Ready = st.readyErr == nil
	r.Reachable = r.Live || r.Ready
	if !r.Reachable {
		r.Warnings = append(r.Warnings, Warning{WarnClusterUnreachable, fmt.Sprintf("API server unreachable: %v", st.liveErr)})
		return r, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { a.checkNode(gctx, st); return nil })
	g.Go(func() error { a.checkPods(gctx, st); return nil })
	g.Go(func() error { a.checkApps(gctx, st); return nil })
	g.Go(func() error { a.checkStorage(gctx, st); return nil })
	g.Go(func() error { a.checkEvents(gctx, st, now()); return nil })
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.collectWarnings(st)
	a.Log.Info().
		Bool("node_ready", r.NodeReady).
		Int("unhealthy_pods", r.UnhealthyPods).
		Int("volume_issues", len(r.VolumeIssues)).
		Int("placement_violations", len(r.PlacementViolations)).
		Int("warnings", len(r.Warnings)).
		Msg("health audit complete")
	for k, v := range r.StorageSettings {
		a.Log.Debug().Str("setting", k).Str("value", v).Msg("storage setting")
	}
	return r, nil
}

func (a *Auditor) checkNode(ctx context.Context, st *audit) {
	node, err := a.Client.GetNode(ctx, a.Config.Node)
	if err != nil {
		st.nodeErr = err
		return
	}
	st.report.NodeReady = k8s.IsNodeReady(node)
	st.report.NodeUnschedulable = node.Spec.Unschedulable
}

func (a *Auditor) checkPods(ctx context.Context, st *audit) {
	pods, err := a.Client.ListPods(ctx)
	if err != nil {
		st.podsErr = err
		return
	}
	for i := range pods {
		if k8s.IsPodHealthy(&pods[i]) {
			continue
		}
		st.report.UnhealthyPods++
		if len(st.report.UnhealthyPodNames) < maxListedPods {
			st.report.UnhealthyPodNames = append(st.report.UnhealthyPodNames,
				fmt.Sprintf("%s/%s (%s)", pods[i].Namespace, pods[i].Name, pods[i].Status.Phase))
		}
	}
}

func (a *Auditor) checkApps(ctx context.Context, st *audit) {
	present, err := a.Client.NamespaceExists(ctx, a.Config.ReconcilerNamespace)
	if err != nil {
		st.appsErr = err
		return
	}
	if !present {
		st.appsNote = fmt.Sprintf("reconciler namespace %s not found; sync check skipped", a.Config.ReconcilerNamespace)
		return
	}
	summary, err := a.Apps.Summarize(ctx)
	if err != nil {
		st.appsErr = err
		return
	}
	count := len(summary.OutOfSync)
	st.report.OutOfSyncApps = &count
	for _, app := range summary.OutOfSync {
		st.report.OutOfSyncNames = append(st.report.OutOfSyncNames, fmt.Sprintf("%s (%s/%s)", app.Name, app.Sync, app.Health))
	}
}

func (a *Auditor) checkStorage(ctx context.Context, st *audit) {
	present, err := a.Client.NamespaceExists(ctx, a.Config.StorageNamespace)
	if err != nil {
		st.report.StorageUnknown = true
		st.storageErr = err
		return
	}
	if !present {
		st.storageNote = fmt.Sprintf("storage namespace %s not found; volume checks skipped", a.Config.StorageNamespace)
		return
	}
	st.report.StoragePresent = true

	if st.volumes, err = a.Volumes.List(ctx); err != nil {
		st.storageErr = err
		return
	}
	if st.nodes, err = a.Client.ListNodes(ctx); err != nil {
		st.storageErr = err
		return
	}
	settings, err := a.Volumes.Settings(ctx, volumes.LoggedSettings...)
	if err != nil {
		a.Log.Debug().Err(err).Msg("storage settings unavailable")
	}
	st.settings = settings
}

func (a *Auditor) checkEvents(ctx context.Context, st *audit, now time.Time) {
	events, err := a.Client.NodeWarnings(ctx, a.Config.Node, now.Add(-eventWindow))
	if err != nil {
		st.eventsErr = err
		return
	}
	for _, ev := range events {
		st.report.NodeEvents = append(st.report.NodeEvents, NodeEvent{
			Reason:  ev.Reason,
			Message: ev.Message,
			Count:   ev.Count,
			Last:    ev.LastTimestamp.Time,
		})
	}
}

// collectWarnings turns partial results into warnings in a fixed order.
func (a *Auditor) collectWarnings(st *audit) {
	r := st.report
	warn := func(kind WarningKind, format string, args ...any) {
		r.Warnings = append(r.Warnings, Warning{Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	for _, note := range []string{st.appsNote, st.storageNote} {
		if note != "" {
			r.Notes = append(r.Notes, note)
		}
	}

	if st.liveErr != nil {
		warn(WarnProbe, "liveness probe failed: %v", st.liveErr)
	}
	if st.readyErr != nil {
		warn(WarnProbe, "readiness probe failed: %v", st.readyErr)
	}

	switch {
	case st.nodeErr != nil:
		warn(WarnAuditIncomplete, "node lookup failed: %v", st.nodeErr)
	case !r.NodeReady:
		warn(WarnNodeNotReady, "node %s is not Ready", r.Node)
	}
	if r.NodeUnschedulable {
		warn(WarnNodeCordoned, "node %s is already unschedulable", r.Node)
	}

	if st.podsErr != nil {
		warn(WarnAuditIncomplete, "pod listing failed: %v", st.podsErr)
	} else if r.UnhealthyPods > 0 {
		warn(WarnUnhealthyPods, "%d pod(s) not Running or Succeeded", r.UnhealthyPods)
	}

	if st.appsErr != nil {
		warn(WarnAuditIncomplete, "application sync check failed: %v", st.appsErr)
	} else if r.OutOfSyncApps != nil && *r.OutOfSyncApps > 0 {
		warn(WarnOutOfSync, "%d application(s) out of sync: %s", *r.OutOfSyncApps, strings.Join(r.OutOfSyncNames, ", "))
	}

	if st.storageErr != nil {
		warn(WarnAuditIncomplete, "storage check failed: %v", st.storageErr)
	} else if r.StoragePresent {
		a.checkVolumes(st, warn)
	}
	if st.eventsErr != nil {
		a.Log.Debug().Err(st.eventsErr).Msg("node events unavailable")
	}
}

func (a *Auditor) checkVolumes(st *audit, warn func(WarningKind, string, ...any)) {
	r := st.report
	r.StorageSettings = st.settings

	for _, v := range st.volumes {
		if !v.Expected() {
			r.VolumeIssues = append(r.VolumeIssues, VolumeIssue{Name: v.Name, State: v.State, Robustness: v.Robustness, Node: v.Node})
		}
	}
	if len(r.VolumeIssues) > 0 {
		var parts []string
		for _, issue := range r.VolumeIssues {
			parts = append(parts, fmt.Sprintf("%s (%s/%s)", issue.Name, issue.State, issue.Robustness))
		}
		warn(WarnVolumeState, "%d volume(s) not in an expected state: %s", len(r.VolumeIssues), strings.Join(parts, ", "))
	}

	surviving := SurvivingNodes(st.nodes, a.Config.Node, a.Config.Role)
	for name := range surviving {
		r.SurvivingNodes = append(r.SurvivingNodes, name)
	}
	sort.Strings(r.SurvivingNodes)

	for _, v := range st.volumes {
		if !v.HealthyReplicaOn(surviving) {
			r.PlacementViolations = append(r.PlacementViolations, v.Name)
		}
	}
	if len(r.PlacementViolations) == 0 {
		return
	}
	msg := fmt.Sprintf("%d volume(s) have no healthy replica on a surviving node (%s): %s",
		len(r.PlacementViolations), strings.Join(r.SurvivingNodes, ", "), strings.Join(r.PlacementViolations, ", "))
	if a.Config.AllowSingleReplica {
		r.Notes = append(r.Notes, msg+" (allowed by --allow-single-replica)")
		return
	}
	warn(WarnReplicaPlacement, "%s", msg)
}

// SurvivingNodes returns the Ready nodes of the opposite role, or every
// other Ready node when no node has the opposite role.
func SurvivingNodes(nodes []corev1.Node, target string, role config.Role) map[string]bool {
	opposite := map[string]bool{}
	others := map[string]bool{}
	for i := range nodes {
		n := &nodes[i]
		if n.Name == target || !k8s.IsNodeReady(n) {
			continue
		}
		others[n.Name] = true
		if k8s.RoleOf(n) == role.Opposite() {
			opposite[n.Name] = true
		}
	}
	if len(opposite) > 0 {
		return opposite
	}
	return others
}
