package drain

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	corev1 "k8s.io/api/core/v1"
	kubectldrain "k8s.io/kubectl/pkg/drain"

	"github.com/imamik/nodecycle/internal/config"
	"github.com/imamik/nodecycle/internal/k8s"
	"github.com/imamik/nodecycle/internal/state"
)

// Controller cordons, drains and uncordons a single node.
//
// Cordon and Release serialize on an internal guard, so a rollback running on
// a signal goroutine can never observe a cordoned node without its marker.
type Controller struct {
	Client  *k8s.Client
	Markers *state.MarkerStore

	Node      string
	Role      config.Role
	SessionID string

	GracePeriod  time.Duration
	ForceTimeout time.Duration
	Settle       time.Duration
	PollInterval time.Duration
	Excluded     []string
	DryRun       bool

	Log zerolog.Logger
	Now func() time.Time

	guard       sync.Mutex
	preCordoned bool
	owned       bool
}

// New creates a controller for the session's node.
func New(client *k8s.Client, markers *state.MarkerStore, cfg *config.Config, sessionID string, log zerolog.Logger) *Controller {
	return &Controller{
		Client:       client,
		Markers:      markers,
		Node:         cfg.Node,
		Role:         cfg.Role,
		SessionID:    sessionID,
		GracePeriod:  cfg.GracePeriod,
		ForceTimeout: cfg.ForceTimeout,
		Settle:       cfg.Timings.ForceSettle,
		PollInterval: cfg.Timings.DrainPoll,
		Excluded:     cfg.ExcludedNamespaces,
		DryRun:       cfg.DryRun,
		Log:          log,
		Now:          time.Now,
	}
}

// Bound is the longest a Drain call can take, excluding per-call API
// timeouts of the final enumeration.
func (c *Controller) Bound() time.Duration {
	return c.GracePeriod + c.ForceTimeout + c.Settle
}

// PreCordoned reports whether the node was already unschedulable, without a
// marker, when Cordon ran.
func (c *Controller) PreCordoned() bool {
	c.guard.Lock()
	defer c.guard.Unlock()
	return c.preCordoned
}

// Owned reports whether this controller holds the cordon it would release on
// rollback.
func (c *Controller) Owned() bool {
	c.guard.Lock()
	defer c.guard.Unlock()
	return c.owned
}

// helper returns a kubectl drain helper bound to ctx that deletes with grace
// seconds.
func (c *Controller) helper(ctx context.Context, grace time.Duration) *kubectldrain.Helper {
	return &kubectldrain.Helper{
		Ctx:                 ctx,
		Client:              c.Client.Clientset(),
		Force:               true,
		GracePeriodSeconds:  graceSeconds(grace),
		IgnoreAllDaemonSets: true,
		DeleteEmptyDirData:  true,
		DisableEviction:     true,
		Timeout:             c.ForceTimeout,
		AdditionalFilters:   []kubectldrain.PodFilter{c.nodeFilter, c.namespaceFilter},
		Out:                 logWriter{log: c.Log, level: zerolog.DebugLevel},
		ErrOut:              logWriter{log: c.Log, level: zerolog.WarnLevel},
	}
}

// nodeFilter drops pods bound to other nodes. Not every client honours the
// spec.nodeName field selector.
func (c *Controller) nodeFilter(pod corev1.Pod) kubectldrain.PodDeleteStatus {
	if pod.Spec.NodeName != c.Node {
		return kubectldrain.MakePodDeleteStatusSkip()
	}
	return kubectldrain.MakePodDeleteStatusOkay()
}

func (c *Controller) namespaceFilter(pod corev1.Pod) kubectldrain.PodDeleteStatus {
	for _, ns := range c.Excluded {
		if pod.Namespace == ns {
			return kubectldrain.MakePodDeleteStatusSkip()
		}
	}
	return kubectldrain.MakePodDeleteStatusOkay()
}

// graceSeconds rounds up so that sub-second grace periods never turn into a
// zero-grace delete.
func graceSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) marker() state.Marker {
	return state.Marker{
		Node:       c.Node,
		SessionID:  c.SessionID,
		Role:       string(c.Role),
		CordonedAt: c.now().UTC(),
		PID:        os.Getpid(),
	}
}

func podRef(pod corev1.Pod) string {
	return fmt.Sprintf("pod/%s/%s", pod.Namespace, pod.Name)
}

func nodeRef(name string) string {
	return "node/" + name
}

type logWriter struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (w logWriter) Write(p []byte) (int, error) {
	msg := string(p)
	for len(msg) > 0 && (msg[len(msg)-1] == '\n' || msg[len(msg)-1] == '\r') {
		msg = msg[:len(msg)-1]
	}
	if msg != "" {
		w.log.WithLevel(w.level).Str("source", "kubectl-drain").Msg(msg)
	}
	return len(p), nil
}
