package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	corev1 "k8s.io/api/core/v1"

	"github.com/imamik/nodecycle/internal/config"
	"github.com/imamik/nodecycle/internal/k8s"
	"github.com/imamik/nodecycle/internal/logging"
	"github.com/imamik/nodecycle/internal/state"
	"github.com/imamik/nodecycle/internal/util/prerequisites"
)

// Check names.
const (
	CheckOptions   = "options"
	CheckPrivilege = "privilege"
	CheckTools     = "tools"
	CheckAPI       = "api"
	CheckNode      = "node"
	CheckLock      = "lock"
	CheckMarker    = "marker"
)

// Failure is a fatal preflight violation.
type Failure struct {
	Check string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("preflight check %q failed: %v", f.Check, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(check string, err error) *Failure {
	return &Failure{Check: check, Err: err}
}

// Mode selects which checks apply.
type Mode int

const (
	// ModeMaintain runs every check and takes the node lock unless dry-run.
	ModeMaintain Mode = iota
	// ModeReadOnly skips privilege, tools and lock checks.
	ModeReadOnly
)

// Result carries everything preflight resolved.
type Result struct {
	Node     *corev1.Node
	Role     config.Role
	Journal  *state.Journal
	Stale    *state.Marker
	Findings []string
}

// Validator runs the preflight checks.
type Validator struct {
	Config  *config.Config
	Client  *k8s.Client
	Markers *state.MarkerStore
	Mode    Mode
	Log     zerolog.Logger

	// Geteuid and CheckTools are replaced in tests.
	Geteuid    func() int
	CheckTools func() *prerequisites.CheckResults
}

// New creates a Validator with the host implementations.
func New(cfg *config.Config, client *k8s.Client, markers *state.MarkerStore, mode Mode, log zerolog.Logger) *Validator {
	return &Validator{
		Config:     cfg,
		Client:     client,
		Markers:    markers,
		Mode:       mode,
		Log:        logging.WithComponent(log, "preflight"),
		Geteuid:    os.Geteuid,
		CheckTools: prerequisites.CheckAll,
	}
}

// Run executes the checks in order and stops at the first failure. On
// success in ModeMaintain the caller owns Result.Journal and must close it.
func (v *Validator) Run(ctx context.Context) (*Result, error) {
	cfg := v.Config
	res := &Result{}

	if err := cfg.Validate(); err != nil {
		return nil, fail(CheckOptions, err)
	}

	mutating := v.Mode == ModeMaintain && !cfg.DryRun
	if v.Mode == ModeMaintain {
		if err := v.checkPrivilege(mutating); err != nil {
			return nil, err
		}
		if err := v.checkTools(mutating, res); err != nil {
			return nil, err
		}
	}

	if err := v.Client.Probe(ctx, k8s.EndpointReadyz); err != nil {
		return nil, fail(CheckAPI, fmt.Errorf("API server not reachable: %w", err))
	}

	node, err := v.Client.GetNode(ctx, cfg.Node)
	if err != nil {
		return nil, fail(CheckNode, err)
	}
	res.Node = node
	res.Role = v.resolveRole(node, res)

	if err := v.checkMarker(res); err != nil {
		return nil, err
	}

	if mutating {
		journal, err := state.OpenJournal(cfg.StateDir, cfg.Node, cfg.Timings.LockTimeout)
		if err != nil {
			return nil, fail(CheckLock, err)
		}
		res.Journal = journal
	}

	for _, finding := range res.Findings {
		logging.Warning(v.Log, finding)
	}
	v.Log.Info().Str("role", string(res.Role)).Bool("mutating", mutating).Msg("preflight passed")
	return res, nil
}

func (v *Validator) checkPrivilege(mutating bool) error {
	if !mutating || v.Geteuid == nil {
		return nil
	}
	if uid := v.Geteuid(); uid != 0 {
		return fail(CheckPrivilege, fmt.Errorf("must run as root (effective uid %d); use --dry-run to rehearse", uid))
	}
	return nil
}

func (v *Validator) checkTools(mutating bool, res *Result) error {
	if v.CheckTools == nil {
		return nil
	}
	results := v.CheckTools()
	if err := results.Error(); err != nil {
		if mutating {
			return fail(CheckTools, err)
		}
		res.Findings = append(res.Findings, err.Error())
	}
	for _, name := range results.OptionalMissing() {
		v.Log.Debug().Str("tool", name).Msg("optional tool not found")
	}
	return nil
}

func (v *Validator) resolveRole(node *corev1.Node, res *Result) config.Role {
	detected := k8s.RoleOf(node)
	if v.Config.Role == "" {
		return detected
	}
	if v.Config.Role != detected {
		res.Findings = append(res.Findings, fmt.Sprintf(
			"--role %s differs from node labels (%s); using %s", v.Config.Role, detected, v.Config.Role))
	}
	return v.Config.Role
}

func (v *Validator) checkMarker(res *Result) error {
	if v.Markers == nil {
		return nil
	}
	marker, found, err := v.Markers.Read(v.Config.Node)
	if err != nil && !found {
		return fail(CheckMarker, err)
	}
	if !found {
		return nil
	}
	res.Stale = marker
	msg := fmt.Sprintf("stale cordon marker found (session %s, cordoned %s)", marker.SessionID, marker.CordonedAt.Format("2006-01-02T15:04:05Z07:00"))
	if err != nil {
		msg = fmt.Sprintf("unreadable cordon marker found: %v", err)
	}
	if !res.Node.Spec.Unschedulable {
		msg += "; node is schedulable again"
	}
	res.Findings = append(res.Findings, msg)
	return nil
}

// IsFailure reports whether err is a preflight failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}
