package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/imamik/nodecycle/internal/confirm"
	"github.com/imamik/nodecycle/internal/drain"
	"github.com/imamik/nodecycle/internal/health"
	"github.com/imamik/nodecycle/internal/k8s"
	"github.com/imamik/nodecycle/internal/logging"
	"github.com/imamik/nodecycle/internal/metrics"
	"github.com/imamik/nodecycle/internal/power"
	"github.com/imamik/nodecycle/internal/preflight"
	"github.com/imamik/nodecycle/internal/service"
	"github.com/imamik/nodecycle/internal/state"
	"github.com/imamik/nodecycle/internal/util/prerequisites"
	"github.com/imamik/nodecycle/internal/volumes"
)

// Dependencies are the collaborators of an Orchestrator. Optional fields
// fall back to the real host implementations.
type Dependencies struct {
	Client   *k8s.Client
	Markers  *state.MarkerStore
	Prompter confirm.Prompter
	Out      io.Writer
	Metrics  *metrics.Session

	// ConnectUnits opens the service manager. Never called in dry-run.
	ConnectUnits func(ctx context.Context) (service.UnitManager, error)
	Power        power.Manager

	Geteuid    func() int
	CheckTools func() *prerequisites.CheckResults
	Exit       func(code int)
}

// Orchestrator drives a session through every phase.
type Orchestrator struct {
	Session *Session

	deps       Dependencies
	log        zerolog.Logger
	drain      *drain.Controller
	interrupts *InterruptHandler
	report     *health.Report
	finalize   sync.Once
}

// NewOrchestrator wires the phase controllers for s.
func NewOrchestrator(s *Session, deps Dependencies) *Orchestrator {
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(s.Config.Node)
	}
	o := &Orchestrator{
		Session: s,
		deps:    deps,
		log:     s.Log,
	}
	o.drain = drain.New(deps.Client, deps.Markers, s.Config, s.ID, logging.WithComponent(s.Log, "drain"))
	o.interrupts = &InterruptHandler{
		Session:  s,
		Releaser: o.drain,
		Timeout:  2 * s.Config.Timings.APICall,
		Log:      logging.WithComponent(s.Log, "interrupt"),
		Finalize: o.finish,
		Exit:     deps.Exit,
	}
	return o
}

// Report returns the health report once the audit phase has run.
func (o *Orchestrator) Report() *health.Report {
	return o.report
}

// Run executes the maintenance sequence. Any failure after cordoning rolls
// the node back to schedulable before returning.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.interrupts.Cancel = cancel

	o.interrupts.Start()
	defer o.interrupts.Stop()
	defer func() {
		if o.interrupts.Fired() {
			o.interrupts.Wait()
			err = ErrInterrupted
			return
		}
		o.finish(o.outcome(err))
	}()

	cfg := o.Session.Config

	if err := o.step(ctx, "preflight", PhaseValidated, o.preflight); err != nil {
		return err
	}
	if err := o.step(ctx, "audit", PhaseAudited, o.audit); err != nil {
		return err
	}
	if err := o.step(ctx, "confirm", PhaseConfirmed, func(ctx context.Context) error {
		return o.gate().Confirm(ctx, o.report, cfg)
	}); err != nil {
		return err
	}
	if err := o.step(ctx, "cordon", PhaseCordoned, o.cordon); err != nil {
		return err
	}

	if err := o.advance(PhaseDraining); err != nil {
		return o.abort(err)
	}
	if err := o.step(ctx, "drain", PhaseDrained, o.drainNode); err != nil {
		return o.abort(err)
	}
	if err := o.step(ctx, "storage", PhaseStorageQuiescent, o.quiesce); err != nil {
		return o.abort(err)
	}
	if err := o.step(ctx, "service", PhaseServiceStopped, o.stopService); err != nil {
		return o.abort(err)
	}

	// An interrupt may land between phases; nothing past this point may run.
	if err := ctx.Err(); err != nil {
		return o.abort(err)
	}
	if cfg.DryRun {
		if err := o.powerController().Execute(ctx); err != nil {
			return err
		}
		logging.PhaseSkipped(o.log, "power", "dry-run")
		return nil
	}

	// The phase is recorded first; a successful power action may not return.
	if err := o.advance(PhasePoweredOff); err != nil {
		return o.abort(err)
	}
	o.writeMetrics(OutcomeCompleted)
	if err := o.powerController().Execute(ctx); err != nil {
		return o.abort(err)
	}
	return nil
}

// step runs fn as one phase and advances to the phase it leads to.
func (o *Orchestrator) step(ctx context.Context, name string, to Phase, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logging.PhaseStarted(o.log, name)
	start := time.Now()
	if err := fn(ctx); err != nil {
		logging.PhaseFailed(o.log, name, err)
		return err
	}
	if err := ctx.Err(); err != nil {
		logging.PhaseFailed(o.log, name, err)
		return err
	}
	logging.PhaseCompleted(o.log, name, time.Since(start))
	return o.advance(to)
}

func (o *Orchestrator) advance(to Phase) error {
	spent, err := o.Session.Transition(to)
	if err != nil {
		return err
	}
	o.deps.Metrics.ObservePhase(to.String(), spent)
	return nil
}

// abort rolls back after a failure at or after cordoning.
func (o *Orchestrator) abort(cause error) error {
	if rerr := o.interrupts.Rollback(cause.Error()); rerr != nil {
		return errors.Join(cause, rerr)
	}
	return cause
}

func (o *Orchestrator) preflight(ctx context.Context) error {
	cfg := o.Session.Config
	v := preflight.New(cfg, o.deps.Client, o.deps.Markers, preflight.ModeMaintain, o.log)
	if o.deps.Geteuid != nil {
		v.Geteuid = o.deps.Geteuid
	}
	if o.deps.CheckTools != nil {
		v.CheckTools = o.deps.CheckTools
	}

	res, err := v.Run(ctx)
	if err != nil {
		return err
	}
	cfg.Role = res.Role
	o.drain.Role = res.Role
	return o.Session.Attach(res.Journal)
}

func (o *Orchestrator) audit(ctx context.Context) error {
	report, err := health.New(o.deps.Client, o.Session.Config, o.log).Audit(ctx)
	if err != nil {
		return err
	}
	o.report = report
	return nil
}

func (o *Orchestrator) gate() *confirm.Gate {
	return &confirm.Gate{
		Prompter: o.deps.Prompter,
		Out:      o.deps.Out,
		DryRun:   o.Session.Config.DryRun,
		Log:      logging.WithComponent(o.log, "confirm"),
	}
}

func (o *Orchestrator) cordon(ctx context.Context) error {
	outcome, err := o.drain.Cordon(ctx)
	if err != nil {
		return err
	}
	o.log.Info().Str("cordon", string(outcome)).Msg("Node cordon state settled")
	return nil
}

func (o *Orchestrator) drainNode(ctx context.Context) error {
	result, err := o.drain.Drain(ctx)

	var residual *drain.ResidualError
	if errors.As(err, &residual) {
		logging.Warning(o.log, residual.Error())
		err = nil
	}
	if err != nil {
		return err
	}

	if result.DeleteErrors != nil {
		o.log.Warn().Err(result.DeleteErrors).Msg("Some pod deletions failed")
	}
	if !o.Session.Config.DryRun {
		o.deps.Metrics.PodsDeleted(metrics.ModeGraceful, result.Planned)
		o.deps.Metrics.PodsDeleted(metrics.ModeForced, result.ForceDeleted)
		o.deps.Metrics.SetResidual(len(result.Residual))
	}
	return nil
}

func (o *Orchestrator) quiesce(ctx context.Context) error {
	cfg := o.Session.Config
	log := logging.WithComponent(o.log, "volumes")

	// Looked up again rather than trusting the audit: only a confirmed
	// NotFound skips the wait.
	present, err := o.deps.Client.NamespaceExists(ctx, cfg.StorageNamespace)
	switch {
	case err != nil:
		logging.Warning(log, fmt.Sprintf("cannot tell whether %s exists, waiting for volumes anyway: %v", cfg.StorageNamespace, err))
	case !present:
		logging.PhaseSkipped(o.log, "storage", "storage layer not installed")
		return nil
	}

	reader := volumes.NewReader(o.deps.Client.Dynamic(), cfg.StorageNamespace, o.deps.Client.APITimeout())

	if cfg.DryRun {
		attached, err := reader.AttachedTo(ctx, cfg.Node)
		if err != nil {
			log.Warn().Err(err).Msg("Could not list attached volumes")
			return nil
		}
		logging.DryRun(log, fmt.Sprintf("wait up to %s for %d attached volume(s) to detach", cfg.StorageWait, len(attached)), "node/"+cfg.Node)
		return nil
	}

	waiter := &volumes.Waiter{
		Lister:   reader,
		Interval: cfg.Timings.QuiescePoll,
		Deadline: cfg.StorageWait,
		Log:      log,
	}
	res, err := waiter.Wait(ctx, cfg.Node)

	var timeout *volumes.QuiesceTimeoutError
	if errors.As(err, &timeout) {
		o.deps.Metrics.SetAttachedVolumes(len(timeout.Attached))
		title := fmt.Sprintf("%d volume(s) still attached to %s. Continue anyway?", len(timeout.Attached), cfg.Node)
		if timeout.Unverified {
			title = fmt.Sprintf("Volume state of %s could not be read. Continue anyway?", cfg.Node)
		}
		if oerr := o.gate().ConfirmOverride(ctx, title, timeout.Error()); oerr != nil {
			return fmt.Errorf("%w: %w", oerr, timeout)
		}
		logging.Warning(log, "storage quiescence overridden by operator")
		return nil
	}
	if err != nil {
		return err
	}
	o.deps.Metrics.SetAttachedVolumes(0)
	log.Info().Int("polls", res.Polls).Dur("elapsed", res.Elapsed).Msg("All volumes detached")
	return nil
}

func (o *Orchestrator) stopService(ctx context.Context) error {
	cfg := o.Session.Config
	log := logging.WithComponent(o.log, "service")

	var manager service.UnitManager
	if !cfg.DryRun {
		connect := o.deps.ConnectUnits
		if connect == nil {
			connect = service.Connect
		}
		m, err := connect(ctx)
		if err != nil {
			logging.Warning(log, fmt.Sprintf("cannot reach the service manager, skipping agent shutdown: %v", err))
			return nil
		}
		defer m.Close()
		manager = m
	}

	result, err := service.New(manager, cfg, log).Shutdown(ctx)
	if result != nil && len(result.Steps) > 1 {
		for _, step := range result.Steps[1:] {
			o.deps.Metrics.Escalated(string(step))
		}
	}

	var escalation *service.EscalationError
	if errors.As(err, &escalation) {
		logging.Warning(log, escalation.Error())
		return nil
	}
	return err
}

func (o *Orchestrator) powerController() *power.Controller {
	cfg := o.Session.Config
	log := logging.WithComponent(o.log, "power")
	manager := o.deps.Power
	if manager == nil {
		manager = power.Host(log)
	}
	return &power.Controller{Manager: manager, Action: cfg.Action, DryRun: cfg.DryRun, Log: log}
}

func (o *Orchestrator) outcome(err error) string {
	switch {
	case err == nil && o.Session.Config.DryRun:
		return OutcomeDryRun
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, confirm.ErrDeclined):
		return OutcomeDeclined
	case o.Session.Phase() == PhaseRolledBack:
		return OutcomeRolledBack
	default:
		return OutcomeFailed
	}
}

func (o *Orchestrator) writeMetrics(outcome string) {
	o.deps.Metrics.Finish(outcome, time.Now())
	if err := o.deps.Metrics.WriteTextfile(o.Session.Config.MetricsDir); err != nil {
		o.log.Warn().Err(err).Msg("Failed to write metrics")
	}
}

// finish records the outcome exactly once, whether the session ended
// normally or through the interrupt handler.
func (o *Orchestrator) finish(outcome string) {
	o.finalize.Do(func() {
		o.writeMetrics(outcome)
		o.Session.Finish(outcome)
	})
}
