package session

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/imamik/nodecycle/internal/logging"
)

// Replaced in tests.
var (
	signalNotify = signal.Notify
	signalStop   = signal.Stop
)

// interruptSignals are the signals that trigger a rollback.
var interruptSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// Releaser uncordons the node if this session cordoned it. A marker this
// session did not write or adopt must be left alone.
type Releaser interface {
	ReleaseOwned(ctx context.Context) (bool, error)
}

// InterruptHandler restores schedulability when the process is told to
// stop.
type InterruptHandler struct {
	Session  *Session
	Releaser Releaser
	Timeout  time.Duration
	Log      zerolog.Logger

	// Cancel stops the session context before the rollback starts, so no
	// later step can act on the host.
	Cancel context.CancelFunc
	// Finalize runs after the rollback and before Exit.
	Finalize func(outcome string)
	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int)

	mu       sync.Mutex
	signals  chan os.Signal
	stop     chan struct{}
	handled  chan struct{}
	fired    bool
	rolledBy string
}

// Start registers the handler. Calling it again has no effect.
func (h *InterruptHandler) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.signals != nil {
		return
	}
	h.signals = make(chan os.Signal, 1)
	h.stop = make(chan struct{})
	h.handled = make(chan struct{})
	signalNotify(h.signals, interruptSignals...)

	go h.loop(h.signals, h.stop, h.handled)
}

// Stop unregisters the handler.
func (h *InterruptHandler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.signals == nil {
		return
	}
	signalStop(h.signals)
	close(h.stop)
	h.signals = nil
}

// Fired reports whether a signal was handled.
func (h *InterruptHandler) Fired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fired
}

// Wait blocks until a fired handler has finished its rollback. It returns
// immediately if no signal was handled.
func (h *InterruptHandler) Wait() {
	h.mu.Lock()
	fired, handled := h.fired, h.handled
	h.mu.Unlock()
	if fired && handled != nil {
		<-handled
	}
}

func (h *InterruptHandler) loop(signals <-chan os.Signal, stop <-chan struct{}, handled chan struct{}) {
	select {
	case sig := <-signals:
		h.handle(sig, handled)
	case <-stop:
	}
}

func (h *InterruptHandler) handle(sig os.Signal, handled chan struct{}) {
	h.mu.Lock()
	h.fired = true
	h.mu.Unlock()

	logging.Event(h.Log, zerolog.WarnLevel, logging.EventInterrupted).
		Str("signal", sig.String()).
		Str("phase", h.Session.Phase().String()).
		Msg("Termination signal received, rolling back")

	if h.Cancel != nil {
		h.Cancel()
	}
	outcome := OutcomeInterrupted
	if err := h.Rollback(fmt.Sprintf("signal %s", sig)); err != nil {
		outcome = OutcomeFailed
	}
	if h.Finalize != nil {
		h.Finalize(outcome)
	}
	close(handled)

	exit := h.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(ExitInterrupted)
}

// Rollback uncordons the node if this session owns its cordon and moves the
// session to RolledBack. A dry run never touches the node. It is idempotent
// and safe to call while a drain is in flight. The rollback uses its own
// deadline so that a cancelled session context cannot prevent it.
func (h *InterruptHandler) Rollback(reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var (
		released bool
		err      error
	)
	if !h.Session.Config.DryRun {
		released, err = h.Releaser.ReleaseOwned(ctx)
	}
	if err != nil {
		logging.Event(h.Log, zerolog.ErrorLevel, logging.EventRollback).
			Str("reason", reason).
			Err(err).
			Msg("Rollback failed; the node stays cordoned and its marker is kept. Run nodecycle restore once the API is reachable")
		return fmt.Errorf("rollback: %w", err)
	}

	if h.rolledBy == "" && h.Session.Phase().Cordoned() {
		if _, terr := h.Session.Transition(PhaseRolledBack); terr != nil {
			h.Log.Warn().Err(terr).Msg("Could not record rollback phase")
		}
		h.rolledBy = reason
	}
	logging.Event(h.Log, zerolog.InfoLevel, logging.EventRollback).
		Str("reason", reason).
		Bool("uncordoned", released).
		Msg("Rollback complete")
	return nil
}
