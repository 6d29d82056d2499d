package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/imamik/nodecycle/internal/config"
	"github.com/imamik/nodecycle/internal/logging"
	"github.com/imamik/nodecycle/internal/state"
)

// Session is one maintenance run against one node.
type Session struct {
	ID      string
	Config  *config.Config
	Started time.Time
	Log     zerolog.Logger

	mu       sync.Mutex
	phase    Phase
	entered  time.Time
	journal  *state.Journal
	finished bool
	now      func() time.Time
}

// New creates a session with a fresh ID. The logger should already carry
// the session ID; use NewID to create one up front.
func New(id string, cfg *config.Config, log zerolog.Logger) *Session {
	if id == "" {
		id = NewID()
	}
	now := time.Now()
	return &Session{
		ID:      id,
		Config:  cfg,
		Started: now,
		Log:     log,
		entered: now,
		now:     time.Now,
	}
}

// NewID returns a random session ID.
func NewID() string {
	return uuid.NewString()
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Attach starts the journal record for this session. j may be nil.
func (s *Session) Attach(j *state.Journal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = j
	if j == nil {
		return nil
	}
	return j.Begin(state.Record{
		ID:      s.ID,
		Node:    s.Config.Node,
		Role:    string(s.Config.Role),
		DryRun:  s.Config.DryRun,
		Started: s.Started.UTC(),
		Phase:   s.phase.String(),
	})
}

// Transition moves the session to phase to. Illegal transitions are
// rejected and leave the phase unchanged. It returns how long the session
// spent in the previous phase.
func (s *Session) Transition(to Phase) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.phase
	if !from.CanTransition(to) {
		return 0, fmt.Errorf("%w: %s → %s", ErrIllegalTransition, from, to)
	}
	if to == PhasePoweredOff && s.Config.DryRun {
		return 0, fmt.Errorf("%w: %s is not reachable in dry-run", ErrIllegalTransition, to)
	}

	now := s.now()
	spent := now.Sub(s.entered)
	s.phase = to
	s.entered = now

	logging.Event(s.Log, zerolog.InfoLevel, logging.EventPhaseCompleted).
		Str("from", from.String()).
		Str("to", to.String()).
		Dur("duration", spent).
		Msg("Phase transition")

	if s.journal != nil {
		if err := s.journal.Transition(s.ID, to.String(), now.UTC()); err != nil {
			s.Log.Warn().Err(err).Msg("Failed to journal phase transition")
		}
	}
	return spent, nil
}

// Finish records the outcome once and releases the journal, which also
// releases the node lock.
func (s *Session) Finish(outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true

	s.Log.Info().
		Str("outcome", outcome).
		Str("phase", s.phase.String()).
		Dur("elapsed", s.now().Sub(s.Started)).
		Msg("Session finished")

	if s.journal == nil {
		return
	}
	if err := s.journal.Finish(s.ID, s.phase.String(), outcome, s.now().UTC()); err != nil {
		s.Log.Warn().Err(err).Msg("Failed to journal session outcome")
	}
	if err := s.journal.Close(); err != nil {
		s.Log.Warn().Err(err).Msg("Failed to close journal")
	}
	s.journal = nil
}
