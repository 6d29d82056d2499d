package session

import (
	"errors"
	"fmt"
)

// Phase is a session state.
type Phase int

// Phases in order. RolledBack is terminal and sits outside the sequence.
const (
	PhaseUninitialized Phase = iota
	PhaseValidated
	PhaseAudited
	PhaseConfirmed
	PhaseCordoned
	PhaseDraining
	PhaseDrained
	PhaseStorageQuiescent
	PhaseServiceStopped
	PhasePoweredOff
	PhaseRolledBack
)

var phaseNames = map[Phase]string{
	PhaseUninitialized:    "uninitialized",
	PhaseValidated:        "validated",
	PhaseAudited:          "audited",
	PhaseConfirmed:        "confirmed",
	PhaseCordoned:         "cordoned",
	PhaseDraining:         "draining",
	PhaseDrained:          "drained",
	PhaseStorageQuiescent: "storage-quiescent",
	PhaseServiceStopped:   "service-stopped",
	PhasePoweredOff:       "powered-off",
	PhaseRolledBack:       "rolled-back",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ErrIllegalTransition is returned for a transition the state machine does
// not allow.
var ErrIllegalTransition = errors.New("illegal phase transition")

// CanTransition reports whether to directly follows p.
func (p Phase) CanTransition(to Phase) bool {
	if p == PhaseRolledBack {
		return false
	}
	if to == PhaseRolledBack {
		return p >= PhaseCordoned
	}
	return p < PhasePoweredOff && to == p+1
}

// Cordoned reports whether the node may be cordoned by this session in p.
func (p Phase) Cordoned() bool {
	return p >= PhaseCordoned && p != PhaseRolledBack
}
