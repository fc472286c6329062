// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flash

import (
	"errors"
	"fmt"
)

var ErrInvalidPhaseTransition = errors.New("invalid phase transition")

// Phase is the stage an invocation has reached.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseSwapping
	PhaseGuarding
	PhaseSettling
	PhaseDone
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseSwapping:
		return "swapping"
	case PhaseGuarding:
		return "guarding"
	case PhaseSettling:
		return "settling"
	case PhaseDone:
		return "done"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseAborted
}

// Swapping stays in its own phase across hops, so Swapping → Swapping is an
// edge of its own.
var allowedPhaseTransitions = map[Phase]map[Phase]struct{}{
	PhaseIdle: {
		PhaseValidating: {},
		PhaseAborted:    {},
	},
	PhaseValidating: {
		PhaseSwapping: {},
		PhaseAborted:  {},
	},
	PhaseSwapping: {
		PhaseSwapping: {},
		PhaseGuarding: {},
		PhaseAborted:  {},
	},
	PhaseGuarding: {
		PhaseSettling: {},
		PhaseAborted:  {},
	},
	PhaseSettling: {
		PhaseDone:    {},
		PhaseAborted: {},
	},
	PhaseDone:    {},
	PhaseAborted: {},
}

func validatePhaseTransition(from, to Phase) error {
	allowed, ok := allowedPhaseTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown source phase %s", ErrInvalidPhaseTransition, from)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, from, to)
	}
	return nil
}

// sequence tracks the phase of one invocation.
type sequence struct {
	phase Phase
	hop   int
}

func (s *sequence) advance(to Phase) error {
	if err := validatePhaseTransition(s.phase, to); err != nil {
		return err
	}
	s.phase = to
	return nil
}

// abort moves the sequence to Aborted from any live phase. Aborting twice is
// a no-op.
func (s *sequence) abort() {
	if s.phase.Terminal() {
		return
	}
	s.phase = PhaseAborted
}
