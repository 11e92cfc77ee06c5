package executive

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrWrongPhase is returned when an executive method is called out of
// order.
var ErrWrongPhase = errors.New("executive: wrong phase")

// phase is a point in the life of one block.
type phase uint32

const (
	// phaseUninitialized: waiting for InitializeBlock.
	phaseUninitialized phase = iota
	// phaseInitialized: the header is recorded. ApplyExtrinsic and
	// FinalizeBlock are allowed.
	phaseInitialized
	// phaseExecuting: a call is in progress. Nothing else is allowed
	// until it returns.
	phaseExecuting
	// phaseFinalized: the block is complete or the executive failed.
	// Terminal.
	phaseFinalized
)

func (p phase) String() string {
	switch p {
	case phaseUninitialized:
		return "Uninitialized"
	case phaseInitialized:
		return "Initialized"
	case phaseExecuting:
		return "Executing"
	case phaseFinalized:
		return "Finalized"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// guard enforces the block phase machine. A call acquires the guard
// by moving it to phaseExecuting and releases it into the phase its
// outcome leads to.
type guard struct {
	state atomic.Uint32
}

func (g *guard) current() phase { return phase(g.state.Load()) }

// acquire moves want → Executing.
func (g *guard) acquire(op string, want phase) error {
	if !g.state.CompareAndSwap(uint32(want), uint32(phaseExecuting)) {
		return fmt.Errorf("%w: %s called in phase %s (expected %s)", ErrWrongPhase, op, g.current(), want)
	}
	return nil
}

// release moves Executing → next.
func (g *guard) release(next phase) {
	g.state.Store(uint32(next))
}
