// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import "sync"

// TurnState is the arbiter's state machine position for one request.
type TurnState int

const (
	// TurnIdle is the initial state, before a request is issued.
	TurnIdle TurnState = iota

	// TurnStreaming covers the whole window between request issue and
	// the first terminal transition.
	TurnStreaming

	// TurnCompleted is terminal success: an explicit complete event, or
	// the transport closing after an answer was produced.
	TurnCompleted

	// TurnFailed is terminal failure: an explicit error event, the hard
	// timeout, or a non-cancellation transport error.
	TurnFailed

	// TurnCancelled is the silent terminal exit: caller abort or
	// teardown. No completion notification fires.
	TurnCancelled
)

// String returns a stable label for logging.
func (t TurnState) String() string {
	switch t {
	case TurnIdle:
		return "idle"
	case TurnStreaming:
		return "streaming"
	case TurnCompleted:
		return "completed"
	case TurnFailed:
		return "failed"
	case TurnCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events are processed in this state.
func (t TurnState) Terminal() bool {
	return t == TurnCompleted || t == TurnFailed || t == TurnCancelled
}

// Arbiter guarantees exactly one terminal transition per request.
//
// Completion can be signalled by three independent paths: an explicit
// terminal event, an explicit error event (or timer-fired timeout), or
// the transport closing with no terminal event at all. Whichever arrives
// first wins; the one-shot latch makes every later attempt a no-op, so a
// complete event followed by transport close cannot double-fire the
// caller's notification.
//
// The notify callback passed to Complete and Fail runs while the latch is
// held but after the state is recorded, and is invoked at most once
// across both methods for the lifetime of the arbiter. Cancel never
// notifies.
type Arbiter struct {
	mu    sync.Mutex
	state TurnState
	fired bool
}

// NewArbiter returns an arbiter in the idle state.
func NewArbiter() *Arbiter {
	return &Arbiter{state: TurnIdle}
}

// State returns the current state machine position.
func (a *Arbiter) State() TurnState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Begin transitions idle → streaming. Returns false if the arbiter has
// already left idle.
func (a *Arbiter) Begin() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != TurnIdle {
		return false
	}
	a.state = TurnStreaming
	return true
}

// Complete attempts the streaming → completed transition, invoking
// notify when this call won the race. Returns whether it won.
func (a *Arbiter) Complete(notify func()) bool {
	return a.finish(TurnCompleted, notify)
}

// Fail attempts the streaming → failed transition, invoking notify when
// this call won the race. Returns whether it won.
func (a *Arbiter) Fail(notify func()) bool {
	return a.finish(TurnFailed, notify)
}

// Cancel attempts the streaming → cancelled transition. Cancellation is
// a silent exit: no notification fires, now or later. Idempotent.
func (a *Arbiter) Cancel() bool {
	return a.finish(TurnCancelled, nil)
}

func (a *Arbiter) finish(terminal TurnState, notify func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.Terminal() || a.fired {
		return false
	}
	a.state = terminal
	a.fired = true

	if notify != nil {
		notify()
	}
	return true
}
