// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"sync"
	"time"
)

// Default escalation thresholds. The turn's duration is unbounded and
// determined entirely by the remote model, so both thresholds are
// wall-clock offsets from the moment the request was issued.
const (
	// DefaultWarnThreshold is when the advisory timeout warning flips.
	DefaultWarnThreshold = 30 * time.Second

	// DefaultHardTimeout is when the transport is forcibly aborted and
	// the turn fails with a timeout-kind error. Must exceed the warn
	// threshold.
	DefaultHardTimeout = 90 * time.Second
)

// EscalationTimer runs two independent one-shot timers over a stream.
//
// The soft timer only flips a UI-observable warning flag; it never
// touches the transport. The hard timer aborts the transport and records
// a terminal, user-facing timeout error. Disarm must be invoked on every
// terminal outcome so neither callback fires after the session ended.
type EscalationTimer struct {
	warnAfter time.Duration
	hardAfter time.Duration

	mu    sync.Mutex
	warn  *time.Timer
	hard  *time.Timer
	armed bool
}

// NewEscalationTimer creates a disarmed timer pair. Non-positive
// thresholds fall back to the defaults; a soft threshold at or past the
// hard one is pulled back under it so the warning always precedes the
// cancel.
func NewEscalationTimer(warnAfter, hardAfter time.Duration) *EscalationTimer {
	if warnAfter <= 0 {
		warnAfter = DefaultWarnThreshold
	}
	if hardAfter <= 0 {
		hardAfter = DefaultHardTimeout
	}
	if warnAfter >= hardAfter {
		warnAfter = hardAfter / 2
	}
	return &EscalationTimer{warnAfter: warnAfter, hardAfter: hardAfter}
}

// Arm starts both timers. Callbacks run on timer goroutines; they must
// be safe to call concurrently with the reader loop. Arming an
// already-armed timer restarts both clocks.
func (t *EscalationTimer) Arm(onWarn, onHardTimeout func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.warn = time.AfterFunc(t.warnAfter, onWarn)
	t.hard = time.AfterFunc(t.hardAfter, onHardTimeout)
	t.armed = true
}

// Disarm cancels both timers. Safe to call repeatedly and from any
// terminal path (success, error, explicit cancellation, teardown).
func (t *EscalationTimer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Armed reports whether the timers are currently running.
func (t *EscalationTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

func (t *EscalationTimer) stopLocked() {
	if t.warn != nil {
		t.warn.Stop()
		t.warn = nil
	}
	if t.hard != nil {
		t.hard.Stop()
		t.hard = nil
	}
	t.armed = false
}
