// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import "sync"

// Result is the payload of the turn-completed notification. It carries
// the latest folded state at the moment the terminal transition fired,
// never a snapshot taken when streaming began.
type Result struct {
	Outcome   TurnState
	State     *State // deep copy, safe to retain
	SessionID string
	Answer    string
	Err       *TerminalError // nil on TurnCompleted
}

// Callbacks is a mutable holder for the caller's notification hooks.
//
// The controller reads the current hook once per notification, so the
// caller may swap hooks at any time — including mid-stream — and the
// notification always reaches the latest one, never a stale closure
// captured at stream start. The zero value is usable; unset hooks are
// skipped.
type Callbacks struct {
	mu         sync.RWMutex
	onSession  func(sessionID string)
	onComplete func(*Result)
	onWarning  func()
}

// SetOnSessionID installs the hook fired once metadata reveals the
// session identifier. Fired at most once per request.
func (c *Callbacks) SetOnSessionID(fn func(sessionID string)) {
	c.mu.Lock()
	c.onSession = fn
	c.mu.Unlock()
}

// SetOnTurnComplete installs the hook fired exactly once per request on
// TurnCompleted or TurnFailed. Never fired on cancellation.
func (c *Callbacks) SetOnTurnComplete(fn func(*Result)) {
	c.mu.Lock()
	c.onComplete = fn
	c.mu.Unlock()
}

// SetOnTimeoutWarning installs the hook fired when the soft escalation
// threshold elapses with the stream still running.
func (c *Callbacks) SetOnTimeoutWarning(fn func()) {
	c.mu.Lock()
	c.onWarning = fn
	c.mu.Unlock()
}

func (c *Callbacks) fireSession(sessionID string) {
	c.mu.RLock()
	fn := c.onSession
	c.mu.RUnlock()
	if fn != nil {
		fn(sessionID)
	}
}

func (c *Callbacks) fireComplete(r *Result) {
	c.mu.RLock()
	fn := c.onComplete
	c.mu.RUnlock()
	if fn != nil {
		fn(r)
	}
}

func (c *Callbacks) fireWarning() {
	c.mu.RLock()
	fn := c.onWarning
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
