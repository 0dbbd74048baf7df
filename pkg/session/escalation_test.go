// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Construction Tests
// =============================================================================

func TestNewEscalationTimer_Defaults(t *testing.T) {
	timer := NewEscalationTimer(0, 0)
	assert.Equal(t, DefaultWarnThreshold, timer.warnAfter)
	assert.Equal(t, DefaultHardTimeout, timer.hardAfter)

	timer = NewEscalationTimer(-1, -1)
	assert.Equal(t, DefaultWarnThreshold, timer.warnAfter)
	assert.Equal(t, DefaultHardTimeout, timer.hardAfter)
}

func TestNewEscalationTimer_WarnPulledUnderHard(t *testing.T) {
	// Warn at or past the hard threshold would defeat the escalation
	// ladder; it gets pulled back under.
	timer := NewEscalationTimer(10*time.Second, 4*time.Second)
	assert.Equal(t, 2*time.Second, timer.warnAfter)
	assert.Equal(t, 4*time.Second, timer.hardAfter)

	timer = NewEscalationTimer(4*time.Second, 4*time.Second)
	assert.Equal(t, 2*time.Second, timer.warnAfter)
}

// =============================================================================
// Firing Order Tests
// =============================================================================

func TestEscalationTimer_WarnBeforeHard(t *testing.T) {
	timer := NewEscalationTimer(20*time.Millisecond, 60*time.Millisecond)

	warned := make(chan time.Time, 1)
	hardFired := make(chan time.Time, 1)

	timer.Arm(
		func() { warned <- time.Now() },
		func() { hardFired <- time.Now() },
	)
	defer timer.Disarm()

	var warnAt, hardAt time.Time
	select {
	case warnAt = <-warned:
	case <-time.After(2 * time.Second):
		t.Fatal("warn callback never fired")
	}
	select {
	case hardAt = <-hardFired:
	case <-time.After(2 * time.Second):
		t.Fatal("hard callback never fired")
	}

	require.True(t, warnAt.Before(hardAt) || warnAt.Equal(hardAt),
		"warning must precede the hard timeout")
}

func TestEscalationTimer_DisarmPreventsFiring(t *testing.T) {
	timer := NewEscalationTimer(30*time.Millisecond, 60*time.Millisecond)

	fired := make(chan string, 2)
	timer.Arm(
		func() { fired <- "warn" },
		func() { fired <- "hard" },
	)
	timer.Disarm()

	select {
	case which := <-fired:
		t.Fatalf("%s fired after Disarm", which)
	case <-time.After(120 * time.Millisecond):
	}
	assert.False(t, timer.Armed())
}

func TestEscalationTimer_DisarmIdempotent(t *testing.T) {
	timer := NewEscalationTimer(time.Second, 2*time.Second)

	// Disarm without Arm, then repeatedly.
	timer.Disarm()
	timer.Arm(func() {}, func() {})
	timer.Disarm()
	timer.Disarm()

	assert.False(t, timer.Armed())
}

func TestEscalationTimer_RearmRestartsClocks(t *testing.T) {
	timer := NewEscalationTimer(40*time.Millisecond, time.Second)

	firstWarn := make(chan struct{}, 1)
	secondWarn := make(chan struct{}, 1)

	timer.Arm(func() { firstWarn <- struct{}{} }, func() {})
	time.Sleep(20 * time.Millisecond)

	// Re-arm halfway through: the first warn must never fire.
	timer.Arm(func() { secondWarn <- struct{}{} }, func() {})
	defer timer.Disarm()

	select {
	case <-firstWarn:
		t.Fatal("first arm's warn fired after re-arm")
	case <-secondWarn:
	case <-time.After(2 * time.Second):
		t.Fatal("second arm's warn never fired")
	}
}

func TestEscalationTimer_Armed(t *testing.T) {
	timer := NewEscalationTimer(time.Second, 2*time.Second)
	assert.False(t, timer.Armed())

	timer.Arm(func() {}, func() {})
	assert.True(t, timer.Armed())

	timer.Disarm()
	assert.False(t, timer.Armed())
}
