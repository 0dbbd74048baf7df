// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session folds a stream of wire events into one coherent view of
// what the assistant is currently doing and saying, and arbitrates the
// single point at which a turn is done.
//
// Components, leaf-first:
//
//   - State: the fold accumulator, owned exclusively by the Controller
//   - Reduce: (state, event) → state', one case per event variant
//   - Arbiter: exactly-once terminal transition (complete/fail/cancel)
//   - EscalationTimer: soft-warning and hard-cancel wall-clock thresholds
//   - Controller: orchestrates transport → decode → parse → reduce
//
// Data flows bytes → frames → events → folded state → observers; control
// flows the other way via context cancellation.
package session

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/HalcyonAI/HalcyonFOSS/pkg/sse"
)

// PhaseStatus is the lifecycle status of one pipeline phase.
type PhaseStatus string

const (
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseFailed     PhaseStatus = "failed"
	PhaseSkipped    PhaseStatus = "skipped"
)

// Final reports whether the status may no longer change. A completed or
// failed phase must never be downgraded back to in_progress by a
// late-arriving duplicate.
func (s PhaseStatus) Final() bool {
	return s == PhaseCompleted || s == PhaseFailed
}

// PhaseEvent is one named pipeline phase and its observed status.
//
// DurationMS is nil until a finalized event supplies it; a later event
// with a missing duration never erases a recorded one.
type PhaseEvent struct {
	Phase      string
	Status     PhaseStatus
	DurationMS *float64
}

// ToolStatus is the lifecycle status of one tool invocation.
type ToolStatus string

const (
	ToolRunning ToolStatus = "running"
	ToolSuccess ToolStatus = "success"
	ToolError   ToolStatus = "error"
	ToolTimeout ToolStatus = "timeout"
)

// Final reports whether the tool invocation has finished.
func (s ToolStatus) Final() bool {
	return s == ToolSuccess || s == ToolError || s == ToolTimeout
}

// ToolExecution tracks one tool invocation's lifecycle, correlated by
// execution id. Created by tool_use, refined by tool_progress, finalized
// by exactly one of tool_result, tool_error, tool_timeout. A terminal
// event with no prior tool_use synthesizes the entry on the spot.
type ToolExecution struct {
	ExecutionID    string
	Tool           string
	Server         string
	Status         ToolStatus
	Input          json.RawMessage
	Output         json.RawMessage
	Error          string
	Progress       string
	TimeoutSeconds float64
	StartedAt      int64 // unix ms, 0 when synthesized by a terminal event
	EndedAt        int64 // unix ms, 0 while running
}

// ReasoningData is the derived reasoning snapshot: it is rebuilt from
// metadata, the phase-event list, and intent weights whenever enough
// information is available, never received whole from the wire.
type ReasoningData struct {
	Intent          string
	IntentWeights   map[string]float64
	IntentMethod    string
	IntentLatencyMS float64
	SearchChannels  map[string]int
	Phases          []PhaseEvent
}

// State is the fold accumulator for one streaming turn.
//
// Ownership: the Controller exclusively owns and mutates State for the
// lifetime of one request; on a new request it is discarded and rebuilt
// from scratch. Everything downstream receives read-only copies via
// Snapshot.
type State struct {
	// Answer text. Fed by token deltas or answer_chunk snapshots,
	// whichever revision of the protocol the server speaks.
	Answer string

	// Retrieval results. Citations, when present, supersede the
	// incrementally accumulated Sources.
	Sources   []sse.Source
	Citations map[int]sse.Source

	// Session and intent metadata.
	SessionID string
	Intent    string
	Metadata  map[string]any

	// Derived reasoning snapshot. Nil until first rebuilt.
	Reasoning *ReasoningData

	// Pipeline progress. CurrentPhase is the most recent in-progress
	// phase, nil when nothing is in flight. Phases is ordered by first
	// observation and deduplicated by phase name.
	CurrentPhase *PhaseEvent
	Phases       []PhaseEvent

	// Tool invocations keyed by execution id.
	Tools map[string]*ToolExecution

	// Activated skills in activation order, plus the last recorded
	// non-fatal skill failure.
	Skills     []string
	SkillError string

	// Liveness flags. Streaming covers the whole request; Emitting is
	// true once answer text has started arriving.
	Streaming bool
	Emitting  bool

	// TimeoutWarning flips when the soft threshold elapses. Advisory
	// only; the stream keeps running.
	TimeoutWarning bool

	// Err is the terminal error message, empty while healthy.
	Err string
}

// NewState returns the zero state for a fresh request.
func NewState() *State {
	return &State{
		Tools: make(map[string]*ToolExecution),
	}
}

// Snapshot returns a deep copy safe for observers to retain. The copy
// shares no mutable structure with the live state.
func (s *State) Snapshot() *State {
	cp := *s

	cp.Sources = slices.Clone(s.Sources)
	cp.Citations = maps.Clone(s.Citations)
	cp.Metadata = maps.Clone(s.Metadata)
	cp.Phases = clonePhases(s.Phases)
	cp.Skills = slices.Clone(s.Skills)

	if s.CurrentPhase != nil {
		p := clonePhase(*s.CurrentPhase)
		cp.CurrentPhase = &p
	}

	if s.Reasoning != nil {
		cp.Reasoning = s.Reasoning.clone()
	}

	cp.Tools = make(map[string]*ToolExecution, len(s.Tools))
	for id, t := range s.Tools {
		tc := *t
		cp.Tools[id] = &tc
	}

	return &cp
}

// HasAnswer reports whether any answer text has been produced. The
// fallback completion path treats a transport close as success only when
// this is true.
func (s *State) HasAnswer() bool {
	return s.Answer != ""
}

func (r *ReasoningData) clone() *ReasoningData {
	cp := *r
	cp.IntentWeights = maps.Clone(r.IntentWeights)
	cp.SearchChannels = maps.Clone(r.SearchChannels)
	cp.Phases = clonePhases(r.Phases)
	return &cp
}

func clonePhase(p PhaseEvent) PhaseEvent {
	if p.DurationMS != nil {
		d := *p.DurationMS
		p.DurationMS = &d
	}
	return p
}

func clonePhases(phases []PhaseEvent) []PhaseEvent {
	if phases == nil {
		return nil
	}
	out := make([]PhaseEvent, len(phases))
	for i, p := range phases {
		out[i] = clonePhase(p)
	}
	return out
}
