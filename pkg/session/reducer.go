// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session folds a stream of wire events into one coherent view.
//
// This file contains the state reducer: one case per event variant, with
// the merge rules that keep already-finalized sub-state from regressing
// when late or duplicate events arrive.
package session

import (
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/HalcyonAI/HalcyonFOSS/pkg/sse"
)

// defaultIntent is the generic classification the server falls back to.
// A previously observed specific intent always wins over this value.
const defaultIntent = "general"

// Reduce folds one event into the state.
//
// Events are applied strictly in wire order by the controller's reader
// loop; Reduce itself performs no locking, no I/O beyond debug logging,
// and no time-based decisions other than stamping tool lifecycle
// timestamps. Unknown event types are ignored for forward compatibility.
func Reduce(s *State, ev *sse.Event) {
	switch ev.Type {
	case sse.EventToken:
		s.Answer += ev.Content
		s.Emitting = true

	case sse.EventAnswerChunk:
		// Full answer-so-far snapshot: replace, never concatenate onto
		// prior deltas. Token and chunk modes are alternative producers
		// of the same field.
		s.Answer = ev.Answer
		s.Emitting = true
		mergeMetadata(s, ev)
		rebuildReasoning(s, ev.Reasoning)

	case sse.EventSource:
		// Incremental accumulation. Superseded wholesale by a citation
		// map for the same turn.
		if s.Citations == nil && ev.Source != nil {
			s.Sources = append(s.Sources, *ev.Source)
		}

	case sse.EventCitationMap:
		applyCitationMap(s, ev.Citations)

	case sse.EventMetadata:
		mergeMetadata(s, ev)
		if ev.Reasoning != nil {
			rebuildReasoning(s, ev.Reasoning)
		}

	case sse.EventPhase:
		mergePhase(s, PhaseEvent{
			Phase:      ev.Phase,
			Status:     PhaseStatus(ev.Status),
			DurationMS: ev.DurationMS,
		})

	case sse.EventReasoningComplete:
		// Backfill pass. Only finalized entries apply: the batch's
		// in_progress entries carry no duration and would erase real
		// timing data already recorded.
		for _, p := range ev.Phases {
			status := PhaseStatus(p.Status)
			if !status.Final() {
				continue
			}
			mergePhase(s, PhaseEvent{
				Phase:      p.Phase,
				Status:     status,
				DurationMS: p.DurationMS,
			})
		}

	case sse.EventSkillActivated, sse.EventSkillActivation:
		addSkill(s, ev.Skill)

	case sse.EventSkillActivationFailed:
		// Non-fatal: recorded on the state, the turn keeps streaming.
		s.SkillError = ev.Error
		slog.Warn("skill activation failed", "skill", ev.Skill, "error", ev.Error)

	case sse.EventToolUse:
		applyToolUse(s, ev)

	case sse.EventToolProgress:
		// Refine only; a progress report for an unknown execution id is
		// a no-op rather than a synthesized entry.
		if t, ok := s.Tools[ev.ExecutionID]; ok && !t.Status.Final() {
			t.Progress = ev.Progress
		}

	case sse.EventToolResult:
		finalizeTool(s, ev, ToolSuccess)

	case sse.EventToolError:
		finalizeTool(s, ev, ToolError)

	case sse.EventToolTimeout:
		finalizeTool(s, ev, ToolTimeout)

	case sse.EventComplete:
		mergeMetadata(s, ev)
		rebuildReasoning(s, ev.Reasoning)

	case sse.EventError:
		s.Err = ev.Error

	default:
		slog.Debug("ignoring unknown stream event type", "type", ev.Type)
	}
}

// mergeMetadata folds session id, intent, citation map, and the raw
// metadata object. A previously known session id is never overwritten by
// an event that omits one.
func mergeMetadata(s *State, ev *sse.Event) {
	if ev.SessionID != "" {
		s.SessionID = ev.SessionID
	}
	s.Intent = pickIntent(s.Intent, ev.Intent)
	if ev.Citations != nil {
		applyCitationMap(s, ev.Citations)
	}
	if len(ev.Metadata) > 0 {
		if s.Metadata == nil {
			s.Metadata = make(map[string]any, len(ev.Metadata))
		}
		for k, v := range ev.Metadata {
			s.Metadata[k] = v
		}
	}
}

// applyCitationMap installs a complete citation map and rederives the
// ordered source list by sorting the citation indexes numerically. This
// supersedes any sources accumulated incrementally for the same turn.
func applyCitationMap(s *State, citations map[string]sse.Source) {
	if len(citations) == 0 {
		return
	}

	parsed := make(map[int]sse.Source, len(citations))
	for key, src := range citations {
		idx, err := strconv.Atoi(key)
		if err != nil {
			slog.Warn("discarding non-numeric citation index", "index", key)
			continue
		}
		parsed[idx] = src
	}
	if len(parsed) == 0 {
		return
	}

	indexes := make([]int, 0, len(parsed))
	for idx := range parsed {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	sources := make([]sse.Source, 0, len(indexes))
	for _, idx := range indexes {
		sources = append(sources, parsed[idx])
	}

	s.Citations = parsed
	s.Sources = sources
}

// mergePhase merges one phase transition by phase name.
//
// Invariant: once a phase's stored status is completed or failed, no
// event may downgrade it. A later event for a finalized phase may only
// fill in a missing duration; everything else about it is discarded.
func mergePhase(s *State, incoming PhaseEvent) {
	if incoming.Phase == "" {
		return
	}

	idx := -1
	for i := range s.Phases {
		if s.Phases[i].Phase == incoming.Phase {
			idx = i
			break
		}
	}

	if idx < 0 {
		s.Phases = append(s.Phases, clonePhase(incoming))
	} else {
		existing := &s.Phases[idx]
		if existing.Status.Final() {
			if existing.DurationMS == nil && incoming.DurationMS != nil {
				d := *incoming.DurationMS
				existing.DurationMS = &d
			}
		} else {
			existing.Status = incoming.Status
			if incoming.DurationMS != nil {
				d := *incoming.DurationMS
				existing.DurationMS = &d
			}
		}
	}

	// Track the most recent in-flight phase for the progress display.
	switch {
	case incoming.Status == PhaseInProgress:
		p := clonePhase(incoming)
		s.CurrentPhase = &p
	case s.CurrentPhase != nil && s.CurrentPhase.Phase == incoming.Phase:
		s.CurrentPhase = nil
	}
}

// addSkill records a skill activation, deduplicated, in activation order.
func addSkill(s *State, skill string) {
	if skill == "" {
		return
	}
	for _, existing := range s.Skills {
		if existing == skill {
			return
		}
	}
	s.Skills = append(s.Skills, skill)
}

// applyToolUse creates a running tool execution entry. A duplicate
// tool_use for an id that already finished is discarded; for one still
// running it refines the descriptive fields.
func applyToolUse(s *State, ev *sse.Event) {
	if ev.ExecutionID == "" {
		return
	}

	if t, ok := s.Tools[ev.ExecutionID]; ok {
		if !t.Status.Final() {
			t.Tool = ev.Tool
			t.Server = ev.Server
			t.Input = ev.Input
		}
		return
	}

	s.Tools[ev.ExecutionID] = &ToolExecution{
		ExecutionID: ev.ExecutionID,
		Tool:        ev.Tool,
		Server:      ev.Server,
		Status:      ToolRunning,
		Input:       ev.Input,
		StartedAt:   time.Now().UnixMilli(),
	}
}

// finalizeTool records a terminal tool outcome. When no prior tool_use
// was seen for the execution id the entry is synthesized on the spot, so
// a finalized state exists rather than a dropped event. Only the first
// terminal event for an id wins.
func finalizeTool(s *State, ev *sse.Event, status ToolStatus) {
	if ev.ExecutionID == "" {
		return
	}

	t, ok := s.Tools[ev.ExecutionID]
	if !ok {
		t = &ToolExecution{
			ExecutionID: ev.ExecutionID,
			Tool:        ev.Tool,
			Server:      ev.Server,
		}
		s.Tools[ev.ExecutionID] = t
	}
	if t.Status.Final() {
		return
	}

	t.Status = status
	t.EndedAt = time.Now().UnixMilli()
	if len(ev.Output) > 0 {
		t.Output = ev.Output
	}
	if ev.Error != "" {
		t.Error = ev.Error
	}
	if ev.TimeoutSeconds > 0 {
		t.TimeoutSeconds = ev.TimeoutSeconds
	}
}

// rebuildReasoning rederives the reasoning snapshot from the freshest
// payload plus the accumulated phase list.
//
// Later rebuilds must not lose ground: auxiliary fields the newest
// partial payload lacks (search-channel breakdown, intent weights,
// method, latency) are carried forward from the previous snapshot, and a
// previously observed non-default intent beats a rebuild that fell back
// to the generic classification.
func rebuildReasoning(s *State, payload *sse.ReasoningPayload) {
	if payload != nil {
		for _, p := range payload.Phases {
			mergePhase(s, PhaseEvent{
				Phase:      p.Phase,
				Status:     PhaseStatus(p.Status),
				DurationMS: p.DurationMS,
			})
		}
	}

	prev := s.Reasoning
	next := &ReasoningData{
		Phases: clonePhases(s.Phases),
	}

	var incomingIntent string
	if payload != nil {
		incomingIntent = payload.Intent
		next.IntentWeights = payload.IntentWeights
		next.IntentMethod = payload.IntentMethod
		next.IntentLatencyMS = payload.IntentLatencyMS
		next.SearchChannels = payload.SearchChannels
	}

	if prev != nil {
		if next.IntentWeights == nil {
			next.IntentWeights = prev.IntentWeights
		}
		if next.IntentMethod == "" {
			next.IntentMethod = prev.IntentMethod
		}
		if next.IntentLatencyMS == 0 {
			next.IntentLatencyMS = prev.IntentLatencyMS
		}
		if next.SearchChannels == nil {
			next.SearchChannels = prev.SearchChannels
		}
	}

	var prevIntent string
	if prev != nil {
		prevIntent = prev.Intent
	}
	next.Intent = pickIntent(pickIntent(prevIntent, s.Intent), incomingIntent)

	s.Reasoning = next
	s.Intent = pickIntent(s.Intent, next.Intent)
}

// pickIntent prefers a specific classification over the generic default,
// and the incoming value over the previous one when both are specific.
func pickIntent(prev, incoming string) string {
	if incoming != "" && incoming != defaultIntent {
		return incoming
	}
	if prev != "" && prev != defaultIntent {
		return prev
	}
	if incoming != "" {
		return incoming
	}
	return prev
}
