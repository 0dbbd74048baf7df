// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sse decodes the orchestrator's streaming search responses.
//
// The package is split along single responsibilities:
//
//   - FrameDecoder: bytes → complete wire frames (handles chunk splits)
//   - EventParser: frame → typed Event (or end-of-stream, or parse failure)
//   - Event: the tagged union of everything the wire can carry
//
// Nothing in this package performs I/O, rendering, or state folding.
package sse

import "encoding/json"

// EventType discriminates the wire-level event variants.
//
// The orchestrator multiplexes several concerns over one stream: answer
// text, retrieved sources, pipeline progress, skill selection, tool
// execution, and terminal outcomes. New types may appear in future
// protocol revisions; consumers must treat unknown values as a no-op
// rather than an error.
type EventType string

const (
	// EventMetadata carries the session id, intent classification,
	// citation map, and an optional embedded reasoning sub-object.
	EventMetadata EventType = "metadata"

	// EventToken is an incremental answer text fragment (append).
	EventToken EventType = "token"

	// EventSource is one retrieved document to append to the source list.
	EventSource EventType = "source"

	// EventCitationMap is a complete citation-index → source map. When
	// present it supersedes sources accumulated via EventSource.
	EventCitationMap EventType = "citation_map"

	// EventAnswerChunk is a full answer-so-far snapshot (replace), used
	// by the newer protocol revision instead of token deltas.
	EventAnswerChunk EventType = "answer_chunk"

	// EventPhase reports one pipeline phase transition.
	EventPhase EventType = "phase_event"

	// EventReasoningComplete backfills a batch of finalized phase events
	// with duration data the live events lack.
	EventReasoningComplete EventType = "reasoning_complete"

	// Skill-selection lifecycle. The two activation spellings are both
	// live on the wire; they are treated identically.
	EventSkillActivated        EventType = "skill_activated"
	EventSkillActivation       EventType = "skill_activation"
	EventSkillActivationFailed EventType = "skill_activation_failed"

	// Tool-execution lifecycle, correlated by execution id.
	EventToolUse      EventType = "tool_use"
	EventToolProgress EventType = "tool_progress"
	EventToolResult   EventType = "tool_result"
	EventToolError    EventType = "tool_error"
	EventToolTimeout  EventType = "tool_timeout"

	// EventComplete is terminal success, carrying final metadata.
	EventComplete EventType = "complete"

	// EventError is terminal failure, carrying an error message.
	EventError EventType = "error"
)

// String returns the wire value of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsTerminal reports whether the event ends the turn.
func (t EventType) IsTerminal() bool {
	return t == EventComplete || t == EventError
}

// Source is one retrieved document or citation target.
type Source struct {
	Title     string  `json:"title,omitempty"`
	URL       string  `json:"url,omitempty"`
	Snippet   string  `json:"snippet,omitempty"`
	Namespace string  `json:"namespace,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

// PhaseInfo is the wire shape of one pipeline phase transition.
//
// Status is one of "in_progress", "completed", "failed", "skipped".
// DurationMS is only populated on finalized entries, and not always then:
// live phase events typically omit it and reasoning_complete backfills it.
type PhaseInfo struct {
	Phase      string   `json:"phase"`
	Status     string   `json:"status"`
	DurationMS *float64 `json:"duration_ms,omitempty"`
}

// ReasoningPayload is the reasoning sub-object embedded in metadata,
// answer_chunk, and complete events. All fields are optional; a partial
// payload must not erase previously observed values downstream.
type ReasoningPayload struct {
	Intent          string             `json:"intent,omitempty"`
	IntentWeights   map[string]float64 `json:"intent_weights,omitempty"`
	IntentMethod    string             `json:"intent_method,omitempty"`
	IntentLatencyMS float64            `json:"intent_latency_ms,omitempty"`
	SearchChannels  map[string]int     `json:"search_channels,omitempty"`
	Phases          []PhaseInfo        `json:"phases,omitempty"`
}

// Event is the parsed form of one data frame.
//
// It is a flat union: Type selects the variant and the other fields are
// populated as the variant requires. Fields irrelevant to a variant are
// left at their zero values. This mirrors the server's encoder, which
// writes one JSON object shape with omitempty throughout.
type Event struct {
	Type EventType `json:"type"`

	// Answer text. Content carries token deltas; Answer carries the
	// answer_chunk full snapshot. The two never appear in one stream.
	Content string `json:"content,omitempty"`
	Answer  string `json:"answer,omitempty"`

	// Retrieval results.
	Source    *Source           `json:"source,omitempty"`
	Citations map[string]Source `json:"citations,omitempty"`

	// Session and intent metadata.
	SessionID string            `json:"session_id,omitempty"`
	Intent    string            `json:"intent,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	Reasoning *ReasoningPayload `json:"reasoning,omitempty"`

	// Phase progress. Phase/Status/DurationMS are the live phase_event
	// fields; Phases is the reasoning_complete batch.
	Phase      string      `json:"phase,omitempty"`
	Status     string      `json:"status,omitempty"`
	DurationMS *float64    `json:"duration_ms,omitempty"`
	Phases     []PhaseInfo `json:"phases,omitempty"`

	// Skill selection.
	Skill string `json:"skill,omitempty"`

	// Tool execution lifecycle.
	ExecutionID    string          `json:"execution_id,omitempty"`
	Tool           string          `json:"tool,omitempty"`
	Server         string          `json:"server,omitempty"`
	Input          json.RawMessage `json:"input,omitempty"`
	Output         json.RawMessage `json:"output,omitempty"`
	Progress       string          `json:"progress,omitempty"`
	TimeoutSeconds float64         `json:"timeout,omitempty"`

	// Terminal error text (error, tool_error, skill_activation_failed).
	Error string `json:"error,omitempty"`

	// RequestID is echoed by the server when the request supplied one.
	RequestID string `json:"request_id,omitempty"`
}

// IsTerminal reports whether this event ends the turn.
func (e *Event) IsTerminal() bool {
	return e.Type.IsTerminal()
}
