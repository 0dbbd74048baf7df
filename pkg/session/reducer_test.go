// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HalcyonAI/HalcyonFOSS/pkg/sse"
)

func f64(v float64) *float64 { return &v }

// =============================================================================
// Answer Accumulation Tests
// =============================================================================

func TestReduce_TokensAppend(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventToken, Content: "Hello"})
	Reduce(st, &sse.Event{Type: sse.EventToken, Content: ", "})
	Reduce(st, &sse.Event{Type: sse.EventToken, Content: "world"})

	assert.Equal(t, "Hello, world", st.Answer)
	assert.True(t, st.Emitting)
}

func TestReduce_AnswerChunkReplaces(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventAnswerChunk, Answer: "The qui"})
	Reduce(st, &sse.Event{Type: sse.EventAnswerChunk, Answer: "The quick brown fox"})

	// Chunks are full snapshots, never concatenated.
	assert.Equal(t, "The quick brown fox", st.Answer)
	assert.True(t, st.Emitting)
}

func TestReduce_ChunkAfterTokensReplaces(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventToken, Content: "partial"})
	Reduce(st, &sse.Event{Type: sse.EventAnswerChunk, Answer: "authoritative text"})

	assert.Equal(t, "authoritative text", st.Answer)
}

// =============================================================================
// Source and Citation Tests
// =============================================================================

func TestReduce_SourcesAccumulate(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventSource, Source: &sse.Source{Title: "A"}})
	Reduce(st, &sse.Event{Type: sse.EventSource, Source: &sse.Source{Title: "B"}})

	require.Len(t, st.Sources, 2)
	assert.Equal(t, "A", st.Sources[0].Title)
	assert.Equal(t, "B", st.Sources[1].Title)
}

func TestReduce_CitationMapSupersedesSources(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventSource, Source: &sse.Source{Title: "incremental"}})
	Reduce(st, &sse.Event{Type: sse.EventCitationMap, Citations: map[string]sse.Source{
		"2":  {Title: "second"},
		"10": {Title: "tenth"},
		"1":  {Title: "first"},
	}})

	// Ordered by numeric index, not lexicographic ("10" after "2").
	require.Len(t, st.Sources, 3)
	assert.Equal(t, []string{"first", "second", "tenth"},
		[]string{st.Sources[0].Title, st.Sources[1].Title, st.Sources[2].Title})
	require.Len(t, st.Citations, 3)
	assert.Equal(t, "tenth", st.Citations[10].Title)
}

func TestReduce_SourceIgnoredAfterCitationMap(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventCitationMap, Citations: map[string]sse.Source{
		"1": {Title: "mapped"},
	}})
	Reduce(st, &sse.Event{Type: sse.EventSource, Source: &sse.Source{Title: "late straggler"}})

	require.Len(t, st.Sources, 1)
	assert.Equal(t, "mapped", st.Sources[0].Title)
}

func TestReduce_CitationMapNonNumericKeysDropped(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventCitationMap, Citations: map[string]sse.Source{
		"1":     {Title: "kept"},
		"bogus": {Title: "dropped"},
	}})

	require.Len(t, st.Sources, 1)
	assert.Equal(t, "kept", st.Sources[0].Title)
}

func TestReduce_EmptyCitationMapIsNoOp(t *testing.T) {
	st := NewState()
	Reduce(st, &sse.Event{Type: sse.EventSource, Source: &sse.Source{Title: "A"}})

	Reduce(st, &sse.Event{Type: sse.EventCitationMap, Citations: map[string]sse.Source{}})

	assert.Len(t, st.Sources, 1)
	assert.Nil(t, st.Citations)
}

// =============================================================================
// Metadata Tests
// =============================================================================

func TestReduce_MetadataSessionID(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventMetadata, SessionID: "sess-1"})
	assert.Equal(t, "sess-1", st.SessionID)

	// A later event without a session id must not erase the known one.
	Reduce(st, &sse.Event{Type: sse.EventMetadata, Intent: "technical"})
	assert.Equal(t, "sess-1", st.SessionID)
}

func TestReduce_MetadataMapMerged(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventMetadata, Metadata: map[string]any{"a": 1}})
	Reduce(st, &sse.Event{Type: sse.EventMetadata, Metadata: map[string]any{"b": 2}})

	assert.Equal(t, 1, st.Metadata["a"])
	assert.Equal(t, 2, st.Metadata["b"])
}

func TestReduce_IntentPreference(t *testing.T) {
	tests := []struct {
		name     string
		sequence []string
		want     string
	}{
		{"specific beats default", []string{"technical", "general"}, "technical"},
		{"default then specific", []string{"general", "technical"}, "technical"},
		{"newer specific wins", []string{"technical", "navigational"}, "navigational"},
		{"default accepted when alone", []string{"general"}, "general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState()
			for _, intent := range tt.sequence {
				Reduce(st, &sse.Event{Type: sse.EventMetadata, Intent: intent})
			}
			assert.Equal(t, tt.want, st.Intent)
		})
	}
}

// =============================================================================
// Phase Monotonicity Tests
// =============================================================================

func TestReduce_PhaseLifecycle(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventPhase, Phase: "retrieval", Status: "in_progress"})
	require.NotNil(t, st.CurrentPhase)
	assert.Equal(t, "retrieval", st.CurrentPhase.Phase)

	Reduce(st, &sse.Event{Type: sse.EventPhase, Phase: "retrieval", Status: "completed", DurationMS: f64(812)})
	assert.Nil(t, st.CurrentPhase)

	require.Len(t, st.Phases, 1)
	assert.Equal(t, PhaseCompleted, st.Phases[0].Status)
	require.NotNil(t, st.Phases[0].DurationMS)
	assert.Equal(t, 812.0, *st.Phases[0].DurationMS)
}

func TestReduce_PhaseNeverRegresses(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventPhase, Phase: "rerank", Status: "completed", DurationMS: f64(100)})
	Reduce(st, &sse.Event{Type: sse.EventPhase, Phase: "rerank", Status: "in_progress"})

	require.Len(t, st.Phases, 1)
	assert.Equal(t, PhaseCompleted, st.Phases[0].Status)
	// The duplicate's missing duration must not erase the recorded one.
	require.NotNil(t, st.Phases[0].DurationMS)
	assert.Equal(t, 100.0, *st.Phases[0].DurationMS)
}

func TestReduce_PhaseDurationBackfill(t *testing.T) {
	st := NewState()

	// Finalized without duration, then a later event supplies it.
	Reduce(st, &sse.Event{Type: sse.EventPhase, Phase: "synthesis", Status: "completed"})
	require.Nil(t, st.Phases[0].DurationMS)

	Reduce(st, &sse.Event{Type: sse.EventPhase, Phase: "synthesis", Status: "completed", DurationMS: f64(50)})
	require.NotNil(t, st.Phases[0].DurationMS)
	assert.Equal(t, 50.0, *st.Phases[0].DurationMS)
}

func TestReduce_PhasesOrderedByFirstObservation(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventPhase, Phase: "intent", Status: "in_progress"})
	Reduce(st, &sse.Event{Type: sse.EventPhase, Phase: "retrieval", Status: "in_progress"})
	Reduce(st, &sse.Event{Type: sse.EventPhase, Phase: "intent", Status: "completed"})

	require.Len(t, st.Phases, 2)
	assert.Equal(t, "intent", st.Phases[0].Phase)
	assert.Equal(t, "retrieval", st.Phases[1].Phase)
}

func TestReduce_ReasoningCompleteBackfillsOnlyFinal(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventPhase, Phase: "retrieval", Status: "completed", DurationMS: f64(200)})

	Reduce(st, &sse.Event{Type: sse.EventReasoningComplete, Phases: []sse.PhaseInfo{
		{Phase: "retrieval", Status: "in_progress"}, // stale, must not regress
		{Phase: "synthesis", Status: "completed", DurationMS: f64(900)},
		{Phase: "pending", Status: "in_progress"}, // non-final, skipped
	}})

	require.Len(t, st.Phases, 2)
	assert.Equal(t, PhaseCompleted, st.Phases[0].Status)
	assert.Equal(t, 200.0, *st.Phases[0].DurationMS)
	assert.Equal(t, "synthesis", st.Phases[1].Phase)
	assert.Equal(t, 900.0, *st.Phases[1].DurationMS)
}

// =============================================================================
// Skill Tests
// =============================================================================

func TestReduce_SkillsDeduplicated(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventSkillActivated, Skill: "code_search"})
	Reduce(st, &sse.Event{Type: sse.EventSkillActivation, Skill: "summarize"})
	Reduce(st, &sse.Event{Type: sse.EventSkillActivated, Skill: "code_search"})

	assert.Equal(t, []string{"code_search", "summarize"}, st.Skills)
}

func TestReduce_SkillFailureIsNonFatal(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventSkillActivationFailed, Skill: "plugin", Error: "not installed"})

	assert.Equal(t, "not installed", st.SkillError)
	assert.Empty(t, st.Err, "skill failure must not mark the turn failed")
}

// =============================================================================
// Tool Lifecycle Tests
// =============================================================================

func TestReduce_ToolLifecycle(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{
		Type: sse.EventToolUse, ExecutionID: "ex-1",
		Tool: "web_search", Server: "mcp-1", Input: []byte(`{"q":"x"}`),
	})
	tool := st.Tools["ex-1"]
	require.NotNil(t, tool)
	assert.Equal(t, ToolRunning, tool.Status)
	assert.NotZero(t, tool.StartedAt)

	Reduce(st, &sse.Event{Type: sse.EventToolProgress, ExecutionID: "ex-1", Progress: "fetching"})
	assert.Equal(t, "fetching", tool.Progress)

	Reduce(st, &sse.Event{Type: sse.EventToolResult, ExecutionID: "ex-1", Output: []byte(`{"hits":3}`)})
	assert.Equal(t, ToolSuccess, tool.Status)
	assert.NotZero(t, tool.EndedAt)
	assert.JSONEq(t, `{"hits":3}`, string(tool.Output))
}

func TestReduce_ToolFirstTerminalWins(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventToolUse, ExecutionID: "ex-1", Tool: "t"})
	Reduce(st, &sse.Event{Type: sse.EventToolError, ExecutionID: "ex-1", Error: "boom"})
	Reduce(st, &sse.Event{Type: sse.EventToolResult, ExecutionID: "ex-1", Output: []byte(`{}`)})

	assert.Equal(t, ToolError, st.Tools["ex-1"].Status)
	assert.Equal(t, "boom", st.Tools["ex-1"].Error)
}

func TestReduce_ToolTerminalSynthesizesEntry(t *testing.T) {
	st := NewState()

	// tool_timeout with no prior tool_use.
	Reduce(st, &sse.Event{Type: sse.EventToolTimeout, ExecutionID: "ex-9", Tool: "slow_tool", TimeoutSeconds: 30})

	tool := st.Tools["ex-9"]
	require.NotNil(t, tool)
	assert.Equal(t, ToolTimeout, tool.Status)
	assert.Equal(t, "slow_tool", tool.Tool)
	assert.Equal(t, 30.0, tool.TimeoutSeconds)
	assert.Zero(t, tool.StartedAt)
}

func TestReduce_ToolProgressUnknownIDIsNoOp(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventToolProgress, ExecutionID: "ghost", Progress: "50%"})

	assert.Empty(t, st.Tools)
}

func TestReduce_ToolEventsWithoutIDIgnored(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventToolUse, Tool: "orphan"})
	Reduce(st, &sse.Event{Type: sse.EventToolResult})

	assert.Empty(t, st.Tools)
}

// =============================================================================
// Reasoning Rebuild Tests
// =============================================================================

func TestReduce_ReasoningCarryForward(t *testing.T) {
	st := NewState()

	// First payload carries everything.
	Reduce(st, &sse.Event{Type: sse.EventMetadata, Reasoning: &sse.ReasoningPayload{
		Intent:          "technical",
		IntentWeights:   map[string]float64{"technical": 0.9},
		IntentMethod:    "classifier",
		IntentLatencyMS: 12.5,
		SearchChannels:  map[string]int{"vector": 8, "keyword": 4},
	}})

	// Later partial payload omits the auxiliary fields and falls back to
	// the generic intent.
	Reduce(st, &sse.Event{Type: sse.EventAnswerChunk, Answer: "x", Reasoning: &sse.ReasoningPayload{
		Intent: "general",
	}})

	r := st.Reasoning
	require.NotNil(t, r)
	assert.Equal(t, "technical", r.Intent, "specific intent survives a generic rebuild")
	assert.Equal(t, map[string]float64{"technical": 0.9}, r.IntentWeights)
	assert.Equal(t, "classifier", r.IntentMethod)
	assert.Equal(t, 12.5, r.IntentLatencyMS)
	assert.Equal(t, map[string]int{"vector": 8, "keyword": 4}, r.SearchChannels)
}

func TestReduce_ReasoningPhasesMergedIntoState(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventComplete, Reasoning: &sse.ReasoningPayload{
		Phases: []sse.PhaseInfo{
			{Phase: "retrieval", Status: "completed", DurationMS: f64(300)},
		},
	}})

	require.Len(t, st.Phases, 1)
	assert.Equal(t, "retrieval", st.Phases[0].Phase)
	require.NotNil(t, st.Reasoning)
	require.Len(t, st.Reasoning.Phases, 1)
}

func TestReduce_CompleteWithoutReasoningKeepsSnapshot(t *testing.T) {
	st := NewState()

	Reduce(st, &sse.Event{Type: sse.EventMetadata, Reasoning: &sse.ReasoningPayload{
		SearchChannels: map[string]int{"vector": 2},
	}})
	Reduce(st, &sse.Event{Type: sse.EventComplete, SessionID: "s-1"})

	require.NotNil(t, st.Reasoning)
	assert.Equal(t, map[string]int{"vector": 2}, st.Reasoning.SearchChannels)
	assert.Equal(t, "s-1", st.SessionID)
}

// =============================================================================
// Terminal and Unknown Event Tests
// =============================================================================

func TestReduce_ErrorEventRecordsMessage(t *testing.T) {
	st := NewState()
	Reduce(st, &sse.Event{Type: sse.EventError, Error: "index unavailable"})
	assert.Equal(t, "index unavailable", st.Err)
}

func TestReduce_UnknownEventIgnored(t *testing.T) {
	st := NewState()
	before := *st

	Reduce(st, &sse.Event{Type: sse.EventType("future_thing"), Content: "???"})

	assert.Equal(t, before.Answer, st.Answer)
	assert.Empty(t, st.Err)
}

// =============================================================================
// Snapshot Tests
// =============================================================================

func TestState_SnapshotIsDeepCopy(t *testing.T) {
	st := NewState()
	Reduce(st, &sse.Event{Type: sse.EventToken, Content: "hello"})
	Reduce(st, &sse.Event{Type: sse.EventSource, Source: &sse.Source{Title: "A"}})
	Reduce(st, &sse.Event{Type: sse.EventPhase, Phase: "retrieval", Status: "in_progress"})
	Reduce(st, &sse.Event{Type: sse.EventToolUse, ExecutionID: "ex-1", Tool: "t"})
	Reduce(st, &sse.Event{Type: sse.EventMetadata, Metadata: map[string]any{"k": "v"}})

	snap := st.Snapshot()

	// Keep folding into the live state; the snapshot must not move.
	Reduce(st, &sse.Event{Type: sse.EventToken, Content: " more"})
	Reduce(st, &sse.Event{Type: sse.EventSource, Source: &sse.Source{Title: "B"}})
	Reduce(st, &sse.Event{Type: sse.EventToolResult, ExecutionID: "ex-1"})
	st.Metadata["k"] = "changed"
	st.Phases[0].Status = PhaseFailed

	assert.Equal(t, "hello", snap.Answer)
	assert.Len(t, snap.Sources, 1)
	assert.Equal(t, ToolRunning, snap.Tools["ex-1"].Status)
	assert.Equal(t, "v", snap.Metadata["k"])
	assert.Equal(t, PhaseInProgress, snap.Phases[0].Status)
}

func TestState_HasAnswer(t *testing.T) {
	st := NewState()
	assert.False(t, st.HasAnswer())

	Reduce(st, &sse.Event{Type: sse.EventToken, Content: "x"})
	assert.True(t, st.HasAnswer())
}
