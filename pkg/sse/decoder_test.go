// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sse

import (
	"reflect"
	"strings"
	"testing"
)

// =============================================================================
// Feed Tests
// =============================================================================

func TestFrameDecoder_SingleCompleteFrame(t *testing.T) {
	dec := NewFrameDecoder()
	frames := dec.Feed([]byte("data: {\"type\":\"token\"}\n"))
	want := []string{`data: {"type":"token"}`}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("Feed() = %v, want %v", frames, want)
	}
}

func TestFrameDecoder_MultipleFramesInOneChunk(t *testing.T) {
	dec := NewFrameDecoder()
	frames := dec.Feed([]byte("data: a\n\ndata: b\n"))
	want := []string{"data: a", "", "data: b"}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("Feed() = %v, want %v", frames, want)
	}
}

func TestFrameDecoder_FrameSplitAcrossChunks(t *testing.T) {
	dec := NewFrameDecoder()

	if frames := dec.Feed([]byte("data: {\"type\":\"tok")); frames != nil {
		t.Errorf("Incomplete frame should emit nothing, got %v", frames)
	}
	frames := dec.Feed([]byte("en\"}\n"))
	want := []string{`data: {"type":"token"}`}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("Feed() = %v, want %v", frames, want)
	}
}

func TestFrameDecoder_CRLFNormalized(t *testing.T) {
	dec := NewFrameDecoder()
	frames := dec.Feed([]byte("data: a\r\ndata: b\r\n"))
	want := []string{"data: a", "data: b"}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("CRLF frames = %v, want %v", frames, want)
	}
}

func TestFrameDecoder_CRLFSplitBetweenChunks(t *testing.T) {
	dec := NewFrameDecoder()
	if frames := dec.Feed([]byte("data: a\r")); frames != nil {
		t.Errorf("CR without LF should emit nothing, got %v", frames)
	}
	frames := dec.Feed([]byte("\n"))
	want := []string{"data: a"}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("Feed() = %v, want %v", frames, want)
	}
}

func TestFrameDecoder_EmptyChunk(t *testing.T) {
	dec := NewFrameDecoder()
	if frames := dec.Feed(nil); frames != nil {
		t.Errorf("Feed(nil) = %v, want nil", frames)
	}
	if frames := dec.Feed([]byte{}); frames != nil {
		t.Errorf("Feed(empty) = %v, want nil", frames)
	}
}

func TestFrameDecoder_MultiByteCharacterSplit(t *testing.T) {
	// "héllo" with the é (0xC3 0xA9) split between chunks.
	raw := []byte("data: h\xc3\xa9llo\n")
	splitAt := 8 // between 0xC3 and 0xA9

	dec := NewFrameDecoder()
	var frames []string
	frames = append(frames, dec.Feed(raw[:splitAt])...)
	frames = append(frames, dec.Feed(raw[splitAt:])...)

	want := []string{"data: héllo"}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("Split rune frames = %q, want %q", frames, want)
	}
}

// TestFrameDecoder_AnySplitYieldsSameFrames verifies that chunk
// boundaries never change the decoded frame sequence: every possible
// two-way split of a realistic stream decodes identically.
func TestFrameDecoder_AnySplitYieldsSameFrames(t *testing.T) {
	raw := []byte("data: {\"type\":\"metadata\",\"session_id\":\"s-1\"}\n" +
		"\n" +
		": keep-alive\n" +
		"data: {\"type\":\"token\",\"content\":\"héllo\"}\r\n" +
		"data: [DONE]\n")

	whole := NewFrameDecoder().Feed(raw)

	for i := 0; i <= len(raw); i++ {
		dec := NewFrameDecoder()
		var frames []string
		frames = append(frames, dec.Feed(raw[:i])...)
		frames = append(frames, dec.Feed(raw[i:])...)
		if !reflect.DeepEqual(frames, whole) {
			t.Fatalf("Split at %d changed frames:\n got %q\nwant %q", i, frames, whole)
		}
	}
}

func TestFrameDecoder_ByteAtATime(t *testing.T) {
	raw := "data: a\ndata: b\n\ndata: c\n"

	dec := NewFrameDecoder()
	var frames []string
	for i := 0; i < len(raw); i++ {
		frames = append(frames, dec.Feed([]byte{raw[i]})...)
	}

	want := []string{"data: a", "data: b", "", "data: c"}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("Byte-at-a-time frames = %v, want %v", frames, want)
	}
}

// =============================================================================
// Finish Tests
// =============================================================================

func TestFrameDecoder_Finish_CleanEnd(t *testing.T) {
	dec := NewFrameDecoder()
	dec.Feed([]byte("data: a\n"))

	if frame, ok := dec.Finish(); ok {
		t.Errorf("Finish() after clean end = (%q, true), want (_, false)", frame)
	}
}

func TestFrameDecoder_Finish_TrailingFrame(t *testing.T) {
	dec := NewFrameDecoder()
	dec.Feed([]byte("data: a\ndata: [DONE]"))

	frame, ok := dec.Finish()
	if !ok {
		t.Fatal("Finish() should return the unterminated frame")
	}
	if frame != "data: [DONE]" {
		t.Errorf("Finish() = %q, want %q", frame, "data: [DONE]")
	}
}

func TestFrameDecoder_Finish_TrailingCRStripped(t *testing.T) {
	dec := NewFrameDecoder()
	dec.Feed([]byte("data: tail\r"))

	frame, ok := dec.Finish()
	if !ok || frame != "data: tail" {
		t.Errorf("Finish() = (%q, %v), want (%q, true)", frame, ok, "data: tail")
	}
}

func TestFrameDecoder_Finish_EmptyDecoder(t *testing.T) {
	dec := NewFrameDecoder()
	if frame, ok := dec.Finish(); ok {
		t.Errorf("Finish() on empty decoder = (%q, true), want (_, false)", frame)
	}
}

func TestFrameDecoder_LongFrame(t *testing.T) {
	payload := strings.Repeat("x", 64*1024)
	dec := NewFrameDecoder()

	// Deliver in 1KB chunks.
	raw := []byte("data: " + payload + "\n")
	var frames []string
	for len(raw) > 0 {
		n := 1024
		if n > len(raw) {
			n = len(raw)
		}
		frames = append(frames, dec.Feed(raw[:n])...)
		raw = raw[n:]
	}

	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	if frames[0] != "data: "+payload {
		t.Error("Long frame content corrupted")
	}
}
