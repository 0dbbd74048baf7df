// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sse decodes the orchestrator's streaming search responses.
//
// This file contains the event parser, which classifies complete frames
// into typed events, the end-of-stream sentinel, or a recoverable parse
// failure.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Sentinels and Errors
// =============================================================================

// EndOfStreamSentinel is the literal payload that terminates the stream.
// It is not a JSON event; it arrives as `data: [DONE]`.
const EndOfStreamSentinel = "[DONE]"

// ErrEndOfStream is returned by ParseFrame when the end-of-stream
// sentinel is observed. The caller must stop consuming frames for the
// current request. Detect it with errors.Is.
var ErrEndOfStream = errors.New("sse: end of stream")

// ParseError reports a data frame whose JSON payload failed to
// deserialize. One malformed frame must not sacrifice an otherwise
// healthy long-lived stream, so callers log and skip rather than abort.
type ParseError struct {
	Frame string
	Err   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("sse: malformed data frame: %v", e.Err)
}

// Unwrap returns the underlying JSON error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Event Parser Interface
// =============================================================================

// EventParser classifies complete wire frames.
//
// Frame handling:
//
//   - Empty lines: (nil, nil) — event delimiters
//   - Comment lines (leading ":"): (nil, nil) — keep-alives
//   - Lines without the data prefix: (nil, nil) — unknown SSE fields,
//     ignored for forward compatibility
//   - "data: [DONE]": (nil, ErrEndOfStream)
//   - "data: {json}": (*Event, nil), or (nil, *ParseError) when the
//     payload is not valid JSON
//
// Implementations must be stateless and safe for concurrent use.
//
// Example:
//
//	parser := NewEventParser()
//	ev, err := parser.ParseFrame(`data: {"type":"token","content":"Hi"}`)
//	if err != nil {
//	    // errors.Is(err, ErrEndOfStream) or *ParseError
//	}
//	if ev != nil {
//	    fmt.Println(ev.Content) // "Hi"
//	}
type EventParser interface {
	// ParseFrame parses a single complete frame (no trailing newline).
	ParseFrame(frame string) (*Event, error)
}

// =============================================================================
// Event Parser Implementation
// =============================================================================

// dataPrefix is the SSE field prefix carrying event payloads. Both
// "data: " and "data:" (no space) appear in the wild; both are accepted.
const dataPrefix = "data:"

// eventParser implements EventParser. Stateless.
type eventParser struct{}

// NewEventParser creates a stateless event parser. The returned parser
// can be shared freely across stream sessions.
func NewEventParser() EventParser {
	return &eventParser{}
}

// ParseFrame parses a single complete frame.
func (p *eventParser) ParseFrame(frame string) (*Event, error) {
	line := strings.TrimSpace(frame)

	// Blank lines delimit events; comment lines are keep-alives.
	if line == "" || strings.HasPrefix(line, ":") {
		return nil, nil
	}

	// Only data fields carry events. Other SSE fields (event:, id:,
	// retry:) and any non-SSE noise are ignored, not treated as errors.
	if !strings.HasPrefix(line, dataPrefix) {
		return nil, nil
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == EndOfStreamSentinel {
		return nil, ErrEndOfStream
	}

	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, &ParseError{Frame: frame, Err: err}
	}

	return &ev, nil
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ EventParser = (*eventParser)(nil)
