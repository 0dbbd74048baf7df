// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sse decodes the orchestrator's streaming search responses.
//
// This file contains the frame decoder, which reassembles complete wire
// frames from the byte chunks the transport happens to deliver.
package sse

import "bytes"

// FrameDecoder turns an ordered sequence of byte buffers into an ordered
// sequence of complete text frames.
//
// HTTP chunking splits the stream at arbitrary byte offsets, including
// mid-frame and mid-UTF-8-character. The decoder buffers the unterminated
// tail between Feed calls and only emits a frame once its terminating
// newline has been observed. Splitting a multi-byte character is safe
// because the decoder operates on bytes; the split character is made whole
// again inside the tail buffer before any string conversion happens.
//
// A FrameDecoder is single-use and not safe for concurrent use; the
// reader loop that owns the response body is the only feeder.
//
// Example:
//
//	dec := NewFrameDecoder()
//	frames := dec.Feed([]byte("data: {\"type\":\"tok"))
//	// frames is empty; the frame is incomplete
//	frames = dec.Feed([]byte("en\"}\n"))
//	// frames == []string{`data: {"type":"token"}`}
type FrameDecoder struct {
	tail []byte
}

// NewFrameDecoder creates an empty frame decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed appends a chunk of bytes and returns every frame completed by it.
//
// Frames are newline-terminated; a trailing carriage return is stripped
// so CRLF streams decode identically to LF streams. The newline that
// terminates an otherwise empty line yields an empty frame, which the
// event parser ignores as an event delimiter.
//
// Returns nil when the chunk completed no frame.
func (d *FrameDecoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}

	d.tail = append(d.tail, chunk...)

	var frames []string
	for {
		i := bytes.IndexByte(d.tail, '\n')
		if i < 0 {
			break
		}
		line := d.tail[:i]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		frames = append(frames, string(line))
		d.tail = d.tail[i+1:]
	}

	return frames
}

// Finish returns the trailing unterminated frame, if any.
//
// Call exactly once, after the transport has delivered its final chunk.
// A stream that ends cleanly (last frame newline-terminated) has no
// trailing frame and Finish reports false. A partial trailing frame that
// never received its terminator is still returned rather than dropped;
// the orchestrator flushes the [DONE] sentinel without a trailing
// newline under some proxies.
func (d *FrameDecoder) Finish() (string, bool) {
	if len(d.tail) == 0 {
		return "", false
	}
	line := d.tail
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	d.tail = nil
	return string(line), true
}
