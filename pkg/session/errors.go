// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import "fmt"

// ErrorKind classifies terminal failures so callers can choose the right
// recovery surface. Only a timeout warrants an automatic "retry" offer;
// transport and server failures carry their own messages.
type ErrorKind int

const (
	// ErrKindTransport covers connection failures, mid-stream transport
	// errors, and streams that close before producing any answer.
	ErrKindTransport ErrorKind = iota

	// ErrKindServer covers non-2xx responses and explicit error events.
	ErrKindServer

	// ErrKindTimeout is the hard escalation threshold firing. Distinct
	// from a generic transport error so the caller can offer retry.
	ErrKindTimeout
)

// String returns a stable label for logging.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindTransport:
		return "transport"
	case ErrKindServer:
		return "server"
	case ErrKindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TerminalError is the failure recorded on a Failed terminal state.
type TerminalError struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *TerminalError) Error() string {
	return fmt.Sprintf("stream %s error: %s", e.Kind, e.Message)
}

// Timeout reports whether the failure was the hard escalation threshold.
func (e *TerminalError) Timeout() bool {
	return e.Kind == ErrKindTimeout
}
