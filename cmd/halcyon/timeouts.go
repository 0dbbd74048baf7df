// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import "time"

// Timeout constants define minimum and default values for CLI operations.
//
// These constants prevent accidental infinite hangs by ensuring all
// operations have a reasonable timeout even if misconfigured.
const (
	// MinHTTPTimeout is the absolute minimum for any HTTP operation.
	// Prevents accidental infinite hangs from zero timeouts.
	MinHTTPTimeout = 1 * time.Second

	// MinStreamTimeout is the absolute minimum for the streaming hard
	// timeout. A turn includes retrieval and synthesis, so anything
	// shorter than this aborts healthy requests.
	MinStreamTimeout = 5 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown of auxiliary
	// listeners such as the metrics endpoint.
	DefaultShutdownTimeout = 3 * time.Second
)

// EnforceMinTimeout returns at least the minimum timeout.
//
// # Description
//
// Ensures a timeout is never below the specified minimum. If the requested
// timeout is zero, negative, or below the minimum, returns the minimum
// instead. This prevents misconfiguration from causing infinite hangs.
//
// # Inputs
//
//   - requested: The timeout value requested by the caller
//   - minimum: The absolute minimum acceptable timeout
//
// # Outputs
//
//   - time.Duration: The requested timeout if valid, otherwise the minimum
func EnforceMinTimeout(requested, minimum time.Duration) time.Duration {
	if requested <= 0 || requested < minimum {
		return minimum
	}
	return requested
}

// EnforceDefaultTimeout returns the default if the requested is zero or
// negative.
//
// # Description
//
// Unlike EnforceMinTimeout, this only applies the default when the value
// is explicitly zero or negative. Useful when you want to allow any
// positive value but provide a sensible default.
//
// # Inputs
//
//   - requested: The timeout value requested by the caller
//   - def: The default timeout to use when unset
//
// # Outputs
//
//   - time.Duration: The requested timeout if positive, otherwise the default
func EnforceDefaultTimeout(requested, def time.Duration) time.Duration {
	if requested <= 0 {
		return def
	}
	return requested
}
