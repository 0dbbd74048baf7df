// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// ============================================================================
// Personality levels
// ============================================================================

// PersonalityLevel controls how much decoration and commentary the CLI
// produces. Machine mode emits plain undecorated text suitable for piping.
type PersonalityLevel int

const (
	// PersonalityFull enables all decoration: colors, spinners, phase
	// commentary, and source listings.
	PersonalityFull PersonalityLevel = iota
	// PersonalityStandard keeps colors and progress but trims commentary.
	PersonalityStandard
	// PersonalityMinimal prints only the answer and errors, with color.
	PersonalityMinimal
	// PersonalityMachine prints plain text with no styling at all.
	PersonalityMachine
)

// String returns the canonical flag value for the level.
func (p PersonalityLevel) String() string {
	switch p {
	case PersonalityFull:
		return "full"
	case PersonalityStandard:
		return "standard"
	case PersonalityMinimal:
		return "minimal"
	case PersonalityMachine:
		return "machine"
	default:
		return "standard"
	}
}

// ParsePersonalityLevel converts a flag or config value into a level.
//
// # Inputs
//   - s: one of "full", "standard", "minimal", "machine" (case-insensitive)
//
// # Outputs
//   - PersonalityLevel: the parsed level
//   - error: if s is not a recognized level
func ParsePersonalityLevel(s string) (PersonalityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full":
		return PersonalityFull, nil
	case "standard", "":
		return PersonalityStandard, nil
	case "minimal":
		return PersonalityMinimal, nil
	case "machine":
		return PersonalityMachine, nil
	default:
		return PersonalityStandard, fmt.Errorf("unknown personality level %q (want full, standard, minimal, or machine)", s)
	}
}

var (
	personalityMu sync.RWMutex
	personality   = detectPersonality()
)

// detectPersonality picks a sensible default for the current terminal.
// Non-TTY output (pipes, CI) gets machine mode so downstream tools see
// clean text.
func detectPersonality() PersonalityLevel {
	if os.Getenv("NO_COLOR") != "" {
		return PersonalityMachine
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return PersonalityMachine
	}
	return PersonalityStandard
}

// GetPersonality returns the active personality level.
func GetPersonality() PersonalityLevel {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return personality
}

// SetPersonality overrides the active personality level.
func SetPersonality(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	personality = level
}

// Decorated reports whether styled output should be produced at all.
func Decorated() bool {
	return GetPersonality() != PersonalityMachine
}

// Chatty reports whether phase commentary and source listings should be
// shown.
func Chatty() bool {
	p := GetPersonality()
	return p == PersonalityFull || p == PersonalityStandard
}
