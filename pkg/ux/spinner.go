// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ============================================================================
// Spinner
// ============================================================================

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner renders an animated progress indicator on a single terminal
// line. It is safe to update the message from another goroutine while
// the spinner is running. In machine personality the spinner is inert.
type Spinner struct {
	mu      sync.Mutex
	w       io.Writer
	message string
	active  bool
	stop    chan struct{}
	done    chan struct{}
	lastLen int
}

// NewSpinner creates a spinner writing to w with an initial message.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{w: w, message: message}
}

// Start begins the animation. Calling Start on a running spinner is a
// no-op.
func (s *Spinner) Start() {
	if !Decorated() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.spin(s.stop, s.done)
}

// SetMessage replaces the text shown next to the spinner frame.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop halts the animation and clears the spinner line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	s.clearLine()
}

func (s *Spinner) spin(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			line := fmt.Sprintf("%s %s",
				Styles.Highlight.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)
			s.render(line)
			frame++
		}
	}
}

func (s *Spinner) render(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s", line)
	// Pad over remnants of a longer previous line.
	if pad := s.lastLen - len(line); pad > 0 {
		fmt.Fprint(s.w, spaces(pad))
	}
	s.lastLen = len(line)
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastLen > 0 {
		fmt.Fprintf(s.w, "\r%s\r", spaces(s.lastLen))
		s.lastLen = 0
	}
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
