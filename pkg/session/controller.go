// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session folds a stream of wire events into one coherent view.
//
// This file contains the stream session controller, which orchestrates
// one request end to end:
//
//	HTTP Response Body → FrameDecoder → EventParser → Reduce → observers
//
// The controller owns the cancellation token, arms and disarms the
// escalation timers, and drives the single reader loop per request.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HalcyonAI/HalcyonFOSS/pkg/metrics"
	"github.com/HalcyonAI/HalcyonFOSS/pkg/sse"
)

// streamPath is the orchestrator's streaming search endpoint.
const streamPath = "/v1/search/stream"

// maxErrorBodyBytes bounds how much of a non-200 response body is read
// for the error message.
const maxErrorBodyBytes = 8 << 10

// Config configures a Controller. Only BaseURL is required.
type Config struct {
	BaseURL       string                 // orchestrator URL, no trailing slash (required)
	Client        HTTPClient             // default: NewHTTPClient()
	Parser        sse.EventParser        // default: sse.NewEventParser()
	Callbacks     *Callbacks             // default: empty holder (settable later)
	Metrics       *metrics.StreamMetrics // optional
	WarnThreshold time.Duration          // default: DefaultWarnThreshold
	HardTimeout   time.Duration          // default: DefaultHardTimeout
}

// Options are the per-request knobs passed to Start.
//
// ResearchMode is an explicit request field rather than ambient client
// state, so two controllers never observe different effective requests
// for the same inputs.
type Options struct {
	SessionID    string
	Namespaces   []string
	ResearchMode bool
}

// streamRequest is the wire shape of the request body.
type streamRequest struct {
	ID           string   `json:"id"`
	CreatedAt    int64    `json:"created_at"`
	Query        string   `json:"query"`
	Mode         string   `json:"mode"`
	SessionID    string   `json:"session_id,omitempty"`
	Namespaces   []string `json:"namespaces,omitempty"`
	ResearchMode bool     `json:"research_mode,omitempty"`
}

// Controller runs at most one streaming search request at a time.
//
// On Start it resets the state to its zero value, issues the HTTP
// request with a fresh cancellation token, arms the escalation timers,
// and drives decoder → parser → reducer in one reader loop goroutine
// until end-of-stream, a terminal event, a transport error, or
// cancellation. Re-invoking Start first cancels the previous request and
// waits for its teardown.
//
// Observers read the live state through Snapshot; the internal State is
// never shared mutably. The turn-completed notification carries the
// latest folded state at the moment the terminal transition fired and is
// delivered exactly once per request, on completion or failure, never on
// cancellation.
type Controller struct {
	client    HTTPClient
	parser    sse.EventParser
	callbacks *Callbacks
	metrics   *metrics.StreamMetrics
	baseURL   string
	warnAfter time.Duration
	hardAfter time.Duration

	mu      sync.Mutex
	state   *State
	arbiter *Arbiter
	timer   *EscalationTimer
	cancel  context.CancelFunc
	done    chan struct{}
	result  *Result
}

// NewController creates a controller from config, applying defaults.
func NewController(cfg Config) *Controller {
	client := cfg.Client
	if client == nil {
		client = NewHTTPClient()
	}
	parser := cfg.Parser
	if parser == nil {
		parser = sse.NewEventParser()
	}
	callbacks := cfg.Callbacks
	if callbacks == nil {
		callbacks = &Callbacks{}
	}
	warn := cfg.WarnThreshold
	if warn <= 0 {
		warn = DefaultWarnThreshold
	}
	hard := cfg.HardTimeout
	if hard <= 0 {
		hard = DefaultHardTimeout
	}

	return &Controller{
		client:    client,
		parser:    parser,
		callbacks: callbacks,
		metrics:   cfg.Metrics,
		baseURL:   cfg.BaseURL,
		warnAfter: warn,
		hardAfter: hard,
		state:     NewState(),
		arbiter:   NewArbiter(),
	}
}

// Callbacks returns the mutable callback holder. Hooks installed on it
// take effect immediately, including for a stream already in flight.
func (c *Controller) Callbacks() *Callbacks {
	return c.callbacks
}

// Snapshot returns a read-only deep copy of the current state.
func (c *Controller) Snapshot() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Snapshot()
}

// TurnState returns the arbiter's current position.
func (c *Controller) TurnState() TurnState {
	c.mu.Lock()
	arb := c.arbiter
	c.mu.Unlock()
	return arb.State()
}

// Done returns a channel closed when the current request's reader loop
// has fully torn down. Nil before the first Start.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Result returns the terminal result of the last finished request, or
// nil while streaming (or after a cancellation, which produces none).
func (c *Controller) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Start begins streaming one query.
//
// Any previous in-flight request is cancelled and fully torn down first:
// a controller runs at most one active stream. Start returns once the
// reader loop has been launched; completion is observed via the
// turn-completed callback, Done, or Wait. Exactly one outbound network
// call is made per Start.
func (c *Controller) Start(ctx context.Context, query, mode string, opts Options) error {
	if query == "" {
		return fmt.Errorf("start stream: empty query")
	}
	if c.baseURL == "" {
		return fmt.Errorf("start stream: base URL not configured")
	}

	// Tear down the previous request before touching shared state.
	c.mu.Lock()
	prevCancel, prevDone, prevTimer := c.cancel, c.done, c.timer
	c.mu.Unlock()
	if prevTimer != nil {
		prevTimer.Disarm()
	}
	if prevCancel != nil {
		prevCancel()
	}
	if prevDone != nil {
		<-prevDone
	}

	requestID := uuid.New().String()
	reqCtx, cancel := context.WithCancel(ctx)

	st := NewState()
	st.Streaming = true
	arb := NewArbiter()
	arb.Begin()
	timer := NewEscalationTimer(c.warnAfter, c.hardAfter)
	done := make(chan struct{})

	c.mu.Lock()
	c.state = st
	c.arbiter = arb
	c.timer = timer
	c.cancel = cancel
	c.done = done
	c.result = nil
	c.mu.Unlock()

	body := streamRequest{
		ID:           requestID,
		CreatedAt:    time.Now().UnixMilli(),
		Query:        query,
		Mode:         mode,
		SessionID:    opts.SessionID,
		Namespaces:   opts.Namespaces,
		ResearchMode: opts.ResearchMode,
	}

	slog.Debug("starting streaming search",
		"request_id", requestID,
		"mode", mode,
		"session_id", opts.SessionID,
		"research_mode", opts.ResearchMode,
		"query_length", len(query),
	)

	c.metrics.SessionStarted()
	startedAt := time.Now()

	// The warn timer only flips the advisory flag; the hard timer records
	// the terminal timeout first and only then aborts the transport, so
	// the reader loop finds the latch already taken.
	timer.Arm(
		func() {
			c.mu.Lock()
			if c.state == st {
				st.TimeoutWarning = true
			}
			c.mu.Unlock()
			slog.Warn("stream exceeded soft threshold", "request_id", requestID)
			c.callbacks.fireWarning()
		},
		func() {
			slog.Error("stream exceeded hard timeout, aborting",
				"request_id", requestID,
				"threshold", c.hardAfter,
			)
			c.finishFail(st, arb, timer, startedAt, &TerminalError{
				Kind:    ErrKindTimeout,
				Message: fmt.Sprintf("no completion within %s", c.hardAfter),
			})
			cancel()
		},
	)

	go c.run(reqCtx, cancel, requestID, body, st, arb, timer, done, startedAt)
	return nil
}

// Cancel aborts the in-flight request, if any. Silent: the arbiter moves
// to TurnCancelled and no completion notification fires. Idempotent;
// teardown on caller disposal is the same path.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel, arb, timer := c.cancel, c.arbiter, c.timer
	c.mu.Unlock()

	if arb != nil {
		arb.Cancel()
	}
	if timer != nil {
		timer.Disarm()
	}
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current request reaches a terminal state or ctx
// expires, returning the terminal result (nil after cancellation).
func (c *Controller) Wait(ctx context.Context) (*Result, error) {
	done := c.Done()
	if done == nil {
		return nil, fmt.Errorf("wait: no request started")
	}
	select {
	case <-done:
		return c.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// =============================================================================
// Reader loop
// =============================================================================

// run is the single reader loop for one request. It owns the response
// body and suspends only on transport reads; parsing and reduction are
// synchronous within each resumed iteration.
func (c *Controller) run(
	ctx context.Context,
	cancel context.CancelFunc,
	requestID string,
	reqBody streamRequest,
	st *State,
	arb *Arbiter,
	timer *EscalationTimer,
	done chan struct{},
	startedAt time.Time,
) {
	defer close(done)
	defer cancel()
	defer timer.Disarm()

	payload, err := json.Marshal(reqBody)
	if err != nil {
		c.finishFail(st, arb, timer, startedAt, &TerminalError{
			Kind:    ErrKindTransport,
			Message: fmt.Sprintf("marshal request: %v", err),
		})
		return
	}

	resp, err := c.client.Post(ctx, c.baseURL+streamPath, "application/json", bytes.NewReader(payload))
	if err != nil {
		c.finishTransportError(ctx, st, arb, timer, startedAt, requestID, err)
		return
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Error("failed to close response body", "request_id", requestID, "error", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		msg := readErrorBody(resp)
		slog.Error("streaming search returned error status",
			"request_id", requestID,
			"status_code", resp.StatusCode,
			"response_body", msg,
		)
		c.finishFail(st, arb, timer, startedAt, &TerminalError{
			Kind:    ErrKindServer,
			Message: fmt.Sprintf("server error (%d): %s", resp.StatusCode, msg),
		})
		return
	}

	decoder := sse.NewFrameDecoder()
	buf := make([]byte, 4096)
	sessionNotified := false

	var readErr error
	terminal := false

readLoop:
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			for _, frame := range decoder.Feed(buf[:n]) {
				if c.handleFrame(requestID, frame, st, arb, timer, startedAt, &sessionNotified) {
					terminal = true
					break readLoop
				}
			}
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				readErr = rerr
			}
			break
		}
	}

	if terminal {
		return
	}

	// A partial trailing frame without its terminator still counts.
	if frame, ok := decoder.Finish(); ok {
		if c.handleFrame(requestID, frame, st, arb, timer, startedAt, &sessionNotified) {
			return
		}
	}

	if readErr != nil {
		c.finishTransportError(ctx, st, arb, timer, startedAt, requestID, readErr)
		return
	}

	// Transport closed with no terminal event. Treat as success when an
	// answer was produced (servers on the older protocol revision omit
	// the complete event); otherwise the connection dropped mid-turn.
	// Standing in for the missing complete event includes finalizing the
	// reasoning snapshot from the phases recorded so far.
	c.mu.Lock()
	hasAnswer := st.HasAnswer()
	if hasAnswer {
		rebuildReasoning(st, nil)
	}
	c.mu.Unlock()

	if hasAnswer {
		slog.Debug("stream closed without terminal event, completing with answer",
			"request_id", requestID)
		c.finishComplete(st, arb, timer, startedAt)
		return
	}
	c.finishFail(st, arb, timer, startedAt, &TerminalError{
		Kind:    ErrKindTransport,
		Message: "stream ended before any answer was produced",
	})
}

// handleFrame parses and folds one frame. Returns true when the turn
// reached a terminal point (sentinel, complete event, or error event).
func (c *Controller) handleFrame(
	requestID, frame string,
	st *State,
	arb *Arbiter,
	timer *EscalationTimer,
	startedAt time.Time,
	sessionNotified *bool,
) bool {
	ev, err := c.parser.ParseFrame(frame)
	if err != nil {
		if errors.Is(err, sse.ErrEndOfStream) {
			return c.handleStreamEnd(requestID, st, arb, timer, startedAt)
		}
		// One malformed frame must not kill a healthy stream.
		var parseErr *sse.ParseError
		if errors.As(err, &parseErr) {
			slog.Warn("skipping malformed stream frame",
				"request_id", requestID,
				"error", parseErr.Err,
			)
			c.metrics.ParseFailure()
			return false
		}
		slog.Warn("skipping unparseable stream frame", "request_id", requestID, "error", err)
		return false
	}
	if ev == nil {
		return false
	}

	if ev.Type == sse.EventToken {
		c.metrics.TokenReceived()
	}

	c.mu.Lock()
	Reduce(st, ev)
	newSession := ""
	if st.SessionID != "" && !*sessionNotified {
		*sessionNotified = true
		newSession = st.SessionID
	}
	c.mu.Unlock()

	if newSession != "" {
		slog.Debug("session id revealed by stream", "request_id", requestID, "session_id", newSession)
		c.callbacks.fireSession(newSession)
	}

	switch ev.Type {
	case sse.EventComplete:
		c.finishComplete(st, arb, timer, startedAt)
		return true
	case sse.EventError:
		slog.Error("stream reported terminal error", "request_id", requestID, "error", ev.Error)
		c.finishFail(st, arb, timer, startedAt, &TerminalError{
			Kind:    ErrKindServer,
			Message: ev.Error,
		})
		return true
	}
	return false
}

// handleStreamEnd resolves the end-of-stream sentinel arriving before
// any terminal event: the same fallback rule as a plain transport close.
func (c *Controller) handleStreamEnd(
	requestID string,
	st *State,
	arb *Arbiter,
	timer *EscalationTimer,
	startedAt time.Time,
) bool {
	c.mu.Lock()
	hasAnswer := st.HasAnswer()
	if hasAnswer {
		// The sentinel stands in for the complete event here, so the
		// reasoning snapshot is finalized before the result is built.
		rebuildReasoning(st, nil)
	}
	c.mu.Unlock()

	if hasAnswer {
		c.finishComplete(st, arb, timer, startedAt)
	} else {
		slog.Warn("stream ended without answer", "request_id", requestID)
		c.finishFail(st, arb, timer, startedAt, &TerminalError{
			Kind:    ErrKindTransport,
			Message: "stream ended before any answer was produced",
		})
	}
	return true
}

// =============================================================================
// Terminal transitions
// =============================================================================

// finishComplete attempts the completed transition and, when this call
// wins the race, notifies with the latest folded state.
func (c *Controller) finishComplete(st *State, arb *Arbiter, timer *EscalationTimer, startedAt time.Time) {
	timer.Disarm()

	var res *Result
	won := arb.Complete(func() {
		res = c.buildResult(st, TurnCompleted, nil)
	})
	if !won {
		return
	}

	c.metrics.TurnFinished(TurnCompleted.String(), time.Since(startedAt))
	c.callbacks.fireComplete(res)
}

// finishFail attempts the failed transition with the given terminal
// error, notifying once when this call wins.
func (c *Controller) finishFail(st *State, arb *Arbiter, timer *EscalationTimer, startedAt time.Time, terr *TerminalError) {
	timer.Disarm()

	var res *Result
	won := arb.Fail(func() {
		c.mu.Lock()
		if st.Err == "" {
			st.Err = terr.Message
		}
		c.mu.Unlock()
		res = c.buildResult(st, TurnFailed, terr)
	})
	if !won {
		return
	}

	c.metrics.TurnFinished(TurnFailed.String(), time.Since(startedAt))
	c.callbacks.fireComplete(res)
}

// finishTransportError distinguishes caller cancellation (silent) from a
// genuine transport failure.
func (c *Controller) finishTransportError(
	ctx context.Context,
	st *State,
	arb *Arbiter,
	timer *EscalationTimer,
	startedAt time.Time,
	requestID string,
	err error,
) {
	timer.Disarm()

	if ctx.Err() != nil {
		// Either Cancel() (arbiter already cancelled) or the hard timeout
		// (arbiter already failed). Both latched before cancelling the
		// context, so this is always a no-op transition.
		arb.Cancel()
		slog.Debug("stream read unblocked by cancellation", "request_id", requestID)
		return
	}

	slog.Error("stream transport failed", "request_id", requestID, "error", err)
	c.finishFail(st, arb, timer, startedAt, &TerminalError{
		Kind:    ErrKindTransport,
		Message: err.Error(),
	})
}

// buildResult snapshots the state and assembles the notification
// payload. The snapshot is taken at firing time, not at stream start.
func (c *Controller) buildResult(st *State, outcome TurnState, terr *TerminalError) *Result {
	c.mu.Lock()
	st.Streaming = false
	st.Emitting = false
	snap := st.Snapshot()
	res := &Result{
		Outcome:   outcome,
		State:     snap,
		SessionID: snap.SessionID,
		Answer:    snap.Answer,
		Err:       terr,
	}
	c.result = res
	c.mu.Unlock()
	return res
}

// readErrorBody extracts a bounded error message from a non-200 response.
func readErrorBody(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil || len(data) == 0 {
		return http.StatusText(resp.StatusCode)
	}
	return string(bytes.TrimSpace(data))
}
