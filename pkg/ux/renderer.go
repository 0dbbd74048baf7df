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
	"sort"
	"strings"

	"github.com/HalcyonAI/HalcyonFOSS/pkg/session"
)

// ============================================================================
// StreamView
// ============================================================================

// StreamView incrementally renders snapshots of a streaming turn. The
// caller polls the session controller and hands each snapshot to Render;
// the view diffs it against what it already printed so the answer grows
// on screen as tokens arrive.
//
// StreamView is not safe for concurrent use; drive it from one goroutine.
type StreamView struct {
	w       io.Writer
	spinner *Spinner

	printed      string
	answerOpen   bool
	warned       bool
	seenSkills   map[string]bool
	seenTools    map[string]bool
	lastPhase    string
	sessionShown bool
}

// NewStreamView creates a view writing to w.
func NewStreamView(w io.Writer) *StreamView {
	return &StreamView{
		w:          w,
		spinner:    NewSpinner(w, "Thinking..."),
		seenSkills: make(map[string]bool),
		seenTools:  make(map[string]bool),
	}
}

// Render draws everything new in the snapshot since the previous call.
func (v *StreamView) Render(st *session.State) {
	if st == nil {
		return
	}

	if Chatty() {
		v.renderProgress(st)
	}

	if st.TimeoutWarning && !v.warned {
		v.warned = true
		v.breakLine()
		fmt.Fprintln(v.w, Styles.Warning.Render(
			fmt.Sprintf("%s Still working - this is taking longer than usual...", IconWarning)))
	}

	v.renderAnswer(st)
}

// renderProgress shows phase transitions, skill activations, and tool
// completions while the backend is still searching.
func (v *StreamView) renderProgress(st *session.State) {
	if st.CurrentPhase != nil && st.CurrentPhase.Phase != v.lastPhase && !v.answerOpen {
		v.lastPhase = st.CurrentPhase.Phase
		v.spinner.SetMessage(phaseMessage(st.CurrentPhase.Phase))
		v.spinner.Start()
	}

	for _, skill := range st.Skills {
		if v.seenSkills[skill] {
			continue
		}
		v.seenSkills[skill] = true
		v.breakLine()
		fmt.Fprintf(v.w, "%s %s\n", Styles.Subtitle.Render(string(IconArrow)),
			Styles.Muted.Render("skill: "+skill))
	}

	// Tools are reported once, when they reach a terminal status.
	ids := make([]string, 0, len(st.Tools))
	for id := range st.Tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		tool := st.Tools[id]
		if !tool.Status.Final() || v.seenTools[id] {
			continue
		}
		v.seenTools[id] = true
		v.breakLine()
		icon := IconSuccess
		if tool.Status != session.ToolSuccess {
			icon = IconError
		}
		fmt.Fprintf(v.w, "%s %s\n", icon.Render(),
			Styles.Muted.Render(fmt.Sprintf("%s (%s)", tool.Tool, tool.Status)))
	}
}

// renderAnswer prints the unseen tail of the answer. Chunked answers
// arrive as full replacements, so a snapshot that is not an extension of
// what we printed restarts the answer block.
func (v *StreamView) renderAnswer(st *session.State) {
	if st.Answer == "" {
		return
	}
	if !v.answerOpen {
		v.spinner.Stop()
		v.answerOpen = true
		if Decorated() {
			fmt.Fprintln(v.w)
		}
	}
	if strings.HasPrefix(st.Answer, v.printed) {
		fmt.Fprint(v.w, st.Answer[len(v.printed):])
	} else {
		fmt.Fprint(v.w, "\n"+st.Answer)
	}
	v.printed = st.Answer
}

// Finalize stops any in-flight animation and prints the turn's closing
// output: remaining answer text, the source listing, and errors.
func (v *StreamView) Finalize(res *session.Result) {
	v.spinner.Stop()
	if res == nil {
		return
	}

	if res.State != nil {
		v.renderAnswer(res.State)
	}
	if v.answerOpen {
		fmt.Fprintln(v.w)
	}

	switch res.Outcome {
	case session.TurnCompleted:
		if Chatty() && res.State != nil {
			v.renderSources(res.State)
		}
	case session.TurnFailed:
		msg := "the search failed"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		v.breakLine()
		fmt.Fprintln(v.w, Styles.ErrorBox.Render(
			fmt.Sprintf("%s %s", IconError.Render(), msg)))
	case session.TurnCancelled:
		if Decorated() {
			v.breakLine()
			fmt.Fprintln(v.w, Styles.Muted.Render("cancelled"))
		}
	}
}

func (v *StreamView) renderSources(st *session.State) {
	if len(st.Sources) == 0 {
		return
	}
	fmt.Fprintln(v.w)
	fmt.Fprintln(v.w, Styles.Subtitle.Render("Sources:"))
	for i, src := range st.Sources {
		title := src.Title
		if title == "" {
			title = src.URL
		}
		fmt.Fprintf(v.w, "  %s [%d] %s\n", Styles.Muted.Render(string(IconBullet)), i+1, title)
		if src.URL != "" && title != src.URL {
			fmt.Fprintf(v.w, "      %s\n", Styles.Muted.Render(src.URL))
		}
	}
}

// breakLine stops the spinner so one-shot lines do not collide with the
// animated line.
func (v *StreamView) breakLine() {
	if !v.answerOpen {
		v.spinner.Stop()
	}
}

func phaseMessage(phase string) string {
	switch phase {
	case "intent":
		return "Understanding your question..."
	case "retrieval", "search":
		return "Searching..."
	case "rerank":
		return "Ranking results..."
	case "synthesis", "generation":
		return "Writing the answer..."
	default:
		return strings.ReplaceAll(phase, "_", " ") + "..."
	}
}
