// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jllopis/swarm/pkg/errors"
	"github.com/jllopis/swarm/pkg/llm"
	"github.com/jllopis/swarm/pkg/session"
)

// Assertions provides assertion helpers for testing.
type Assertions struct {
	t      *testing.T
	failed bool
}

// NewAssertions creates a new assertions helper.
func NewAssertions(t *testing.T) *Assertions {
	return &Assertions{t: t}
}

// Failed returns true if any assertion has failed.
func (a *Assertions) Failed() bool {
	return a.failed
}

func (a *Assertions) errorf(format string, args ...any) {
	a.t.Helper()
	a.t.Errorf(format, args...)
	a.failed = true
}

// AssertEqual asserts that two values are equal.
func (a *Assertions) AssertEqual(expected, actual any, msg string) {
	a.t.Helper()
	if expected != actual {
		a.errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertContains asserts that the string contains the substring.
func (a *Assertions) AssertContains(s, substr, msg string) {
	a.t.Helper()
	if !strings.Contains(s, substr) {
		a.errorf("%s: %q does not contain %q", msg, s, substr)
	}
}

// AssertNoError asserts that the error is nil.
func (a *Assertions) AssertNoError(err error, msg string) {
	a.t.Helper()
	if err != nil {
		a.errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertErrorCode asserts that err carries code.
func (a *Assertions) AssertErrorCode(err error, code errors.ErrorCode, msg string) {
	a.t.Helper()
	if err == nil {
		a.errorf("%s: expected %s, got nil", msg, code)
		return
	}
	if got := errors.CodeOf(err); got != code {
		a.errorf("%s: expected %s, got %s (%v)", msg, code, got, err)
	}
}

// HistoryAssertions checks a turn sequence.
type HistoryAssertions struct {
	a     *Assertions
	turns []session.Turn
}

// AssertHistory starts a chain of checks over turns.
func (a *Assertions) AssertHistory(turns []session.Turn) *HistoryAssertions {
	return &HistoryAssertions{a: a, turns: turns}
}

// HasLen checks the number of turns.
func (h *HistoryAssertions) HasLen(n int) *HistoryAssertions {
	h.a.t.Helper()
	if len(h.turns) != n {
		h.a.errorf("history: expected %d turns, got %d:\n%s", n, len(h.turns), FormatHistory(h.turns))
	}
	return h
}

// HasKinds checks the exact sequence of turn kinds.
func (h *HistoryAssertions) HasKinds(kinds ...session.Kind) *HistoryAssertions {
	h.a.t.Helper()
	got := Kinds(h.turns)
	if len(got) != len(kinds) {
		h.a.errorf("history: expected kinds %v, got %v", kinds, got)
		return h
	}
	for i := range kinds {
		if got[i] != kinds[i] {
			h.a.errorf("history: expected kinds %v, got %v", kinds, got)
			return h
		}
	}
	return h
}

// HasMonotonicSeq checks that sequence numbers strictly increase.
func (h *HistoryAssertions) HasMonotonicSeq() *HistoryAssertions {
	h.a.t.Helper()
	for i := 1; i < len(h.turns); i++ {
		if h.turns[i].Seq <= h.turns[i-1].Seq {
			h.a.errorf("history: seq %d at %d after %d", h.turns[i].Seq, i, h.turns[i-1].Seq)
			return h
		}
	}
	return h
}

// TurnIs checks the agent and content of the turn at index i.
func (h *HistoryAssertions) TurnIs(i int, kind session.Kind, agent, contains string) *HistoryAssertions {
	h.a.t.Helper()
	if i < 0 || i >= len(h.turns) {
		h.a.errorf("history: no turn at %d (len %d)", i, len(h.turns))
		return h
	}
	turn := h.turns[i]
	if turn.Kind != kind {
		h.a.errorf("history[%d]: expected kind %s, got %s", i, kind, turn.Kind)
	}
	if agent != "" && turn.Agent != agent {
		h.a.errorf("history[%d]: expected agent %q, got %q", i, agent, turn.Agent)
	}
	if !strings.Contains(turn.Content, contains) {
		h.a.errorf("history[%d]: %q does not contain %q", i, turn.Content, contains)
	}
	return h
}

// HandoffAt checks that turn i records a transfer from -> to.
func (h *HistoryAssertions) HandoffAt(i int, from, to string) *HistoryAssertions {
	h.a.t.Helper()
	if i < 0 || i >= len(h.turns) || h.turns[i].Handoff == nil {
		h.a.errorf("history[%d]: expected handoff %s -> %s", i, from, to)
		return h
	}
	hf := h.turns[i].Handoff
	if hf.From != from || hf.To != to {
		h.a.errorf("history[%d]: expected handoff %s -> %s, got %s -> %s", i, from, to, hf.From, hf.To)
	}
	return h
}

// RequestAssertions provides fluent assertions for a captured ChatRequest.
type RequestAssertions struct {
	a   *Assertions
	req *llm.ChatRequest
}

// AssertRequest starts assertions on a request.
func (a *Assertions) AssertRequest(req *llm.ChatRequest) *RequestAssertions {
	a.t.Helper()
	if req == nil {
		a.errorf("request is nil")
	}
	return &RequestAssertions{a: a, req: req}
}

// HasSystemMessage checks that a system message contains the text.
func (r *RequestAssertions) HasSystemMessage(contains string) *RequestAssertions {
	r.a.t.Helper()
	if r.req == nil {
		return r
	}
	for _, m := range r.req.Messages {
		if m.Role == llm.RoleSystem && strings.Contains(m.Content, contains) {
			return r
		}
	}
	r.a.errorf("request: no system message contains %q", contains)
	return r
}

// HasMessage checks that a message of role contains the text.
func (r *RequestAssertions) HasMessage(role llm.Role, contains string) *RequestAssertions {
	r.a.t.Helper()
	if r.req == nil {
		return r
	}
	for _, m := range r.req.Messages {
		if m.Role == role && strings.Contains(m.Content, contains) {
			return r
		}
	}
	r.a.errorf("request: no %s message contains %q", role, contains)
	return r
}

// HasTool checks that a tool with the given name is offered.
func (r *RequestAssertions) HasTool(name string) *RequestAssertions {
	r.a.t.Helper()
	if r.req == nil {
		return r
	}
	for _, tool := range r.req.Tools {
		if tool.Function.Name == name {
			return r
		}
	}
	r.a.errorf("request: tool %q not offered", name)
	return r
}

// RequireNoError fails immediately if err is not nil.
func RequireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// RequireEqual fails immediately if values are not equal.
func RequireEqual(t *testing.T, expected, actual any, msg string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// Kinds returns the kind of each turn.
func Kinds(turns []session.Turn) []session.Kind {
	out := make([]session.Kind, len(turns))
	for i, t := range turns {
		out[i] = t.Kind
	}
	return out
}

// FormatHistory renders turns one per line for failure messages.
func FormatHistory(turns []session.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "  %d %s %s: %s\n", t.Seq, t.Kind, t.Agent, t.Content)
	}
	return sb.String()
}
