// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides utilities for testing swarms of agents.
//
// This package includes:
//   - Conversation scenarios for declarative multi-turn testing
//   - A scenario provider with scripted model responses
//   - Assertion helpers over turn histories and captured requests
//
// Example usage:
//
//	scenario := swarmtest.NewScenario("specialist answers").
//	    Say("my passport was stolen",
//	        swarmtest.ExpectHandoff("Coordinator", "Specialist"),
//	        swarmtest.ExpectOutput(swarmtest.Contains("embassy")))
//
//	result := scenario.Run(t, engine)
package testing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/swarm/pkg/errors"
	"github.com/jllopis/swarm/pkg/session"
	"github.com/jllopis/swarm/pkg/swarm"
)

// Sender runs one user turn against a session.
type Sender interface {
	Send(ctx context.Context, sessionID, text string) (*swarm.TurnResult, error)
}

// Scenario is a scripted conversation: a sequence of user messages sent
// to the same session, each with its own expectations.
type Scenario struct {
	name      string
	sessionID string
	timeout   time.Duration
	exchanges []exchange
}

type exchange struct {
	input        string
	expectations []Expectation
}

// Expectation defines a condition to verify after one exchange.
type Expectation interface {
	Check(result *swarm.TurnResult, err error) error
	Description() string
}

// ScenarioResult contains the outcome of every exchange.
type ScenarioResult struct {
	SessionID string
	Turns     []*swarm.TurnResult
	Errors    []error
	Duration  time.Duration
}

// NewScenario creates a new scenario with the given name.
func NewScenario(name string) *Scenario {
	return &Scenario{
		name:    name,
		timeout: 30 * time.Second,
	}
}

// WithSession pins the session id. A fresh id is used otherwise.
func (s *Scenario) WithSession(id string) *Scenario {
	s.sessionID = id
	return s
}

// WithTimeout bounds the whole scenario.
func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// Say appends a user message and the expectations for its turn.
func (s *Scenario) Say(input string, expectations ...Expectation) *Scenario {
	s.exchanges = append(s.exchanges, exchange{input: input, expectations: expectations})
	return s
}

// Run sends every message in order and checks its expectations.
func (s *Scenario) Run(t *testing.T, sender Sender) *ScenarioResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	id := s.sessionID
	if id == "" {
		id = session.NewID()
	}
	result := &ScenarioResult{SessionID: id}
	start := time.Now()
	for i, ex := range s.exchanges {
		res, err := sender.Send(ctx, id, ex.input)
		result.Turns = append(result.Turns, res)
		result.Errors = append(result.Errors, err)
		for _, exp := range ex.expectations {
			if cerr := exp.Check(res, err); cerr != nil {
				t.Errorf("scenario %q, turn %d (%q): %s: %v", s.name, i+1, ex.input, exp.Description(), cerr)
			}
		}
	}
	result.Duration = time.Since(start)
	return result
}

// StringMatcher matches strings for expectations.
type StringMatcher interface {
	Match(s string) bool
	Description() string
}

// Contains matches strings containing substr.
func Contains(substr string) StringMatcher {
	return &containsMatcher{substr: substr}
}

// Equals matches strings equal to expected.
func Equals(expected string) StringMatcher {
	return &equalsMatcher{expected: expected}
}

// Regex matches strings against pattern.
func Regex(pattern string) StringMatcher {
	return &regexMatcher{pattern: regexp.MustCompile(pattern)}
}

type containsMatcher struct{ substr string }

func (m *containsMatcher) Match(s string) bool { return strings.Contains(s, m.substr) }
func (m *containsMatcher) Description() string { return fmt.Sprintf("contains %q", m.substr) }

type equalsMatcher struct{ expected string }

func (m *equalsMatcher) Match(s string) bool { return s == m.expected }
func (m *equalsMatcher) Description() string { return fmt.Sprintf("equals %q", m.expected) }

type regexMatcher struct{ pattern *regexp.Regexp }

func (m *regexMatcher) Match(s string) bool { return m.pattern.MatchString(s) }
func (m *regexMatcher) Description() string { return fmt.Sprintf("matches %s", m.pattern) }

// ExpectationFunc adapts a function into an Expectation.
type ExpectationFunc struct {
	Desc string
	Fn   func(result *swarm.TurnResult, err error) error
}

// Check implements Expectation.
func (e ExpectationFunc) Check(result *swarm.TurnResult, err error) error { return e.Fn(result, err) }

// Description implements Expectation.
func (e ExpectationFunc) Description() string { return e.Desc }

func succeeded(result *swarm.TurnResult, err error) error {
	if err != nil {
		return fmt.Errorf("unexpected error: %w", err)
	}
	if result == nil {
		return fmt.Errorf("no result")
	}
	return nil
}

// ExpectNoError checks that the turn succeeded.
func ExpectNoError() Expectation {
	return ExpectationFunc{Desc: "no error", Fn: succeeded}
}

// ExpectErrorCode checks that the turn failed with code.
func ExpectErrorCode(code errors.ErrorCode) Expectation {
	return ExpectationFunc{Desc: "error " + string(code), Fn: func(_ *swarm.TurnResult, err error) error {
		if got := errors.CodeOf(err); got != code {
			return fmt.Errorf("got %q (%v)", got, err)
		}
		return nil
	}}
}

// ExpectOutput checks the final answer of the turn.
func ExpectOutput(m StringMatcher) Expectation {
	return ExpectationFunc{Desc: "output " + m.Description(), Fn: func(r *swarm.TurnResult, err error) error {
		if e := succeeded(r, err); e != nil {
			return e
		}
		if !m.Match(r.Result.Content) {
			return fmt.Errorf("got %q", r.Result.Content)
		}
		return nil
	}}
}

// ExpectActiveAgent checks the agent in control after the turn.
func ExpectActiveAgent(name string) Expectation {
	return ExpectationFunc{Desc: "active agent " + name, Fn: func(r *swarm.TurnResult, _ error) error {
		if r == nil || r.State == nil {
			return fmt.Errorf("no state")
		}
		if r.State.ActiveAgent != name {
			return fmt.Errorf("got %q", r.State.ActiveAgent)
		}
		return nil
	}}
}

// ExpectKinds checks the kinds of the turns appended after the user message.
func ExpectKinds(kinds ...session.Kind) Expectation {
	return ExpectationFunc{Desc: fmt.Sprintf("kinds %v", kinds), Fn: func(r *swarm.TurnResult, _ error) error {
		if r == nil {
			return fmt.Errorf("no result")
		}
		got := Kinds(r.Turns)
		if fmt.Sprint(got) != fmt.Sprint(kinds) {
			return fmt.Errorf("got %v", got)
		}
		return nil
	}}
}

// ExpectHandoff checks that the turn transferred control from -> to.
func ExpectHandoff(from, to string) Expectation {
	return ExpectationFunc{Desc: "handoff " + from + " -> " + to, Fn: func(r *swarm.TurnResult, _ error) error {
		if r == nil {
			return fmt.Errorf("no result")
		}
		for _, t := range r.Turns {
			if t.Handoff != nil && t.Handoff.From == from && t.Handoff.To == to {
				return nil
			}
		}
		return fmt.Errorf("not found in %v", Kinds(r.Turns))
	}}
}

// ExpectToolCall checks that the turn called the named tool.
func ExpectToolCall(name string) Expectation {
	return ExpectationFunc{Desc: "tool call " + name, Fn: func(r *swarm.TurnResult, _ error) error {
		if r == nil {
			return fmt.Errorf("no result")
		}
		for _, t := range r.Turns {
			if t.ToolCall != nil && t.ToolCall.Name == name {
				return nil
			}
		}
		return fmt.Errorf("not called")
	}}
}
