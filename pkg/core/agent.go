// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"errors"
	"fmt"
	"strings"
)

// Agent is a named role with a static prompt and a bounded capability set.
// Agents are immutable once built; accessors return copies.
type Agent struct {
	name         string
	prompt       string
	capabilities []Capability
	index        map[string]Capability
}

// NewAgent validates and builds an Agent. Capability names must be unique.
func NewAgent(name, prompt string, capabilities ...Capability) (Agent, error) {
	if strings.TrimSpace(name) == "" {
		return Agent{}, errors.New("agent name is required")
	}
	a := Agent{
		name:         name,
		prompt:       prompt,
		capabilities: make([]Capability, 0, len(capabilities)),
		index:        make(map[string]Capability, len(capabilities)),
	}
	for _, c := range capabilities {
		if c == nil {
			return Agent{}, fmt.Errorf("agent %q: nil capability", name)
		}
		if _, dup := a.index[c.Name()]; dup {
			return Agent{}, fmt.Errorf("agent %q: duplicate capability %q", name, c.Name())
		}
		a.index[c.Name()] = c
		a.capabilities = append(a.capabilities, c)
	}
	return a, nil
}

// Name returns the unique agent identifier.
func (a Agent) Name() string { return a.name }

// Prompt returns the agent instruction text.
func (a Agent) Prompt() string { return a.prompt }

// Capabilities returns the capability set in declaration order.
func (a Agent) Capabilities() []Capability {
	return append([]Capability(nil), a.capabilities...)
}

// Capability looks up a capability by invocation name.
func (a Agent) Capability(name string) (Capability, bool) {
	c, ok := a.index[name]
	return c, ok
}

// Tools returns the domain tools of the agent.
func (a Agent) Tools() []*DomainTool {
	var out []*DomainTool
	for _, c := range a.capabilities {
		if t, ok := c.(*DomainTool); ok {
			out = append(out, t)
		}
	}
	return out
}

// Handoffs returns the handoff capabilities of the agent.
func (a Agent) Handoffs() []*Handoff {
	var out []*Handoff
	for _, c := range a.capabilities {
		if h, ok := c.(*Handoff); ok {
			out = append(out, h)
		}
	}
	return out
}

// IsZero reports whether a is the zero Agent.
func (a Agent) IsZero() bool { return a.name == "" }
