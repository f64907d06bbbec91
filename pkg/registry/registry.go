// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry maps agent names to their definitions.
//
// A Registry is populated once at startup and validated with Validate before
// the engine uses it. After that it is only read.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/errors"
)

// Registry holds the agents that may take part in a conversation.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
	order  []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{agents: make(map[string]core.Agent)}
}

// Register adds an agent. It fails with DUPLICATE_AGENT if the name is taken.
func (r *Registry) Register(agent core.Agent) error {
	if agent.IsZero() {
		return errors.New(errors.CodeInvalidInput, "agent name is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[agent.Name()]; exists {
		return errors.New(errors.CodeDuplicateAgent, "agent already registered", nil).
			WithContext("agent", agent.Name())
	}
	r.agents[agent.Name()] = agent
	r.order = append(r.order, agent.Name())
	return nil
}

// Define builds an agent from its parts and registers it.
func (r *Registry) Define(name, prompt string, capabilities ...core.Capability) error {
	agent, err := core.NewAgent(name, prompt, capabilities...)
	if err != nil {
		return errors.New(errors.CodeInvalidInput, "invalid agent definition", err).
			WithContext("agent", name)
	}
	return r.Register(agent)
}

// Resolve returns the agent registered under name or UNKNOWN_AGENT.
func (r *Registry) Resolve(name string) (core.Agent, error) {
	r.mu.RLock()
	agent, ok := r.agents[name]
	r.mu.RUnlock()
	if !ok {
		return core.Agent{}, UnknownAgent(name)
	}
	return agent, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// Names returns agent names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Validate checks that every handoff capability targets a registered agent.
// It reports all dangling targets in a single DANGLING_HANDOFF error.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var dangling []string
	for _, name := range r.order {
		for _, h := range r.agents[name].Handoffs() {
			if _, ok := r.agents[h.Target()]; !ok {
				dangling = append(dangling, name+"->"+h.Target())
			}
		}
	}
	if len(dangling) == 0 {
		return nil
	}
	sort.Strings(dangling)
	return errors.New(errors.CodeDanglingHandoff,
		"handoff targets not registered: "+strings.Join(dangling, ", "), nil).
		WithContext("handoffs", dangling)
}

// UnknownAgent builds the UNKNOWN_AGENT error for name.
func UnknownAgent(name string) *errors.SwarmError {
	return errors.New(errors.CodeUnknownAgent, "agent not registered: "+name, nil).
		WithContext("agent", name).
		WithAttribute("swarm.agent.name", name)
}
