// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package core holds the shared vocabulary of the swarm: agents, their
// capabilities and the semantic events emitted while driving a conversation.
package core

import "context"

// Tool is a concrete domain function an agent may invoke.
type Tool interface {
	Name() string
	Call(ctx context.Context, input any) (any, error)
}

// CapabilityKind discriminates the capability variants.
type CapabilityKind string

const (
	// CapabilityTool is a domain tool executed by the engine.
	CapabilityTool CapabilityKind = "tool"
	// CapabilityHandoff transfers conversational control to a peer agent.
	CapabilityHandoff CapabilityKind = "handoff"
)

// Capability is something an agent can invoke during a reasoning pass.
// The only implementations are *DomainTool and *Handoff.
type Capability interface {
	Kind() CapabilityKind
	// Name is the identifier the model uses to invoke the capability.
	Name() string
	Description() string
	// Schema is the JSON Schema of the capability arguments.
	Schema() map[string]any
}
