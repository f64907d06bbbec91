// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package session models the shared conversation thread of a swarm: an
// append-only sequence of turns plus the name of the agent in control.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleTool  Role = "tool"
)

// Kind identifies the shape of a turn.
type Kind string

const (
	KindUser       Kind = "user"
	KindAgent      Kind = "agent"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindHandoff    Kind = "handoff"
)

// Phase is the position of a session in the control-transfer state machine.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseAgentActive Phase = "agent_active"
	PhaseToolPending Phase = "tool_pending"
	PhaseTerminal    Phase = "terminal"
)

// ToolCall records a domain tool invocation requested by an agent.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolResult records the outcome of a ToolCall.
type ToolResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handoff records a transfer of control between agents.
type Handoff struct {
	From   string `json:"from"`
	To     string `json:"to"`
	CallID string `json:"call_id,omitempty"`
}

// Turn is one immutable entry of the conversation history.
type Turn struct {
	ID         string      `json:"id"`
	Seq        int64       `json:"seq"`
	Kind       Kind        `json:"kind"`
	Role       Role        `json:"role"`
	Agent      string      `json:"agent,omitempty"`
	Content    string      `json:"content,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Handoff    *Handoff    `json:"handoff,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// UserTurn builds a user message turn.
func UserTurn(content string) Turn {
	return Turn{Kind: KindUser, Role: RoleUser, Content: content}
}

// AgentTurn builds a final answer (or interim text) produced by agent.
func AgentTurn(agent, content string) Turn {
	return Turn{Kind: KindAgent, Role: RoleAgent, Agent: agent, Content: content}
}

// ToolCallTurn builds the record of a tool invocation by agent.
func ToolCallTurn(agent string, call ToolCall) Turn {
	return Turn{Kind: KindToolCall, Role: RoleAgent, Agent: agent, ToolCall: &call}
}

// ToolResultTurn builds the record of a tool outcome.
func ToolResultTurn(agent string, result ToolResult) Turn {
	content := result.Output
	if result.Error != "" {
		content = "error: " + result.Error
	}
	return Turn{Kind: KindToolResult, Role: RoleTool, Agent: agent, Content: content, ToolResult: &result}
}

// HandoffTurn builds the marker of a transfer from one agent to another.
func HandoffTurn(from, to, callID string) Turn {
	return Turn{
		Kind:    KindHandoff,
		Role:    RoleAgent,
		Agent:   from,
		Content: from + " -> " + to,
		Handoff: &Handoff{From: from, To: to, CallID: callID},
	}
}

func (t Turn) clone() Turn {
	if t.ToolCall != nil {
		c := *t.ToolCall
		t.ToolCall = &c
	}
	if t.ToolResult != nil {
		r := *t.ToolResult
		t.ToolResult = &r
	}
	if t.Handoff != nil {
		h := *t.Handoff
		t.Handoff = &h
	}
	return t
}

// State is the resumable state of one conversation.
type State struct {
	ID          string    `json:"id"`
	ActiveAgent string    `json:"active_agent"`
	Phase       Phase     `json:"phase"`
	Turns       []Turn    `json:"turns"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewState seeds a session with its default agent.
func NewState(id, defaultAgent string) *State {
	now := time.Now().UTC()
	return &State{
		ID:          id,
		ActiveAgent: defaultAgent,
		Phase:       PhaseAgentActive,
		Turns:       []Turn{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// Append adds a turn at the tail of the history and returns it with its
// sequence number assigned. Sequence numbers start at 1 and never repeat.
func (s *State) Append(turn Turn) Turn {
	turn.Seq = s.LastSeq() + 1
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	s.Turns = append(s.Turns, turn)
	s.UpdatedAt = turn.CreatedAt
	return turn.clone()
}

// LastSeq returns the sequence number of the last turn, or 0.
func (s *State) LastSeq() int64 {
	if len(s.Turns) == 0 {
		return 0
	}
	return s.Turns[len(s.Turns)-1].Seq
}

// History returns a copy of the turns in order.
func (s *State) History() []Turn {
	out := make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		out[i] = t.clone()
	}
	return out
}

// Since returns the turns with a sequence number greater than seq.
func (s *State) Since(seq int64) []Turn {
	var out []Turn
	for _, t := range s.Turns {
		if t.Seq > seq {
			out = append(out, t.clone())
		}
	}
	return out
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Turns = s.History()
	return &c
}
