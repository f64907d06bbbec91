// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package swarm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/errors"
	"github.com/jllopis/swarm/pkg/llm"
)

// DecisionKind discriminates the outcome of one reasoning pass.
type DecisionKind string

const (
	// DecisionFinal is a plain text answer that ends the user turn.
	DecisionFinal DecisionKind = "final"
	// DecisionToolCall asks the engine to run one or more domain tools and
	// reason again with their results.
	DecisionToolCall DecisionKind = "tool_call"
	// DecisionHandoff transfers control to another agent, after running any
	// tool calls emitted in the same response.
	DecisionHandoff DecisionKind = "handoff"
)

// ToolAction is a domain tool invocation requested by the model.
type ToolAction struct {
	CallID    string
	Name      string
	Arguments string
	Tool      *core.DomainTool
}

// HandoffAction is a transfer of control requested by the model.
type HandoffAction struct {
	CallID string
	Target string
}

// Decision is the decoded form of a model response. Tools preserve the
// order in which the model emitted them.
type Decision struct {
	Kind    DecisionKind
	Content string
	Tools   []ToolAction
	Handoff *HandoffAction
}

// Final builds a final-answer decision.
func Final(content string) Decision {
	return Decision{Kind: DecisionFinal, Content: content}
}

// CallTools builds a tool-call decision.
func CallTools(actions ...ToolAction) Decision {
	return Decision{Kind: DecisionToolCall, Tools: actions}
}

// HandOff builds a handoff decision, optionally preceded by tool calls.
func HandOff(target string, actions ...ToolAction) Decision {
	return Decision{Kind: DecisionHandoff, Tools: actions, Handoff: &HandoffAction{Target: target}}
}

// Decode maps a model response onto a Decision using the capabilities of
// agent. Calls to capabilities the agent does not hold, invalid arguments,
// more than one handoff and empty responses are MALFORMED_OUTPUT.
func Decode(resp *llm.ChatResponse, agent core.Agent) (Decision, error) {
	if resp == nil {
		return Decision{}, malformed(agent.Name(), "empty model response")
	}
	d := Decision{Content: strings.TrimSpace(resp.Content)}

	for i, call := range resp.ToolCalls {
		name := call.Function.Name
		callID := call.ID
		if callID == "" {
			callID = fmt.Sprintf("call_%d", i+1)
		}
		capability, ok := agent.Capability(name)
		if !ok {
			return Decision{}, malformed(agent.Name(), "unknown capability "+name).
				WithContext("capability", name)
		}
		switch c := capability.(type) {
		case *core.Handoff:
			if d.Handoff != nil {
				return Decision{}, malformed(agent.Name(), "more than one handoff in a single response").
					WithContext("handoffs", []string{d.Handoff.Target, c.Target()})
			}
			d.Handoff = &HandoffAction{CallID: callID, Target: c.Target()}
		case *core.DomainTool:
			args := strings.TrimSpace(call.Function.Arguments)
			if args == "" {
				args = "{}"
			}
			if !json.Valid([]byte(args)) {
				return Decision{}, malformed(agent.Name(), "invalid arguments for "+name).
					WithContext("capability", name).
					WithContext("arguments", args)
			}
			d.Tools = append(d.Tools, ToolAction{CallID: callID, Name: name, Arguments: args, Tool: c})
		default:
			return Decision{}, malformed(agent.Name(), "unsupported capability kind "+string(capability.Kind()))
		}
	}

	switch {
	case d.Handoff != nil:
		d.Kind = DecisionHandoff
	case len(d.Tools) > 0:
		d.Kind = DecisionToolCall
	case d.Content != "":
		d.Kind = DecisionFinal
	default:
		return Decision{}, malformed(agent.Name(), "model returned neither content nor capability calls")
	}
	return d, nil
}

func malformed(agent, msg string) *errors.SwarmError {
	return errors.New(errors.CodeMalformedOutput, msg, nil).
		WithContext("agent", agent).
		WithAttribute("swarm.agent.name", agent).
		WithRecoverable(true)
}
