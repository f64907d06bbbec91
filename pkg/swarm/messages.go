// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package swarm

import (
	"fmt"

	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/llm"
	"github.com/jllopis/swarm/pkg/session"
)

// HandoffAck is the tool message shown to the model after a transfer.
func HandoffAck(target string) string {
	return "Successfully transferred to " + target
}

// BuildMessages renders the shared history for agent. Every turn is
// visible; text written by other agents is tagged with "[Name] ".
func BuildMessages(agent core.Agent, history []session.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	if agent.Prompt() != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: agent.Prompt()})
	}

	for _, t := range history {
		switch t.Kind {
		case session.KindUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Content})

		case session.KindAgent:
			content := t.Content
			if t.Agent != "" && t.Agent != agent.Name() {
				content = "[" + t.Agent + "] " + content
			}
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: content})

		case session.KindToolCall:
			if t.ToolCall == nil {
				continue
			}
			msgs = append(msgs, llm.Message{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID:       t.ToolCall.ID,
					Type:     llm.ToolTypeFunction,
					Function: llm.FunctionCall{Name: t.ToolCall.Name, Arguments: t.ToolCall.Arguments},
				}},
			})

		case session.KindToolResult:
			if t.ToolResult == nil {
				continue
			}
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				Content:    t.Content,
				ToolCallID: t.ToolResult.CallID,
				Name:       t.ToolResult.Name,
			})

		case session.KindHandoff:
			if t.Handoff == nil {
				continue
			}
			callID := t.Handoff.CallID
			if callID == "" {
				callID = fmt.Sprintf("handoff_%d", t.Seq)
			}
			name := core.HandoffToolName(t.Handoff.To)
			msgs = append(msgs,
				llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{llm.NewToolCall(callID, name, nil)}},
				llm.Message{Role: llm.RoleTool, Content: HandoffAck(t.Handoff.To), ToolCallID: callID, Name: name},
			)
		}
	}
	return msgs
}

// ToolDefinitions describes the capabilities of agent to the model.
func ToolDefinitions(agent core.Agent) []llm.Tool {
	caps := agent.Capabilities()
	if len(caps) == 0 {
		return nil
	}
	tools := make([]llm.Tool, 0, len(caps))
	for _, c := range caps {
		tools = append(tools, llm.FunctionTool(c.Name(), c.Description(), c.Schema()))
	}
	return tools
}
