// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package swarm

import (
	"context"
	"testing"

	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/errors"
	"github.com/jllopis/swarm/pkg/llm"
	"github.com/jllopis/swarm/pkg/session"
)

func testAgent(t *testing.T) core.Agent {
	t.Helper()
	lookup := core.MustDomainTool("lookup", "look things up", nil, func(context.Context, map[string]any) (any, error) {
		return "ok", nil
	})
	agent, err := core.NewAgent("Coordinator", "Route the traveler.",
		lookup,
		core.NewHandoff("Medical Advisor", "Health questions"),
		core.NewHandoff("Security Analyst", ""),
	)
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	return agent
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Type: llm.ToolTypeFunction, Function: llm.FunctionCall{Name: name, Arguments: args}}
}

func TestDecode(t *testing.T) {
	agent := testAgent(t)

	tests := []struct {
		name     string
		resp     *llm.ChatResponse
		kind     DecisionKind
		tools    int
		target   string
		wantCode errors.ErrorCode
	}{
		{name: "final", resp: &llm.ChatResponse{Content: " hello "}, kind: DecisionFinal},
		{name: "tool", resp: &llm.ChatResponse{ToolCalls: []llm.ToolCall{call("1", "lookup", `{"q":"x"}`)}}, kind: DecisionToolCall, tools: 1},
		{name: "tool with empty args", resp: &llm.ChatResponse{ToolCalls: []llm.ToolCall{call("1", "lookup", "")}}, kind: DecisionToolCall, tools: 1},
		{name: "handoff", resp: &llm.ChatResponse{ToolCalls: []llm.ToolCall{call("1", "transfer_to_medical_advisor", "{}")}}, kind: DecisionHandoff, target: "Medical Advisor"},
		{name: "tool then handoff", resp: &llm.ChatResponse{ToolCalls: []llm.ToolCall{
			call("1", "transfer_to_security_analyst", "{}"),
			call("2", "lookup", "{}"),
		}}, kind: DecisionHandoff, tools: 1, target: "Security Analyst"},
		{name: "nil response", resp: nil, wantCode: errors.CodeMalformedOutput},
		{name: "empty response", resp: &llm.ChatResponse{Content: "  "}, wantCode: errors.CodeMalformedOutput},
		{name: "unknown capability", resp: &llm.ChatResponse{ToolCalls: []llm.ToolCall{call("1", "transfer_to_ghost", "{}")}}, wantCode: errors.CodeMalformedOutput},
		{name: "invalid args", resp: &llm.ChatResponse{ToolCalls: []llm.ToolCall{call("1", "lookup", "{oops")}}, wantCode: errors.CodeMalformedOutput},
		{name: "two handoffs", resp: &llm.ChatResponse{ToolCalls: []llm.ToolCall{
			call("1", "transfer_to_medical_advisor", "{}"),
			call("2", "transfer_to_security_analyst", "{}"),
		}}, wantCode: errors.CodeMalformedOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decode(tt.resp, agent)
			if tt.wantCode != "" {
				if errors.CodeOf(err) != tt.wantCode {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
				if !errors.IsRecoverable(err) {
					t.Errorf("expected recoverable error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if d.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", d.Kind, tt.kind)
			}
			if len(d.Tools) != tt.tools {
				t.Errorf("tools = %d, want %d", len(d.Tools), tt.tools)
			}
			if tt.target != "" && (d.Handoff == nil || d.Handoff.Target != tt.target) {
				t.Errorf("handoff = %+v, want target %s", d.Handoff, tt.target)
			}
		})
	}
}

func TestDecodeAssignsCallIDs(t *testing.T) {
	d, err := Decode(&llm.ChatResponse{ToolCalls: []llm.ToolCall{
		call("", "lookup", "{}"),
		call("", "lookup", "{}"),
	}}, testAgent(t))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Tools[0].CallID != "call_1" || d.Tools[1].CallID != "call_2" {
		t.Errorf("unexpected call ids %q %q", d.Tools[0].CallID, d.Tools[1].CallID)
	}
	if d.Tools[0].Tool == nil || d.Tools[0].Arguments != "{}" {
		t.Errorf("tool not bound: %+v", d.Tools[0])
	}
}

func TestBuildMessages(t *testing.T) {
	agent := testAgent(t)
	st := session.NewState("s", "Coordinator")
	st.Append(session.UserTurn("hi"))
	st.Append(session.ToolCallTurn("Coordinator", session.ToolCall{ID: "c1", Name: "lookup", Arguments: "{}"}))
	st.Append(session.ToolResultTurn("Coordinator", session.ToolResult{CallID: "c1", Name: "lookup", Output: "ok"}))
	st.Append(session.HandoffTurn("Coordinator", "Medical Advisor", ""))
	st.Append(session.AgentTurn("Medical Advisor", "rest"))
	st.Append(session.AgentTurn("Coordinator", "anything else?"))

	msgs := BuildMessages(agent, st.History())
	if len(msgs) != 8 {
		t.Fatalf("expected 8 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != llm.RoleSystem || msgs[0].Content != "Route the traveler." {
		t.Errorf("system message = %+v", msgs[0])
	}
	if msgs[2].ToolCalls[0].ID != "c1" || msgs[3].ToolCallID != "c1" || msgs[3].Content != "ok" {
		t.Errorf("tool exchange = %+v %+v", msgs[2], msgs[3])
	}
	handoff := msgs[4].ToolCalls[0]
	if handoff.Function.Name != "transfer_to_medical_advisor" || handoff.ID != "handoff_4" {
		t.Errorf("handoff call = %+v", handoff)
	}
	if msgs[5].Role != llm.RoleTool || msgs[5].Content != "Successfully transferred to Medical Advisor" {
		t.Errorf("handoff ack = %+v", msgs[5])
	}
	if msgs[6].Content != "[Medical Advisor] rest" {
		t.Errorf("peer message = %q", msgs[6].Content)
	}
	if msgs[7].Content != "anything else?" {
		t.Errorf("own message = %q", msgs[7].Content)
	}
}

func TestToolDefinitions(t *testing.T) {
	tools := ToolDefinitions(testAgent(t))
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}
	names := []string{tools[0].Function.Name, tools[1].Function.Name, tools[2].Function.Name}
	want := []string{"lookup", "transfer_to_medical_advisor", "transfer_to_security_analyst"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tool %d = %s, want %s", i, names[i], want[i])
		}
	}
	if tools[2].Function.Description != "Ask agent 'Security Analyst' for help" {
		t.Errorf("default description = %q", tools[2].Function.Description)
	}
}

func TestWrapLLMErrorKeepsCode(t *testing.T) {
	timeout := errors.New(errors.CodeTimeout, "slow", nil).WithRecoverable(true)
	if got := WrapLLMError(timeout, "m"); got.Code != errors.CodeTimeout {
		t.Errorf("code = %s", got.Code)
	}
	plain := WrapLLMError(context.DeadlineExceeded, "m")
	if plain.Code != errors.CodeLLMError || !plain.Recoverable || plain.Context["model"] != "m" {
		t.Errorf("wrapped = %+v", plain)
	}
}
