// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/llm"
	"github.com/jllopis/swarm/pkg/registry"
	"github.com/jllopis/swarm/pkg/session"
	"github.com/jllopis/swarm/pkg/swarm"
)

func TestStringMatchers(t *testing.T) {
	tests := []struct {
		matcher StringMatcher
		input   string
		want    bool
	}{
		{Contains("World"), "Hello, World!", true},
		{Contains("xyz"), "Hello, World!", false},
		{Equals("hello"), "hello", true},
		{Equals("hello"), "Hello", false},
		{Regex(`^\d+$`), "12345", true},
		{Regex(`^\d+$`), "abc", false},
	}
	for _, tt := range tests {
		if got := tt.matcher.Match(tt.input); got != tt.want {
			t.Errorf("%s on %q = %v, want %v", tt.matcher.Description(), tt.input, got, tt.want)
		}
	}
}

func TestScenarioProvider(t *testing.T) {
	provider := NewScenarioProvider().
		AddResponse("First response").
		AddResponse("Second response")

	ctx := context.Background()
	resp, err := provider.Chat(ctx, llm.ChatRequest{})
	RequireNoError(t, err, "first chat")
	RequireEqual(t, "First response", resp.Content, "first response")

	resp, err = provider.Chat(ctx, llm.ChatRequest{})
	RequireNoError(t, err, "second chat")
	RequireEqual(t, "Second response", resp.Content, "second response")

	if _, err := provider.Chat(ctx, llm.ChatRequest{}); err == nil {
		t.Error("expected error when responses exhausted")
	}
	RequireEqual(t, 3, provider.CallCount(), "call count")

	provider.Reset()
	RequireEqual(t, 2, provider.Pending(), "pending after reset")
}

func TestScenarioProviderDefaultError(t *testing.T) {
	boom := errors.New("model down")
	provider := NewScenarioProvider().WithDefaultError(boom)
	if _, err := provider.Chat(context.Background(), llm.ChatRequest{}); !errors.Is(err, boom) {
		t.Fatalf("expected default error, got %v", err)
	}
}

func TestScenarioProviderConditions(t *testing.T) {
	provider := NewScenarioProvider().
		AddScriptedResponse(ScriptedResponse{Content: "from B", Condition: ForPrompt("agent B")}).
		AddScriptedResponse(ScriptedResponse{Content: "from A", Condition: ForPrompt("agent A")})

	req := func(prompt string) llm.ChatRequest {
		return llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleSystem, Content: prompt}}}
	}
	resp, err := provider.Chat(context.Background(), req("You are agent A"))
	RequireNoError(t, err, "chat A")
	RequireEqual(t, "from A", resp.Content, "A response")

	resp, err = provider.Chat(context.Background(), req("You are agent B"))
	RequireNoError(t, err, "chat B")
	RequireEqual(t, "from B", resp.Content, "B response")
}

func TestHandoffResponse(t *testing.T) {
	provider := NewScenarioProvider().
		AddHandoffResponse("Medical Advisor", NewToolCall("lookup").WithID("call_1").Build())

	resp, err := provider.Chat(context.Background(), llm.ChatRequest{})
	RequireNoError(t, err, "chat")
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(resp.ToolCalls))
	}
	RequireEqual(t, "lookup", resp.ToolCalls[0].Function.Name, "tool first")
	RequireEqual(t, "transfer_to_medical_advisor", resp.ToolCalls[1].Function.Name, "handoff last")
}

func TestToolCallBuilder(t *testing.T) {
	tc := NewToolCall("get_weather").
		WithID("call_123").
		WithArg("location", "Madrid").
		Build()

	RequireEqual(t, "call_123", tc.ID, "id")
	RequireEqual(t, "get_weather", tc.Function.Name, "name")
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		t.Fatalf("arguments are not JSON: %v", err)
	}
	RequireEqual(t, "Madrid", args["location"], "location")

	empty := NewToolCall("noop").Build()
	RequireEqual(t, "{}", empty.Function.Arguments, "empty args")

	raw := NewToolCall("noop").WithRawArguments("{broken").Build()
	RequireEqual(t, "{broken", raw.Function.Arguments, "raw args")
}

func TestHistoryAssertions(t *testing.T) {
	st := session.NewState("s1", "A")
	st.Append(session.UserTurn("hi"))
	st.Append(session.HandoffTurn("A", "B", ""))
	st.Append(session.AgentTurn("B", "X"))

	a := NewAssertions(t)
	a.AssertHistory(st.History()).
		HasLen(3).
		HasKinds(session.KindUser, session.KindHandoff, session.KindAgent).
		HasMonotonicSeq().
		HandoffAt(1, "A", "B").
		TurnIs(2, session.KindAgent, "B", "X")
	if a.Failed() {
		t.Error("history assertions should pass")
	}
}

func newEngine(t *testing.T, provider llm.Provider) *swarm.Engine {
	t.Helper()
	reg := registry.New()
	RequireNoError(t, reg.Define("Coordinator", "You are the coordinator.",
		core.NewHandoff("Specialist", "Escalate to the specialist")), "define coordinator")
	RequireNoError(t, reg.Define("Specialist", "You are the specialist."), "define specialist")
	engine, err := swarm.New(reg, swarm.NewModelReasoner(provider, "test"),
		swarm.WithDefaultAgent("Coordinator"))
	RequireNoError(t, err, "engine")
	return engine
}

func TestScenarioRun(t *testing.T) {
	provider := NewScenarioProvider().
		AddHandoffResponse("Specialist").
		AddResponse("X").
		AddResponse("Y")

	result := NewScenario("handoff then follow-up").
		Say("help",
			ExpectNoError(),
			ExpectHandoff("Coordinator", "Specialist"),
			ExpectKinds(session.KindHandoff, session.KindAgent),
			ExpectOutput(Equals("X")),
			ExpectActiveAgent("Specialist")).
		Say("thanks",
			ExpectOutput(Equals("Y")),
			ExpectKinds(session.KindAgent),
			ExpectActiveAgent("Specialist")).
		Run(t, newEngine(t, provider))

	RequireEqual(t, 2, len(result.Turns), "turns")
	a := NewAssertions(t)
	a.AssertRequest(provider.LastRequest()).
		HasSystemMessage("specialist").
		HasMessage(llm.RoleUser, "thanks")
}
