// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestAgentAttributes(t *testing.T) {
	attrs := AgentAttributes("Coordinator", "run-123", 2, 5)

	expected := map[string]any{
		AttrAgentName:      "Coordinator",
		AttrRunID:          "run-123",
		AttrAgentIteration: 2,
		AttrAgentMaxIter:   5,
	}

	assertAttributes(t, attrs, expected)
}

func TestAgentAttributesOmitsEmpty(t *testing.T) {
	attrs := AgentAttributes("Coordinator", "", 0, 0)
	if len(attrs) != 1 {
		t.Errorf("expected only the agent name, got %v", attrs)
	}
}

func TestSessionAttributes(t *testing.T) {
	attrs := SessionAttributes("session-123", 4, "terminal")

	assertAttributes(t, attrs, map[string]any{
		AttrSessionID:    "session-123",
		AttrSessionTurns: 4,
		AttrSessionPhase: "terminal",
	})
}

func TestHandoffAttributes(t *testing.T) {
	assertAttributes(t, HandoffAttributes("Coordinator", "MedicalAdvisor", 1), map[string]any{
		AttrHandoffFrom:  "Coordinator",
		AttrHandoffTo:    "MedicalAdvisor",
		AttrHandoffCount: 1,
	})
}

func TestToolCallAttributes(t *testing.T) {
	attrs := ToolCallAttributes("check_travel_advisory", "call-1", 12.5, true)

	assertAttributes(t, attrs, map[string]any{
		AttrToolName:       "check_travel_advisory",
		AttrToolCallID:     "call-1",
		AttrToolDurationMs: 12.5,
		AttrToolSuccess:    true,
	})
}

func TestToolCallArgsResult_Truncation(t *testing.T) {
	long := strings.Repeat("x", 100)
	attrs := ToolCallArgsResult(long, "short", 10)

	assertAttributes(t, attrs, map[string]any{
		AttrToolArgs:   strings.Repeat("x", 10) + "...",
		AttrToolResult: "short",
	})
}

func TestDecisionAttributes(t *testing.T) {
	assertAttributes(t, DecisionAttributes("handoff", 2), map[string]any{
		AttrDecisionKind:    "handoff",
		AttrDecisionActions: 2,
	})
}

func TestLLMAttributes(t *testing.T) {
	attrs := LLMAttributes("llama3.1", 6, 1)

	assertAttributes(t, attrs, map[string]any{
		AttrLLMModel:     "llama3.1",
		AttrLLMMessages:  6,
		AttrLLMToolCalls: 1,
	})
}

func TestLLMUsageAttributes(t *testing.T) {
	assertAttributes(t, LLMUsageAttributes(100, 50), map[string]any{
		AttrLLMTokensInput:  100,
		AttrLLMTokensOutput: 50,
		AttrLLMTokensTotal:  150,
	})
	if attrs := LLMUsageAttributes(0, 0); len(attrs) != 0 {
		t.Errorf("expected no usage attributes, got %v", attrs)
	}
}

func TestRetryAttributes(t *testing.T) {
	assertAttributes(t, RetryAttributes(2, 3), map[string]any{
		AttrRetryAttempt: 2,
		AttrRetryMax:     3,
	})
}

// assertAttributes checks that expected key-value pairs exist in attrs
func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()

	found := make(map[string]attribute.KeyValue)
	for _, attr := range attrs {
		found[string(attr.Key)] = attr
	}

	for key, expectedVal := range expected {
		attr, ok := found[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}

		var actualVal any
		switch attr.Value.Type() {
		case attribute.STRING:
			actualVal = attr.Value.AsString()
		case attribute.INT64:
			actualVal = int(attr.Value.AsInt64())
		case attribute.FLOAT64:
			actualVal = attr.Value.AsFloat64()
		case attribute.BOOL:
			actualVal = attr.Value.AsBool()
		}

		if actualVal != expectedVal {
			t.Errorf("attribute %s: got %v, want %v", key, actualVal, expectedVal)
		}
	}
}
