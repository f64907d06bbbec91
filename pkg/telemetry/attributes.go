// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for swarm telemetry.
// These follow OpenTelemetry naming conventions where applicable.
const (
	// Agent attributes
	AttrAgentName      = "swarm.agent.name"
	AttrAgentIteration = "swarm.agent.iteration"
	AttrAgentMaxIter   = "swarm.agent.max_iterations"
	AttrRunID          = "swarm.run.id"

	// Session attributes
	AttrSessionID    = "swarm.session.id"
	AttrSessionTurns = "swarm.session.turn_count"
	AttrSessionPhase = "swarm.session.phase"

	// Handoff attributes
	AttrHandoffFrom  = "swarm.handoff.from"
	AttrHandoffTo    = "swarm.handoff.to"
	AttrHandoffCount = "swarm.handoff.count"

	// Tool attributes
	AttrToolName       = "swarm.tool.name"
	AttrToolCallID     = "swarm.tool.call_id"
	AttrToolArgs       = "swarm.tool.arguments"
	AttrToolResult     = "swarm.tool.result"
	AttrToolDurationMs = "swarm.tool.duration_ms"
	AttrToolSuccess    = "swarm.tool.success"

	// Decision attributes
	AttrDecisionKind    = "swarm.decision.kind"
	AttrDecisionActions = "swarm.decision.actions"

	// LLM attributes (extending standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMToolCalls    = "gen_ai.tool_calls"

	// Retry attributes
	AttrRetryAttempt = "swarm.retry.attempt"
	AttrRetryMax     = "swarm.retry.max_attempts"
)

// AgentAttributes returns common attributes for step spans.
func AgentAttributes(agent, runID string, iteration, maxIter int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentName, agent),
	}
	if runID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, runID))
	}
	if iteration > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentIteration, iteration))
	}
	if maxIter > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentMaxIter, maxIter))
	}
	return attrs
}

// SessionAttributes returns attributes describing a session.
func SessionAttributes(sessionID string, turns int, phase string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrSessionTurns, turns),
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(AttrSessionID, sessionID))
	}
	if phase != "" {
		attrs = append(attrs, attribute.String(AttrSessionPhase, phase))
	}
	return attrs
}

// HandoffAttributes returns attributes for a transfer of control.
func HandoffAttributes(from, to string, count int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrHandoffFrom, from),
		attribute.String(AttrHandoffTo, to),
		attribute.Int(AttrHandoffCount, count),
	}
}

// ToolCallAttributes returns attributes for a tool call span.
func ToolCallAttributes(name, callID string, durationMs float64, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolCallID, callID),
		attribute.Float64(AttrToolDurationMs, durationMs),
		attribute.Bool(AttrToolSuccess, success),
	}
}

// ToolCallArgsResult returns attributes with tool arguments and result (truncated for safety).
func ToolCallArgsResult(args, result string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 500
	}
	attrs := []attribute.KeyValue{}
	if args != "" {
		attrs = append(attrs, attribute.String(AttrToolArgs, truncate(args, maxLen)))
	}
	if result != "" {
		attrs = append(attrs, attribute.String(AttrToolResult, truncate(result, maxLen)))
	}
	return attrs
}

// DecisionAttributes describes a decoded model response.
func DecisionAttributes(kind string, actions int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDecisionKind, kind),
		attribute.Int(AttrDecisionActions, actions),
	}
}

// LLMAttributes returns attributes for model call spans.
func LLMAttributes(model string, msgCount int, toolCallCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	if toolCallCount > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMToolCalls, toolCallCount))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	return attrs
}

// RetryAttributes returns attributes for a retried invocation.
func RetryAttributes(attempt, max int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrRetryAttempt, attempt),
		attribute.Int(AttrRetryMax, max),
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
