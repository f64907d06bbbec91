// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package swarm

import (
	"github.com/jllopis/swarm/pkg/errors"
)

// WrapLLMError wraps a model call error with appropriate context.
// Errors that already carry a code keep it.
func WrapLLMError(err error, model string) *errors.SwarmError {
	if err == nil {
		return nil
	}
	if errors.CodeOf(err) != "" {
		return errors.AsSwarmError(err)
	}
	return errors.New(errors.CodeLLMError, "LLM call failed", err).
		WithContext("model", model).
		WithAttribute("llm.model", model).
		WithRecoverable(true)
}

// WrapToolError wraps a tool execution error with appropriate context.
func WrapToolError(err error, toolName, toolCallID string) *errors.SwarmError {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeToolFailure, "tool execution failed", err).
		WithContext("tool_name", toolName).
		WithContext("tool_call_id", toolCallID).
		WithAttribute("tool.name", toolName).
		WithRecoverable(false)
}

// NewReasoningLoopError reports an agent that kept calling tools past the cap.
func NewReasoningLoopError(agent string, maxIterations int) *errors.SwarmError {
	return errors.New(errors.CodeReasoningLoop, "agent exceeded the tool-call cap for one step", nil).
		WithContext("agent", agent).
		WithContext("max_iterations", maxIterations).
		WithAttribute("swarm.agent.name", agent).
		WithRecoverable(false)
}

// NewTurnBudgetError reports a user turn that handed off too many times.
func NewTurnBudgetError(from, to string, maxHandoffs int) *errors.SwarmError {
	return errors.New(errors.CodeTurnBudget, "handoff budget exhausted for this turn", nil).
		WithContext("from", from).
		WithContext("to", to).
		WithContext("max_handoffs", maxHandoffs).
		WithRecoverable(false)
}

// NewInvalidInputError creates a new invalid input error.
func NewInvalidInputError(msg string) *errors.SwarmError {
	return errors.New(errors.CodeInvalidInput, msg, nil).
		WithRecoverable(false)
}

// NewContextLostError reports a cancellation observed at a step boundary.
func NewContextLostError(cause error, agent string) *errors.SwarmError {
	return errors.New(errors.CodeContextLost, "turn canceled", cause).
		WithContext("agent", agent).
		WithRecoverable(false)
}
