// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("network timeout")
	se := New(CodeTimeout, "tool execution timed out", cause)

	if se.Code != CodeTimeout {
		t.Errorf("expected CodeTimeout, got %v", se.Code)
	}
	if se.Message != "tool execution timed out" {
		t.Errorf("expected message 'tool execution timed out', got %q", se.Message)
	}
	if se.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(se, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContext(t *testing.T) {
	se := New(CodeUnknownAgent, "agent not registered", nil)
	se.WithContext("agent", "Ghost").
		WithContext("from", "EmergencyCoordinator")

	if se.Context["agent"] != "Ghost" {
		t.Errorf("expected context agent to be 'Ghost'")
	}
	if se.Context["from"] != "EmergencyCoordinator" {
		t.Errorf("expected context from to be set")
	}
}

func TestWithRecoverable(t *testing.T) {
	se := New(CodeLLMError, "model unavailable", nil)
	if se.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}

	se.WithRecoverable(true)
	if !se.Recoverable {
		t.Errorf("expected recoverable to be true after WithRecoverable")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		se       *SwarmError
		expected string
	}{
		{
			name:     "with cause",
			se:       New(CodeTimeout, "operation timed out", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] operation timed out: deadline exceeded",
		},
		{
			name:     "without cause",
			se:       New(CodeUnknownAgent, "agent not registered", nil),
			expected: "[UNKNOWN_AGENT] agent not registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.se.Error()
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("step failed: %w", New(CodeReasoningLoop, "too many tool calls", nil))

	if !errors.Is(err, ErrReasoningLoop) {
		t.Errorf("expected wrapped error to match ErrReasoningLoop")
	}
	if errors.Is(err, ErrUnknownAgent) {
		t.Errorf("did not expect match with ErrUnknownAgent")
	}
	if CodeOf(err) != CodeReasoningLoop {
		t.Errorf("expected CodeOf to find REASONING_LOOP_EXCEEDED, got %q", CodeOf(err))
	}
}

func TestAsSwarmError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "already SwarmError",
			err:      New(CodeToolFailure, "failed", nil),
			expected: CodeToolFailure,
		},
		{
			name:     "wrapped SwarmError",
			err:      fmt.Errorf("outer: %w", New(CodeDanglingHandoff, "missing target", nil)),
			expected: CodeDanglingHandoff,
		},
		{
			name:     "generic error",
			err:      errors.New("generic error"),
			expected: CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := AsSwarmError(tt.err)
			if tt.expected == "" {
				if se != nil {
					t.Errorf("expected nil for nil error")
				}
				return
			}
			if se == nil {
				t.Fatalf("expected non-nil SwarmError")
			}
			if se.Code != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, se.Code)
			}
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	if IsRecoverable(errors.New("plain")) {
		t.Errorf("plain errors must not be recoverable")
	}
	if !IsRecoverable(fmt.Errorf("wrap: %w", New(CodeMalformedOutput, "bad", nil).WithRecoverable(true))) {
		t.Errorf("expected wrapped recoverable error to be recoverable")
	}
	if IsRecoverable(New(CodeUnknownAgent, "x", nil)) {
		t.Errorf("unknown agent must not be recoverable")
	}
}

func TestMarshalJSON(t *testing.T) {
	se := New(CodeToolFailure, "tool failed", errors.New("network error"))
	se.WithContext("tool", "check_travel_advisory").
		WithAttribute("retry_count", "1").
		WithRecoverable(true)

	data, err := json.Marshal(se)
	if err != nil {
		t.Fatalf("unexpected error marshaling: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unexpected error unmarshaling: %v", err)
	}

	if result["code"] != "TOOL_FAILURE" {
		t.Errorf("expected code 'TOOL_FAILURE', got %v", result["code"])
	}
	if result["error"] != "network error" {
		t.Errorf("expected error 'network error', got %v", result["error"])
	}
	if result["recoverable"] != true {
		t.Errorf("expected recoverable true")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{nil, 0},
		{errors.New("plain"), 1},
		{New(CodeDuplicateAgent, "dup", nil), 2},
		{New(CodeUnknownAgent, "unknown", nil), 3},
		{New(CodeTimeout, "slow", nil), 4},
		{New(CodeReasoningLoop, "loop", nil), 5},
		{New(CodeInternal, "boom", nil), 1},
	}

	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.expected {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.expected)
		}
	}
}
