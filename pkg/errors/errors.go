// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling for the swarm engine.
//
// Every failure surfaced by the registry, the control-transfer engine, the
// session stores and the invocation shell is a *SwarmError carrying an
// ErrorCode. Callers match on codes with the standard library:
//
//	if errors.Is(err, swarmerrors.ErrUnknownAgent) { ... }
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies swarm errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeToolFailure indicates a domain tool execution failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeContextLost indicates the caller context was canceled.
	CodeContextLost ErrorCode = "CONTEXT_LOST"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeLLMError indicates the reasoning call failed.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeUnknownAgent indicates a handoff or seed referenced an unregistered agent.
	CodeUnknownAgent ErrorCode = "UNKNOWN_AGENT"

	// CodeDuplicateAgent indicates an agent name was registered twice.
	CodeDuplicateAgent ErrorCode = "DUPLICATE_AGENT"

	// CodeDanglingHandoff indicates a handoff capability targets a missing agent.
	CodeDanglingHandoff ErrorCode = "DANGLING_HANDOFF"

	// CodeReasoningLoop indicates an agent kept calling tools past the cap.
	CodeReasoningLoop ErrorCode = "REASONING_LOOP_EXCEEDED"

	// CodeMalformedOutput indicates the model output could not be decoded.
	CodeMalformedOutput ErrorCode = "MALFORMED_OUTPUT"

	// CodeTurnBudget indicates a user turn exceeded its handoff budget.
	CodeTurnBudget ErrorCode = "TURN_BUDGET_EXCEEDED"

	// CodeSessionStore indicates a session persistence failure.
	CodeSessionStore ErrorCode = "SESSION_STORE"
)

// Sentinels for errors.Is matching. They compare by code only.
var (
	ErrUnknownAgent    = &SwarmError{Code: CodeUnknownAgent}
	ErrDuplicateAgent  = &SwarmError{Code: CodeDuplicateAgent}
	ErrDanglingHandoff = &SwarmError{Code: CodeDanglingHandoff}
	ErrReasoningLoop   = &SwarmError{Code: CodeReasoningLoop}
	ErrMalformedOutput = &SwarmError{Code: CodeMalformedOutput}
	ErrTurnBudget      = &SwarmError{Code: CodeTurnBudget}
	ErrNotFound        = &SwarmError{Code: CodeNotFound}
	ErrTimeout         = &SwarmError{Code: CodeTimeout}
)

// SwarmError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type SwarmError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
}

// Error implements the error interface.
func (e *SwarmError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *SwarmError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a SwarmError with the same code.
func (e *SwarmError) Is(target error) bool {
	t, ok := target.(*SwarmError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *SwarmError) MarshalJSON() ([]byte, error) {
	payload := struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Attributes  map[string]string      `json:"attributes,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Attributes:  e.Attributes,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		payload.Err = e.Err.Error()
	}
	return json.Marshal(payload)
}

// New creates a new SwarmError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *SwarmError {
	return &SwarmError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *SwarmError) WithContext(key string, value interface{}) *SwarmError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *SwarmError) WithAttribute(key, value string) *SwarmError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from by a retry.
// Returns the error for method chaining.
func (e *SwarmError) WithRecoverable(recoverable bool) *SwarmError {
	e.Recoverable = recoverable
	return e
}

// AsSwarmError finds the first SwarmError in the chain of err.
// Errors of any other type are wrapped as CodeInternal.
func AsSwarmError(err error) *SwarmError {
	if err == nil {
		return nil
	}
	var se *SwarmError
	if stderrors.As(err, &se) {
		return se
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the first SwarmError in the chain, or "".
func CodeOf(err error) ErrorCode {
	var se *SwarmError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRecoverable reports whether err is a SwarmError flagged as recoverable.
// Errors that are not SwarmErrors are not recoverable.
func IsRecoverable(err error) bool {
	var se *SwarmError
	if stderrors.As(err, &se) {
		return se.Recoverable
	}
	return false
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *SwarmError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// ExitCode maps error codes to CLI process exit codes.
func ExitCode(err error) int {
	switch CodeOf(err) {
	case "":
		if err == nil {
			return 0
		}
		return 1
	case CodeInvalidInput, CodeDuplicateAgent, CodeDanglingHandoff:
		return 2
	case CodeUnknownAgent, CodeNotFound:
		return 3
	case CodeTimeout, CodeLLMError, CodeMalformedOutput:
		return 4
	case CodeReasoningLoop, CodeTurnBudget:
		return 5
	default:
		return 1
	}
}
