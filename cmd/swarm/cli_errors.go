// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/jllopis/swarm/pkg/errors"
)

// CLIError wraps SwarmError with a hint for the terminal.
type CLIError struct {
	*errors.SwarmError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(se *errors.SwarmError, hint string) *CLIError {
	return &CLIError{SwarmError: se, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.SwarmError == nil {
		return "unknown error"
	}
	msg := e.SwarmError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the SwarmError so exit codes can be derived from it.
func (e *CLIError) Unwrap() error {
	if e.SwarmError == nil {
		return nil
	}
	return e.SwarmError
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// PrintError writes the error to w, as a JSON object when asJSON is set.
func PrintError(w io.Writer, err error, asJSON bool) {
	if err == nil {
		return
	}
	payload := errorPayload{Code: "UNKNOWN", Message: err.Error()}
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) && cliErr.SwarmError != nil {
		payload.Code = string(cliErr.Code)
		payload.Message = describe(cliErr.SwarmError)
		payload.Hint = cliErr.Hint
	} else if errors.CodeOf(err) != "" {
		se := errors.AsSwarmError(err)
		payload.Code = string(se.Code)
		payload.Message = describe(se)
		payload.Hint = hintFor(se.Code)
	}

	if asJSON {
		data, _ := json.Marshal(map[string]errorPayload{"error": payload})
		fmt.Fprintln(w, string(data))
		return
	}
	if payload.Code == "UNKNOWN" {
		fmt.Fprintf(w, "Error: %s\n", payload.Message)
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", FormatErrorCode(errors.ErrorCode(payload.Code)), payload.Message)
	if payload.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", payload.Hint)
	}
}

func describe(se *errors.SwarmError) string {
	if se.Err == nil {
		return se.Message
	}
	return se.Message + ": " + se.Err.Error()
}

// WrapTimeoutError wraps a timeout error with CLI hints.
func WrapTimeoutError(err error, operation string) *CLIError {
	se := errors.New(errors.CodeTimeout, operation+" timed out", err).
		WithContext("operation", operation).
		WithRecoverable(true)
	return NewCLIError(se, "try increasing the timeout with --timeout")
}

// NewNotFoundError creates a not found error with CLI hints.
func NewNotFoundError(resource, name string) *CLIError {
	se := errors.New(errors.CodeNotFound, fmt.Sprintf("%s '%s' not found", resource, name), nil).
		WithContext("resource", resource).
		WithContext("name", name)
	return NewCLIError(se, fmt.Sprintf("check that the %s exists", resource))
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	se := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg).
		WithContext("reason", reason)
	return NewCLIError(se, "run 'swarm help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	se := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath)
	hint := "check your configuration values"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(se, hint)
}

func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeLLMError:
		return "check that the model server is reachable or use --set llm.provider=triage"
	case errors.CodeTimeout:
		return "raise engine.reasoning_timeout or engine.tool_timeout"
	case errors.CodeTurnBudget:
		return "raise engine.max_handoffs if the agents legitimately need more transfers"
	case errors.CodeReasoningLoop:
		return "raise engine.max_tool_iterations or review the agent prompt"
	case errors.CodeUnknownAgent, errors.CodeDanglingHandoff, errors.CodeDuplicateAgent:
		return "check the agent manifest"
	case errors.CodeSessionStore:
		return "check the session.* settings"
	default:
		return ""
	}
}

// FormatErrorCode returns a user-friendly name for error codes.
func FormatErrorCode(code errors.ErrorCode) string {
	switch code {
	case errors.CodeInternal:
		return "Internal Error"
	case errors.CodeInvalidInput:
		return "Invalid Input"
	case errors.CodeNotFound:
		return "Not Found"
	case errors.CodeTimeout:
		return "Timeout"
	case errors.CodeToolFailure:
		return "Tool Failure"
	case errors.CodeContextLost:
		return "Canceled"
	case errors.CodeLLMError:
		return "LLM Error"
	case errors.CodeUnknownAgent:
		return "Unknown Agent"
	case errors.CodeDuplicateAgent:
		return "Duplicate Agent"
	case errors.CodeDanglingHandoff:
		return "Dangling Handoff"
	case errors.CodeReasoningLoop:
		return "Reasoning Loop"
	case errors.CodeMalformedOutput:
		return "Malformed Output"
	case errors.CodeTurnBudget:
		return "Turn Budget Exceeded"
	case errors.CodeSessionStore:
		return "Session Store"
	default:
		return strings.ReplaceAll(string(code), "_", " ")
	}
}
