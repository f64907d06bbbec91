// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ToolFunc is the function backing a DomainTool.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// DomainTool is a named function with an input schema.
type DomainTool struct {
	name        string
	description string
	schema      map[string]any
	fn          ToolFunc
}

var (
	_ Capability = (*DomainTool)(nil)
	_ Tool       = (*DomainTool)(nil)
	_ Capability = (*Handoff)(nil)
)

// NewDomainTool builds a DomainTool. A nil schema means "no arguments".
func NewDomainTool(name, description string, schema map[string]any, fn ToolFunc) (*DomainTool, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("tool name is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %q: function is required", name)
	}
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &DomainTool{name: name, description: description, schema: schema, fn: fn}, nil
}

// MustDomainTool is NewDomainTool that panics on error. For static definitions.
func MustDomainTool(name, description string, schema map[string]any, fn ToolFunc) *DomainTool {
	t, err := NewDomainTool(name, description, schema, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// Kind implements Capability.
func (t *DomainTool) Kind() CapabilityKind { return CapabilityTool }

// Name implements Capability and Tool.
func (t *DomainTool) Name() string { return t.name }

// Description implements Capability.
func (t *DomainTool) Description() string { return t.description }

// Schema implements Capability.
func (t *DomainTool) Schema() map[string]any { return t.schema }

// Call runs the tool. Input may be a map, a JSON string or raw JSON bytes.
func (t *DomainTool) Call(ctx context.Context, input any) (any, error) {
	args, err := ToolArgs(input)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", t.name, err)
	}
	if err := t.checkRequired(args); err != nil {
		return nil, err
	}
	return t.fn(ctx, args)
}

func (t *DomainTool) checkRequired(args map[string]any) error {
	var required []string
	switch v := t.schema["required"].(type) {
	case []string:
		required = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				required = append(required, s)
			}
		}
	}
	for _, field := range required {
		if _, ok := args[field]; !ok {
			return fmt.Errorf("tool %q: missing required argument %q", t.name, field)
		}
	}
	return nil
}

// ToolArgs normalizes tool input into an argument map.
func ToolArgs(input any) (map[string]any, error) {
	switch v := input.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		return decodeArgs([]byte(v))
	case []byte:
		return decodeArgs(v)
	case json.RawMessage:
		return decodeArgs(v)
	default:
		return nil, fmt.Errorf("unsupported tool input type %T", input)
	}
}

func decodeArgs(raw []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// Handoff transfers control of the conversation to Target.
type Handoff struct {
	target      string
	description string
}

// HandoffPrefix prefixes the invocation name of every handoff capability.
const HandoffPrefix = "transfer_to_"

// NewHandoff builds a handoff capability. An empty description gets a default.
func NewHandoff(target, description string) *Handoff {
	if strings.TrimSpace(description) == "" {
		description = "Ask agent '" + target + "' for help"
	}
	return &Handoff{target: target, description: description}
}

// Kind implements Capability.
func (h *Handoff) Kind() CapabilityKind { return CapabilityHandoff }

// Name implements Capability.
func (h *Handoff) Name() string { return HandoffToolName(h.target) }

// Target returns the agent that receives control.
func (h *Handoff) Target() string { return h.target }

// Description implements Capability.
func (h *Handoff) Description() string { return h.description }

// Schema implements Capability. Handoffs take no arguments.
func (h *Handoff) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// HandoffToolName returns the invocation name of a handoff to agent:
// lower case, whitespace runs replaced by a single underscore.
func HandoffToolName(agent string) string {
	fields := strings.FieldsFunc(strings.ToLower(agent), unicode.IsSpace)
	return HandoffPrefix + strings.Join(fields, "_")
}
