package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/swarm/pkg/core"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolSource lists and calls remote tools. *Client implements it.
type ToolSource interface {
	ToolCaller
	ListTools(ctx context.Context) ([]mcp.Tool, error)
}

var _ ToolSource = (*Client)(nil)

// NewDomainTool turns a remote MCP tool into a domain tool that agents can
// carry like any local one.
func NewDomainTool(tool mcp.Tool, caller ToolCaller) (*core.DomainTool, error) {
	if tool.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	schema, err := toolSchema(tool)
	if err != nil {
		return nil, err
	}
	name := tool.Name
	return core.NewDomainTool(name, tool.Description, schema, func(ctx context.Context, args map[string]any) (any, error) {
		result, err := caller.CallTool(ctx, name, args)
		if err != nil {
			return nil, err
		}
		return toolResultToOutput(result)
	})
}

// RemoteTools lists the tools of src as domain tools. When names is not
// empty only those tools are returned, in the order given.
func RemoteTools(ctx context.Context, src ToolSource, names ...string) ([]*core.DomainTool, error) {
	listed, err := src.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]mcp.Tool, len(listed))
	for _, t := range listed {
		byName[t.Name] = t
	}
	if len(names) == 0 {
		for _, t := range listed {
			names = append(names, t.Name)
		}
	}

	out := make([]*core.DomainTool, 0, len(names))
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("mcp: remote tool %q not found", name)
		}
		dt, err := NewDomainTool(t, src)
		if err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, nil
}

func toolSchema(tool mcp.Tool) (map[string]any, error) {
	var raw []byte
	if tool.RawInputSchema != nil {
		raw = tool.RawInputSchema
	} else {
		var err error
		if raw, err = json.Marshal(tool.InputSchema); err != nil {
			return nil, fmt.Errorf("mcp tool %q: schema: %w", tool.Name, err)
		}
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("mcp tool %q: schema: %w", tool.Name, err)
	}
	if t, _ := schema["type"].(string); t == "" {
		schema["type"] = "object"
	}
	return schema, nil
}

func toolResultToOutput(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, errors.New("mcp tool result is nil")
	}
	if result.IsError {
		return nil, fmt.Errorf("mcp tool returned error: %s", extractTextContent(result.Content))
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	return extractTextContent(result.Content), nil
}

func extractTextContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
