package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

type stubCaller struct {
	lastName string
	lastArgs map[string]any
	result   *mcp.CallToolResult
	err      error
}

func (s *stubCaller) CallTool(_ context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.lastName = name
	s.lastArgs = args
	return s.result, s.err
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}}}
}

func TestNewDomainTool_ParsesJSONInput(t *testing.T) {
	tool := mcp.Tool{
		Name: "sum",
		InputSchema: mcp.ToolInputSchema{
			Type:     "object",
			Required: []string{"a", "b"},
		},
	}
	caller := &stubCaller{result: textResult("3")}

	dt, err := NewDomainTool(tool, caller)
	if err != nil {
		t.Fatalf("NewDomainTool error: %v", err)
	}
	output, err := dt.Call(context.Background(), `{"a":1,"b":2}`)
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if output != "3" {
		t.Fatalf("Expected output '3', got %v", output)
	}
	if caller.lastName != "sum" {
		t.Fatalf("Expected tool name 'sum', got %q", caller.lastName)
	}
	if caller.lastArgs["a"] != float64(1) || caller.lastArgs["b"] != float64(2) {
		t.Fatalf("Expected args a=1 b=2, got %v", caller.lastArgs)
	}
}

func TestNewDomainTool_ValidatesRequiredArgs(t *testing.T) {
	tool := mcp.Tool{
		Name: "needs-foo",
		InputSchema: mcp.ToolInputSchema{
			Type:     "object",
			Required: []string{"foo"},
		},
	}
	caller := &stubCaller{result: textResult("ok")}

	dt, err := NewDomainTool(tool, caller)
	if err != nil {
		t.Fatalf("NewDomainTool error: %v", err)
	}
	_, err = dt.Call(context.Background(), map[string]any{"bar": "baz"})
	if err == nil || !strings.Contains(err.Error(), "missing required argument") {
		t.Fatalf("Expected missing required argument error, got %v", err)
	}
	if caller.lastName != "" {
		t.Fatal("remote tool must not be called without required args")
	}
}

func TestNewDomainTool_ReturnsStructuredContent(t *testing.T) {
	caller := &stubCaller{result: &mcp.CallToolResult{
		StructuredContent: map[string]any{"ok": true},
	}}
	dt, err := NewDomainTool(mcp.Tool{Name: "structured"}, caller)
	if err != nil {
		t.Fatalf("NewDomainTool error: %v", err)
	}
	output, err := dt.Call(context.Background(), nil)
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	payload, ok := output.(map[string]any)
	if !ok || payload["ok"] != true {
		t.Fatalf("Expected structured payload, got %v", output)
	}
}

func TestNewDomainTool_RemoteError(t *testing.T) {
	caller := &stubCaller{result: &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "boom"}},
	}}
	dt, err := NewDomainTool(mcp.Tool{Name: "fails"}, caller)
	if err != nil {
		t.Fatalf("NewDomainTool error: %v", err)
	}
	if _, err := dt.Call(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Expected remote error, got %v", err)
	}
}

func TestNewDomainTool_UsesRawSchema(t *testing.T) {
	raw := json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`)
	dt, err := NewDomainTool(mcp.Tool{
		Name:           "search",
		Description:    "Search tool",
		RawInputSchema: raw,
	}, &stubCaller{})
	if err != nil {
		t.Fatalf("NewDomainTool error: %v", err)
	}
	if dt.Description() != "Search tool" {
		t.Fatalf("description: %q", dt.Description())
	}
	props, ok := dt.Schema()["properties"].(map[string]any)
	if !ok || props["q"] == nil {
		t.Fatalf("Unexpected schema %v", dt.Schema())
	}
}

func TestNewDomainTool_RequiresNameAndCaller(t *testing.T) {
	if _, err := NewDomainTool(mcp.Tool{}, &stubCaller{}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := NewDomainTool(mcp.Tool{Name: "x"}, nil); err == nil {
		t.Fatal("expected error for nil caller")
	}
}
