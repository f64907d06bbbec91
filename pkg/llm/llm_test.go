package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
}

func TestMockProviderSequence(t *testing.T) {
	mock := &MockProvider{Responses: []ChatResponse{
		{ToolCalls: []ToolCall{NewToolCall("c1", "transfer_to_bob", nil)}},
		{Content: "done"},
	}}
	first, _ := mock.Chat(context.Background(), ChatRequest{})
	if len(first.ToolCalls) != 1 || first.ToolCalls[0].Function.Arguments != "{}" {
		t.Fatalf("unexpected first response: %+v", first)
	}
	second, _ := mock.Chat(context.Background(), ChatRequest{})
	if second.Content != "done" {
		t.Fatalf("unexpected second response: %+v", second)
	}
	if _, err := mock.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected exhaustion error")
	}
	if mock.Calls() != 3 {
		t.Errorf("expected 3 calls, got %d", mock.Calls())
	}
}

func TestOllamaChatToolCalls(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{"function": {"name": "check_travel_advisory", "arguments": {"country": "japan"}}}]
			},
			"done": true,
			"prompt_eval_count": 7,
			"eval_count": 3
		}`))
	}))
	defer srv.Close()

	p := NewOllama(srv.URL + "/")
	resp, err := p.Chat(context.Background(), ChatRequest{
		Model:       "llama3.1",
		Temperature: 0.2,
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a coordinator."},
			{Role: RoleAssistant, ToolCalls: []ToolCall{NewToolCall("c1", "transfer_to_bob", nil)}},
			{Role: RoleTool, Content: "Successfully transferred to Bob", ToolCallID: "c1", Name: "transfer_to_bob"},
		},
		Tools: []Tool{FunctionTool("check_travel_advisory", "Advisory", map[string]any{"type": "object"})},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if got.Model != "llama3.1" || got.Stream || got.Options["temperature"] != 0.2 {
		t.Errorf("unexpected request header fields: %+v", got)
	}
	if len(got.Messages) != 3 || string(got.Messages[1].ToolCalls[0].Function.Arguments) != "{}" {
		t.Errorf("tool call arguments not sent as object: %+v", got.Messages)
	}
	if got.Messages[2].ToolName != "transfer_to_bob" {
		t.Errorf("expected tool name on tool message, got %+v", got.Messages[2])
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.Function.Name != "check_travel_advisory" || tc.Function.Arguments != `{"country": "japan"}` || tc.ID == "" {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Errorf("expected 10 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewOllama(srv.URL).Chat(context.Background(), ChatRequest{Model: "x"}); err == nil {
		t.Fatal("expected status error")
	}
}
