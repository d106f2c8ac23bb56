package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/deepresearch/config"
)

func newTestProvider(t *testing.T, url string) *OpenAIProvider {
	t.Helper()
	p, err := NewOpenAIProvider(config.LLMConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}
	return p
}

func TestChatCompletionParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["tool_choice"] != "auto" {
			t.Errorf("expected tool_choice auto, got %v", req["tool_choice"])
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "web_search", "arguments": "{\"query\": \"go\"}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	resp, err := p.ChatCompletion(context.Background(), []ChatMessage{
		{Role: RoleSystem, Content: "you are a researcher"},
		{Role: RoleUser, Content: "search for go"},
	}, []ToolSchema{{Name: "web_search", Description: "search", Parameters: map[string]interface{}{"type": "object"}}})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if !resp.HasToolCalls() {
		t.Fatal("expected tool calls")
	}
	if got := resp.Message.ToolCalls[0].Function.Name; got != "web_search" {
		t.Errorf("tool name = %q", got)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 19 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}
}

func TestChatCompletionProviderErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limited"}}`)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.ChatCompletion(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v", err)
	}
}

func TestAssistantToolCallMessageSerializesNullContent(t *testing.T) {
	msgs := convertMessages([]ChatMessage{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Type: "function"}}},
		{Role: RoleTool, Content: `{"ok": true}`, ToolCallID: "call_1"},
	})
	raw, err := json.Marshal(msgs[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"content":null`) {
		t.Errorf("assistant tool-call message should have null content, got %s", raw)
	}
	raw, err = json.Marshal(msgs[1])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"tool_call_id":"call_1"`) {
		t.Errorf("tool message should reference call id, got %s", raw)
	}
}

func sseBody(chunks ...string) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString("data: " + c + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func TestStreamSnapshotsAreCumulative(t *testing.T) {
	body := sseBody(
		`{"choices":[{"delta":{"role":"assistant","content":"Hel"},"finish_reason":null}]}`,
		`{"choices":[{"delta":{"content":"lo "},"finish_reason":null}]}`,
		`{"choices":[{"delta":{"content":"world"},"finish_reason":"stop"}]}`,
		`{"choices":[],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	snapshots, err := p.ChatCompletionStream(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("ChatCompletionStream: %v", err)
	}

	var all []StreamSnapshot
	for s := range snapshots {
		if s.Err != nil {
			t.Fatalf("stream error: %v", s.Err)
		}
		all = append(all, s)
	}
	if len(all) == 0 {
		t.Fatal("no snapshots")
	}
	// Each snapshot's content extends the previous one
	for i := 1; i < len(all); i++ {
		if !strings.HasPrefix(all[i].Content, all[i-1].Content) {
			t.Errorf("snapshot %d content %q does not extend %q", i, all[i].Content, all[i-1].Content)
		}
	}
	last := all[len(all)-1]
	if !last.Done {
		t.Error("final snapshot not marked done")
	}
	if last.Content != "Hello world" {
		t.Errorf("final content = %q", last.Content)
	}
	if last.FinishReason != "stop" {
		t.Errorf("finish reason = %q", last.FinishReason)
	}
	if last.Usage.TotalTokens != 5 {
		t.Errorf("usage total = %d", last.Usage.TotalTokens)
	}
}

func TestStreamReassemblesSplitToolCalls(t *testing.T) {
	body := sseBody(
		`{"choices":[{"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"web_search","arguments":""}}]},"finish_reason":null}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"que"}}]},"finish_reason":null}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"file_read","arguments":"{\"path\""}}]},"finish_reason":null}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ry\": \"go\"}"}}]},"finish_reason":null}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"function":{"arguments":": \"a.md\"}"}}]},"finish_reason":"tool_calls"}]}`,
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	snapshots, err := p.ChatCompletionStream(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("ChatCompletionStream: %v", err)
	}

	var all []StreamSnapshot
	for s := range snapshots {
		if s.Err != nil {
			t.Fatalf("stream error: %v", s.Err)
		}
		all = append(all, s)
	}
	// Once a call appears its id and name never change
	for i := 1; i < len(all); i++ {
		for j, tc := range all[i-1].ToolCalls {
			if j >= len(all[i].ToolCalls) {
				t.Fatalf("snapshot %d dropped tool call %d", i, j)
			}
			next := all[i].ToolCalls[j]
			if next.ID != tc.ID || next.Function.Name != tc.Function.Name {
				t.Errorf("snapshot %d changed identity of call %d: %+v -> %+v", i, j, tc, next)
			}
			if !strings.HasPrefix(next.Function.Arguments, tc.Function.Arguments) {
				t.Errorf("snapshot %d arguments %q do not extend %q", i, next.Function.Arguments, tc.Function.Arguments)
			}
		}
	}

	last := all[len(all)-1]
	if len(last.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(last.ToolCalls))
	}
	var args0 map[string]interface{}
	if err := json.Unmarshal([]byte(last.ToolCalls[0].Function.Arguments), &args0); err != nil {
		t.Fatalf("final arguments not valid JSON: %v (%q)", err, last.ToolCalls[0].Function.Arguments)
	}
	if args0["query"] != "go" {
		t.Errorf("query = %v", args0["query"])
	}
	if last.ToolCalls[1].Function.Name != "file_read" {
		t.Errorf("second call name = %q", last.ToolCalls[1].Function.Name)
	}
	if !last.Done {
		t.Error("final snapshot not marked done")
	}
	// Streamed usage may legitimately be absent
	if last.Usage.TotalTokens != 0 {
		t.Errorf("usage total = %d, want 0 when upstream omits usage", last.Usage.TotalTokens)
	}
}

func TestAccumulatorOrdersByIndex(t *testing.T) {
	acc := newToolCallAccumulator()

	d1 := toolCallDelta{Index: 1, ID: "call_b"}
	d1.Function.Name = "file_read"
	acc.addDelta(d1)

	d0 := toolCallDelta{Index: 0, ID: "call_a"}
	d0.Function.Name = "web_search"
	d0.Function.Arguments = `{"q":`
	acc.addDelta(d0)

	d0b := toolCallDelta{Index: 0}
	d0b.Function.Arguments = `"x"}`
	acc.addDelta(d0b)

	calls := acc.toolCalls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls", len(calls))
	}
	if calls[0].ID != "call_a" || calls[1].ID != "call_b" {
		t.Errorf("calls out of index order: %+v", calls)
	}
	if calls[0].Function.Arguments != `{"q":"x"}` {
		t.Errorf("arguments = %q", calls[0].Function.Arguments)
	}
	if calls[0].Type != "function" {
		t.Errorf("type defaulted to %q", calls[0].Type)
	}
}

func TestAccumulatorKeepsCallsAfterIndexGap(t *testing.T) {
	acc := newToolCallAccumulator()

	d0 := toolCallDelta{Index: 0, ID: "call_a"}
	d0.Function.Name = "web_search"
	acc.addDelta(d0)

	// No fragment ever arrives for index 1
	d2 := toolCallDelta{Index: 2, ID: "call_c"}
	d2.Function.Name = "file_write"
	acc.addDelta(d2)

	calls := acc.toolCalls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want both sides of the gap: %+v", len(calls), calls)
	}
	if calls[0].ID != "call_a" || calls[1].ID != "call_c" {
		t.Errorf("calls out of index order: %+v", calls)
	}
}

func TestAccumulatorIdentityIsSetOnce(t *testing.T) {
	acc := newToolCallAccumulator()

	d0 := toolCallDelta{Index: 0, ID: "call_a", Type: "function"}
	d0.Function.Name = "web_search"
	acc.addDelta(d0)

	// A later fragment claiming a different identity must not win
	d0b := toolCallDelta{Index: 0, ID: "call_z", Type: "other"}
	d0b.Function.Name = "file_read"
	d0b.Function.Arguments = `{}`
	acc.addDelta(d0b)

	calls := acc.toolCalls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls", len(calls))
	}
	tc := calls[0]
	if tc.ID != "call_a" || tc.Type != "function" || tc.Function.Name != "web_search" {
		t.Errorf("identity changed after first fragment: %+v", tc)
	}
	if tc.Function.Arguments != `{}` {
		t.Errorf("arguments = %q", tc.Function.Arguments)
	}

	// Fill-in of fields the first fragment omitted still works
	acc2 := newToolCallAccumulator()
	acc2.addDelta(toolCallDelta{Index: 0})
	late := toolCallDelta{Index: 0, ID: "call_b"}
	late.Function.Name = "web_browse"
	acc2.addDelta(late)
	got := acc2.toolCalls()[0]
	if got.ID != "call_b" || got.Function.Name != "web_browse" {
		t.Errorf("late fill-in not applied: %+v", got)
	}
}

func TestParseSSELine(t *testing.T) {
	if data, done := parseSSELine("data: {\"x\":1}\n"); done || data != `{"x":1}` {
		t.Errorf("got %q done=%v", data, done)
	}
	if _, done := parseSSELine("data: [DONE]\n"); !done {
		t.Error("sentinel not detected")
	}
	if data, done := parseSSELine(": keep-alive\n"); done || data != "" {
		t.Errorf("comment line parsed as %q", data)
	}
}
