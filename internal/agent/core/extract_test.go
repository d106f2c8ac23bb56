package core

import (
	"strings"
	"testing"

	"github.com/mohammad-safakhou/deepresearch/internal/agent/tools"
)

func TestExtractEvidenceFromSearchHits(t *testing.T) {
	result := tools.ToolResult{
		Success: true,
		Output: []tools.SearchResult{
			{Title: "Go", URL: "https://go.dev", Snippet: "the go programming language"},
			{Title: "Go blog", URL: "https://go.dev/blog", Snippet: "news"},
		},
	}
	entries := ExtractEvidence(result)
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0]["source_url"] != "https://go.dev" || entries[0]["source_title"] != "Go" {
		t.Errorf("entry = %+v", entries[0])
	}
	if entries[0]["retrieved_at"] == "" {
		t.Error("missing retrieved_at")
	}
}

func TestExtractEvidenceFromBatchResults(t *testing.T) {
	result := tools.ToolResult{
		Success: true,
		Output: []interface{}{
			map[string]interface{}{
				"query": "q1",
				"search_results": []interface{}{
					map[string]interface{}{"title": "ignored", "url": "https://ignored"},
				},
				"browsed_content": []interface{}{
					map[string]interface{}{"url": "https://a", "title": "A", "content": strings.Repeat("x", 900)},
				},
			},
		},
	}
	entries := ExtractEvidence(result)
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0]["source_url"] != "https://a" {
		t.Errorf("entry = %+v", entries[0])
	}
	if snippet := entries[0]["snippet"].(string); len(snippet) != 500 {
		t.Errorf("snippet length = %d, want capped at 500", len(snippet))
	}
}

func TestExtractEvidenceFromSinglePage(t *testing.T) {
	result := tools.ToolResult{
		Success: true,
		Output:  tools.Page{URL: "https://a", Title: "A", Content: "body text"},
	}
	entries := ExtractEvidence(result)
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0]["snippet"] != "body text" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestExtractEvidenceSkipsMalformedItems(t *testing.T) {
	result := tools.ToolResult{
		Success: true,
		Output: []interface{}{
			"not a map",
			map[string]interface{}{"unrelated": 1},
			map[string]interface{}{"url": "https://ok", "title": "ok"},
			nil,
		},
	}
	entries := ExtractEvidence(result)
	if len(entries) != 1 || entries[0]["source_url"] != "https://ok" {
		t.Errorf("entries = %+v", entries)
	}

	if got := ExtractEvidence(tools.ToolResult{Success: true, Output: nil}); len(got) != 0 {
		t.Errorf("nil output produced %+v", got)
	}
	if got := ExtractEvidence(tools.ToolResult{Success: true, Output: 42}); len(got) != 0 {
		t.Errorf("scalar output produced %+v", got)
	}
}

func TestExtractClaims(t *testing.T) {
	result := tools.ToolResult{
		Success: true,
		Output: map[string]interface{}{
			"claim":              "water boils at 100C at sea level",
			"status":             "supported",
			"supporting_sources": float64(2),
			"validation_sources": []interface{}{},
		},
	}
	claims := ExtractClaims(result)
	if len(claims) != 1 {
		t.Fatalf("got %d claims", len(claims))
	}
	c := claims[0]
	if c["text"] != "water boils at 100C at sea level" || c["status"] != "supported" || c["supporting_sources"] != 2 {
		t.Errorf("claim = %+v", c)
	}
}

func TestExtractClaimsDefaultsAndSkips(t *testing.T) {
	// Missing status defaults to uncertain
	claims := ExtractClaims(tools.ToolResult{Success: true, Output: map[string]interface{}{"claim": "x"}})
	if len(claims) != 1 || claims[0]["status"] != "uncertain" {
		t.Errorf("claims = %+v", claims)
	}
	// No claim text means no entry
	if got := ExtractClaims(tools.ToolResult{Success: true, Output: map[string]interface{}{"status": "supported"}}); len(got) != 0 {
		t.Errorf("claims = %+v", got)
	}
	if got := ExtractClaims(tools.ToolResult{Success: true, Output: "scalar"}); len(got) != 0 {
		t.Errorf("claims = %+v", got)
	}
}

func TestExtractReportMarkers(t *testing.T) {
	report, ok := extractReport("preamble <report>  the report body </report> trailer")
	if !ok || report != "the report body" {
		t.Errorf("got %q ok=%v", report, ok)
	}
	if _, ok := extractReport("<report> unterminated"); ok {
		t.Error("unterminated marker accepted")
	}
	if _, ok := extractReport("no markers at all"); ok {
		t.Error("absent markers accepted")
	}
	if _, ok := extractReport("</report> backwards <report>"); ok {
		t.Error("reversed markers accepted")
	}
}
