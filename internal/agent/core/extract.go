package core

import (
	"encoding/json"
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/agent/tools"
)

const snippetLimit = 500

// ExtractEvidence pulls source entries out of a successful result from an
// evidence-tagged tool. It is a pure function of the result: malformed or
// missing fields are skipped silently, never raised.
func ExtractEvidence(result tools.ToolResult) []map[string]interface{} {
	output := normalize(result.Output)
	now := time.Now().UTC().Format(time.RFC3339)

	var out []map[string]interface{}
	switch v := output.(type) {
	case []interface{}:
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			// Batch results nest browsed pages per query
			if browsed, ok := m["browsed_content"].([]interface{}); ok {
				for _, b := range browsed {
					bm, ok := b.(map[string]interface{})
					if !ok {
						continue
					}
					if e := evidenceEntry(bm, "content", now); e != nil {
						out = append(out, e)
					}
				}
				continue
			}
			if e := evidenceEntry(m, "snippet", now); e != nil {
				out = append(out, e)
			}
		}
	case map[string]interface{}:
		snippetKey := "content"
		if _, ok := v["content"]; !ok {
			snippetKey = "snippet"
		}
		if e := evidenceEntry(v, snippetKey, now); e != nil {
			out = append(out, e)
		}
	}
	return out
}

func evidenceEntry(m map[string]interface{}, snippetKey, retrievedAt string) map[string]interface{} {
	url := stringField(m, "url")
	title := stringField(m, "title")
	snippet := stringField(m, snippetKey)
	if url == "" && title == "" && snippet == "" {
		return nil
	}
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}
	return map[string]interface{}{
		"source_url":   url,
		"source_title": title,
		"snippet":      snippet,
		"retrieved_at": retrievedAt,
	}
}

// ExtractClaims pulls validated-claim entries out of a successful result
// from a claims-tagged tool
func ExtractClaims(result tools.ToolResult) []map[string]interface{} {
	m, ok := normalize(result.Output).(map[string]interface{})
	if !ok {
		return nil
	}
	text := stringField(m, "claim")
	if text == "" {
		return nil
	}
	status := stringField(m, "status")
	if status == "" {
		status = "uncertain"
	}
	return []map[string]interface{}{{
		"text":               text,
		"status":             status,
		"supporting_sources": intField(m, "supporting_sources"),
	}}
}

// normalize reduces a tool output to plain maps and slices via a JSON
// round trip, so extraction never depends on the tool's concrete types
func normalize(output interface{}) interface{} {
	if output == nil {
		return nil
	}
	switch output.(type) {
	case map[string]interface{}, []interface{}:
		return output
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func intField(m map[string]interface{}, key string) int {
	switch n := m[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
