package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/deepresearch/internal/agent/provider"
)

// EvidenceIndexTool keeps an in-memory BM25 index over the evidence a run
// has gathered so far, giving the model recall over its own findings.
// The loop feeds extracted evidence in through Add; the model queries it
// with the evidence_search tool. Per-run state, registered when the
// evidence-index ablation is enabled.
type EvidenceIndexTool struct {
	index bleve.Index
	meta  map[string]map[string]interface{}
	next  int
	mu    sync.RWMutex
}

func NewEvidenceIndexTool() (*EvidenceIndexTool, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &EvidenceIndexTool{
		index: index,
		meta:  make(map[string]map[string]interface{}),
	}, nil
}

func (t *EvidenceIndexTool) Schema() provider.ToolSchema {
	return provider.ToolSchema{
		Name:        "evidence_search",
		Description: "Search over the evidence gathered so far in this research run. Use this to recall sources you have already found instead of searching the web again.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query over gathered evidence",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (default: 5)",
					"default":     5,
				},
			},
			"required": []string{"query"},
		},
	}
}

// No capability tags: hits are recalled evidence, indexing them again
// would loop.
func (t *EvidenceIndexTool) Capabilities() []Capability { return nil }

// Add indexes one evidence entry (tolerant of missing fields)
func (t *EvidenceIndexTool) Add(entry map[string]interface{}) error {
	if entry == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	id := fmt.Sprintf("ev-%d", t.next)
	doc := map[string]interface{}{
		"title":   firstString(entry, "source_title", "title"),
		"url":     firstString(entry, "source_url", "url"),
		"snippet": asString(entry["snippet"]),
	}
	if err := t.index.Index(id, doc); err != nil {
		return err
	}
	t.meta[id] = entry
	return nil
}

// Len reports how many evidence entries are indexed
func (t *EvidenceIndexTool) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.meta)
}

func (t *EvidenceIndexTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return Failure("query is required")
	}
	k := intArg(args, "max_results", 5)

	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.meta) == 0 {
		return ToolResult{
			Success:  true,
			Output:   []map[string]interface{}{},
			Metadata: map[string]interface{}{"query": query, "indexed": 0},
		}
	}

	searchReq := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), k, 0, false)
	res, err := t.index.Search(searchReq)
	if err != nil {
		return Failure("evidence search failed: %v", err)
	}

	out := make([]map[string]interface{}, 0, len(res.Hits))
	for i, hit := range res.Hits {
		entry, ok := t.meta[hit.ID]
		if !ok {
			continue
		}
		out = append(out, map[string]interface{}{
			"title":   firstString(entry, "source_title", "title"),
			"url":     firstString(entry, "source_url", "url"),
			"snippet": asString(entry["snippet"]),
			"score":   hit.Score,
			"rank":    i + 1,
		})
	}
	return ToolResult{
		Success:  true,
		Output:   out,
		Metadata: map[string]interface{}{"query": query, "indexed": len(t.meta)},
	}
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
