package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/internal/agent/provider"
)

// ReflectTool is a structured marker: the reflection itself happens in
// the model's reasoning, the tool just gives it shape. Registered when
// the reflection ablation is enabled.
type ReflectTool struct{}

func NewReflectTool() *ReflectTool { return &ReflectTool{} }

func (t *ReflectTool) Schema() provider.ToolSchema {
	return provider.ToolSchema{
		Name:        "reflect",
		Description: "Perform structured reflection on gathered information. Use this to verify claims, identify gaps, check for conflicts, and plan next steps in the research process.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"context": map[string]interface{}{
					"type":        "string",
					"description": "Summary of current research context",
				},
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The reflection question to consider",
				},
				"evidence_summary": map[string]interface{}{
					"type":        "string",
					"description": "Summary of relevant evidence gathered",
				},
			},
			"required": []string{"context", "question"},
		},
	}
}

func (t *ReflectTool) Capabilities() []Capability { return nil }

func (t *ReflectTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	reflCtx := stringArg(args, "context")
	question := stringArg(args, "question")
	if reflCtx == "" || question == "" {
		return Failure("context and question are required")
	}
	return ToolResult{
		Success: true,
		Output: map[string]interface{}{
			"reflection_type":  "structured",
			"context":          reflCtx,
			"question":         question,
			"evidence_summary": stringArg(args, "evidence_summary"),
			"instruction":      "Consider the question in context of the evidence. Identify gaps, conflicts, or areas needing verification.",
		},
		Metadata: map[string]interface{}{"reflection": true},
	}
}

// CrossValidateTool checks a claim against fresh searches and grades how
// well the hits support it. Registered with the reflection ablation.
type CrossValidateTool struct {
	searcher Searcher
}

func NewCrossValidateTool(searcher Searcher) *CrossValidateTool {
	return &CrossValidateTool{searcher: searcher}
}

func (t *CrossValidateTool) Schema() provider.ToolSchema {
	return provider.ToolSchema{
		Name:        "cross_validate",
		Description: "Cross-validate a claim by checking multiple sources. Use this to verify important factual claims before including them in the final report.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"claim": map[string]interface{}{
					"type":        "string",
					"description": "The claim to validate",
				},
				"original_source": map[string]interface{}{
					"type":        "string",
					"description": "URL or description of the original source",
				},
				"search_queries": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Additional search queries to find corroborating sources",
				},
			},
			"required": []string{"claim"},
		},
	}
}

func (t *CrossValidateTool) Capabilities() []Capability { return []Capability{CapClaims} }

func (t *CrossValidateTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	claim := strings.TrimSpace(stringArg(args, "claim"))
	if claim == "" {
		return Failure("claim is required")
	}

	queries := stringSliceArg(args, "search_queries")
	if len(queries) == 0 {
		queries = defaultValidationQueries(claim)
	}
	if len(queries) > 3 {
		queries = queries[:3]
	}

	var hits []SearchResult
	for _, q := range queries {
		results, err := t.searcher.Search(ctx, q, 3)
		if err != nil {
			continue
		}
		hits = append(hits, results...)
	}

	// Crude lexical overlap check; grading beyond this belongs to the
	// model's own reflection.
	supporting := 0
	claimWords := strings.Fields(strings.ToLower(claim))
	if len(claimWords) > 5 {
		claimWords = claimWords[:5]
	}
	for _, hit := range hits {
		snippet := strings.ToLower(hit.Snippet)
		for _, w := range claimWords {
			if strings.Contains(snippet, w) {
				supporting++
				break
			}
		}
	}

	status := "uncertain"
	switch {
	case supporting >= 2:
		status = "supported"
	case supporting == 1:
		status = "partially_supported"
	}

	validationSources := hits
	if len(validationSources) > 5 {
		validationSources = validationSources[:5]
	}

	return ToolResult{
		Success: true,
		Output: map[string]interface{}{
			"claim":              claim,
			"original_source":    stringArg(args, "original_source"),
			"validation_sources": validationSources,
			"supporting_sources": supporting,
			"status":             status,
		},
		Metadata: map[string]interface{}{
			"cross_validated":  true,
			"supporting_count": supporting,
		},
	}
}

func defaultValidationQueries(claim string) []string {
	head := claim
	if len(head) > 100 {
		head = head[:100]
	}
	short := claim
	if len(short) > 50 {
		short = short[:50]
	}
	return []string{
		head,
		fmt.Sprintf("verify %q", short),
		fmt.Sprintf("fact check %s", short),
	}
}
