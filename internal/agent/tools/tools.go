package tools

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/provider"
)

// Capability tags what a tool's successful output contributes to the run.
// Downstream extraction dispatches on these tags, never on tool names.
type Capability string

const (
	// CapEvidence marks tools whose output carries source material
	// (titles, urls, snippets)
	CapEvidence Capability = "evidence"
	// CapClaims marks tools whose output carries validated claims
	CapClaims Capability = "claims"
)

// Tool is a single capability the model can invoke
type Tool interface {
	// Schema returns the immutable function-calling schema
	Schema() provider.ToolSchema
	// Capabilities returns the tool's output tags (nil for none)
	Capabilities() []Capability
	// Execute runs the tool. Expected failures (missing resource, bad
	// input, downstream error) come back as a failed ToolResult, never
	// as a panic.
	Execute(ctx context.Context, args map[string]interface{}) ToolResult
}

// ToolResult is the uniform outcome of a tool execution
type ToolResult struct {
	Success  bool                   `json:"success"`
	Output   interface{}            `json:"output,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Failure builds a failed result with a formatted error message
func Failure(format string, a ...interface{}) ToolResult {
	return ToolResult{Success: false, Error: fmt.Sprintf(format, a...)}
}

// ToolSet is the name-keyed registry of tools for a single run. ToolSets
// hold per-run state (todo list, workdir, evidence index) and must never
// be shared between runs.
type ToolSet struct {
	tools  map[string]Tool
	order  []string
	logger *log.Logger
}

// NewToolSet builds the registry for one run: the minimal set is always
// registered, the rest is controlled by ablation flags.
func NewToolSet(cfg config.ToolsConfig, workdir string) (*ToolSet, error) {
	searcher, err := NewSearcher(cfg.WebSearch)
	if err != nil {
		return nil, fmt.Errorf("building web searcher: %w", err)
	}
	fetcher := NewChromedpFetcher(cfg.WebFetch)

	ts := &ToolSet{
		tools:  make(map[string]Tool),
		logger: log.New(os.Stdout, "[TOOLS] ", log.LstdFlags),
	}

	searchTool := NewWebSearchTool(searcher, cfg.WebSearch.MaxResults)
	browseTool := NewWebBrowseTool(fetcher)

	ts.Register(searchTool)
	ts.Register(browseTool)
	ts.Register(NewBatchWebSurferTool(searchTool, browseTool))
	ts.Register(NewFileWriteTool(workdir))
	ts.Register(NewFileReadTool(workdir))

	if cfg.Ablations.EnableTodoState {
		ts.Register(NewTodoTool())
	}
	if cfg.Ablations.EnablePatchEditing {
		ts.Register(NewFileEditTool(workdir))
	}
	if cfg.Ablations.EnableReflection {
		ts.Register(NewReflectTool())
		ts.Register(NewCrossValidateTool(searcher))
	}
	if cfg.Ablations.EnableEvidenceIndex {
		idx, err := NewEvidenceIndexTool()
		if err != nil {
			return nil, fmt.Errorf("building evidence index: %w", err)
		}
		ts.Register(idx)
	}
	return ts, nil
}

// Register adds a tool under its schema name, keeping registration order
func (ts *ToolSet) Register(t Tool) {
	name := t.Schema().Name
	if _, exists := ts.tools[name]; !exists {
		ts.order = append(ts.order, name)
	}
	ts.tools[name] = t
}

// Names lists registered tool names in registration order
func (ts *ToolSet) Names() []string {
	out := make([]string, len(ts.order))
	copy(out, ts.order)
	return out
}

// Schemas returns all tool schemas in registration order
func (ts *ToolSet) Schemas() []provider.ToolSchema {
	out := make([]provider.ToolSchema, 0, len(ts.order))
	for _, name := range ts.order {
		out = append(out, ts.tools[name].Schema())
	}
	return out
}

// Capabilities returns the tags of the named tool (nil when unknown)
func (ts *ToolSet) Capabilities(name string) []Capability {
	t, ok := ts.tools[name]
	if !ok {
		return nil
	}
	return t.Capabilities()
}

// Execute dispatches to the named tool. An unknown name is an expected
// failure, not an error: the model sees it and can recover.
func (ts *ToolSet) Execute(ctx context.Context, name string, args map[string]interface{}) ToolResult {
	t, ok := ts.tools[name]
	if !ok {
		ts.logger.Printf("unknown tool requested: %s", name)
		return Failure("unknown tool: %s", name)
	}
	return t.Execute(ctx, args)
}

// TodoState exposes the todo tool's state for external introspection.
// Returns nil when no todo tool is registered.
func (ts *ToolSet) TodoState() map[string]interface{} {
	t, ok := ts.tools["todo"]
	if !ok {
		return nil
	}
	todo, ok := t.(*TodoTool)
	if !ok {
		return nil
	}
	return todo.State()
}

// EvidenceSink returns the evidence index tool when registered, so the
// loop can feed extracted evidence back into it. Nil when absent.
func (ts *ToolSet) EvidenceSink() *EvidenceIndexTool {
	t, ok := ts.tools["evidence_search"]
	if !ok {
		return nil
	}
	idx, _ := t.(*EvidenceIndexTool)
	return idx
}
