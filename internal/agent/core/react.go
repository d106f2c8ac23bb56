package core

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/provider"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/tools"
)

// OnStep is called after every loop step with the freshly mutated state
type OnStep func(*AgentState)

// ReActAgent drives the reason-and-act loop: one completion per step,
// then either tool execution or completion detection.
type ReActAgent struct {
	provider       provider.ModelProvider
	toolset        *tools.ToolSet
	maxSteps       int
	minReportSteps int
	minReportChars int
	lateRunFrac    float64
	systemPrompt   string
	telemetry      *telemetry.Telemetry
	logger         *log.Logger
}

// NewReActAgent builds an agent for one run. Baseline mode swaps the
// research policy prompt for the stripped-down comparison prompt.
func NewReActAgent(p provider.ModelProvider, toolset *tools.ToolSet, cfg config.AgentConfig, baseline bool, tel *telemetry.Telemetry) *ReActAgent {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 50
	}
	minSteps := cfg.MinReportSteps
	if minSteps <= 0 {
		minSteps = 5
	}
	minChars := cfg.MinReportChars
	if minChars <= 0 {
		minChars = 1000
	}
	frac := cfg.LateRunFrac
	if frac <= 0 || frac > 1 {
		frac = 0.7
	}
	prompt := DeepResearchSystemPrompt
	if baseline {
		prompt = BaselineSystemPrompt
	}
	return &ReActAgent{
		provider:       p,
		toolset:        toolset,
		maxSteps:       maxSteps,
		minReportSteps: minSteps,
		minReportChars: minChars,
		lateRunFrac:    frac,
		systemPrompt:   prompt,
		telemetry:      tel,
		logger:         log.New(os.Stdout, "[REACT] ", log.LstdFlags),
	}
}

// Run executes the loop until completion, step budget exhaustion, or a
// terminal error. The returned state is the same instance the caller
// passed in; a terminal error lands in state.Err, not in a return value,
// because budget exhaustion and model completion share the same exit.
func (a *ReActAgent) Run(ctx context.Context, query string, state *AgentState, onStep OnStep) *AgentState {
	state.AddMessage(provider.ChatMessage{Role: provider.RoleSystem, Content: a.systemPrompt})
	state.AddMessage(provider.ChatMessage{Role: provider.RoleUser, Content: query})

	for state.StepCount < a.maxSteps && !state.IsComplete {
		state.StepCount++
		state.CurrentPhase = InferPhase(state, a.maxSteps, a.lateRunFrac)
		a.logger.Printf("run=%s step=%d/%d phase=%s", state.RunID, state.StepCount, a.maxSteps, state.CurrentPhase)
		if a.telemetry != nil {
			a.telemetry.RecordStep(string(state.CurrentPhase))
		}

		resp, err := a.provider.ChatCompletion(ctx, state.Messages, a.toolset.Schemas())
		if err != nil {
			// Provider errors are terminal for the run; tool-level
			// failures never land here.
			a.logger.Printf("run=%s step=%d failed: %v", state.RunID, state.StepCount, err)
			state.Err = err.Error()
			break
		}

		state.UpdateUsage(resp.Usage)
		if a.telemetry != nil {
			a.telemetry.RecordTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		}

		// The assistant message joins the history whether or not it
		// carries tool calls
		state.AddMessage(resp.Message)

		if resp.HasToolCalls() {
			a.executeToolCalls(ctx, resp.Message.ToolCalls, state)
		} else if resp.Message.Content != "" {
			a.detectCompletion(resp, state)
		}

		if onStep != nil {
			onStep(state)
		}
	}

	// A run that produced assistant text but never stored a draft still
	// gets one: the latest non-empty assistant message.
	if len(state.ReportDrafts) == 0 {
		for i := len(state.Messages) - 1; i >= 0; i-- {
			msg := state.Messages[i]
			if msg.Role == provider.RoleAssistant && msg.Content != "" {
				state.ReportDrafts = append(state.ReportDrafts, msg.Content)
				break
			}
		}
	}

	return state
}

// executeToolCalls runs every requested call in the model's order and
// appends the tool-role responses to the history
func (a *ReActAgent) executeToolCalls(ctx context.Context, calls []provider.ToolCall, state *AgentState) {
	for _, tc := range calls {
		t0 := time.Now()
		result := a.executeToolCall(ctx, tc)
		if a.telemetry != nil {
			a.telemetry.RecordToolCall(tc.Function.Name, result.Success, time.Since(t0))
		}

		content := result.Error
		if result.Output != nil {
			if raw, err := json.Marshal(result.Output); err == nil {
				content = string(raw)
			}
		}
		state.AddMessage(provider.ChatMessage{
			Role:       provider.RoleTool,
			ToolCallID: tc.ID,
			Content:    content,
		})

		state.ToolCalls = append(state.ToolCalls, ToolCallRecord{
			Tool:      tc.Function.Name,
			Args:      tc.Function.Arguments,
			Success:   result.Success,
			Timestamp: time.Now().UTC(),
		})

		if result.Success {
			a.extract(tc.Function.Name, result, state)
		}
	}
}

// executeToolCall parses the argument JSON and dispatches. Malformed
// arguments are an expected failure the model sees and can correct.
func (a *ReActAgent) executeToolCall(ctx context.Context, tc provider.ToolCall) tools.ToolResult {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		return tools.Failure("invalid JSON in tool arguments: %s", tc.Function.Arguments)
	}
	a.logger.Printf("executing tool: %s", tc.Function.Name)
	return a.toolset.Execute(ctx, tc.Function.Name, args)
}

// extract dispatches on the tool's capability tags, never its name
func (a *ReActAgent) extract(toolName string, result tools.ToolResult, state *AgentState) {
	for _, tag := range a.toolset.Capabilities(toolName) {
		switch tag {
		case tools.CapEvidence:
			entries := ExtractEvidence(result)
			state.Evidence = append(state.Evidence, entries...)
			if sink := a.toolset.EvidenceSink(); sink != nil {
				for _, e := range entries {
					if err := sink.Add(e); err != nil {
						a.logger.Printf("evidence index add failed: %v", err)
					}
				}
			}
		case tools.CapClaims:
			state.Claims = append(state.Claims, ExtractClaims(result)...)
		}
	}
}

// detectCompletion checks a toolless assistant message for the report.
// Explicit markers always win; otherwise a natural stop after enough
// steps with a substantial answer counts.
func (a *ReActAgent) detectCompletion(resp provider.ModelResponse, state *AgentState) {
	content := resp.Message.Content
	if report, ok := extractReport(content); ok {
		state.IsComplete = true
		state.ReportDrafts = append(state.ReportDrafts, report)
		return
	}
	if resp.FinishReason == "stop" && state.StepCount > a.minReportSteps && len(content) > a.minReportChars {
		state.IsComplete = true
		state.ReportDrafts = append(state.ReportDrafts, content)
	}
}

func extractReport(content string) (string, bool) {
	start := strings.Index(content, "<report>")
	end := strings.Index(content, "</report>")
	if start < 0 || end < 0 || end < start {
		return "", false
	}
	return strings.TrimSpace(content[start+len("<report>") : end]), true
}
