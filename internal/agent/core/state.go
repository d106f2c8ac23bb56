package core

import (
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/agent/provider"
)

// Phase is the loop's view of what the research is currently doing
type Phase string

const (
	PhasePlanning           Phase = "planning"
	PhaseInformationSeeking Phase = "information_seeking"
	PhaseReflection         Phase = "reflection"
	PhaseReportGeneration   Phase = "report_generation"
)

// ToolCallRecord logs one executed tool call
type ToolCallRecord struct {
	Tool      string    `json:"tool"`
	Args      string    `json:"args"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentState accumulates everything a run produces. One instance per run,
// mutated only by the loop and read by the onStep callback.
type AgentState struct {
	RunID        string
	Messages     []provider.ChatMessage
	CurrentPhase Phase
	StepCount    int
	TokenUsage   provider.Usage
	ToolCalls    []ToolCallRecord
	Evidence     []map[string]interface{}
	Claims       []map[string]interface{}
	ReportDrafts []string
	IsComplete   bool
	Err          string
}

func NewAgentState(runID string) *AgentState {
	return &AgentState{
		RunID:        runID,
		CurrentPhase: PhasePlanning,
	}
}

func (s *AgentState) AddMessage(msg provider.ChatMessage) {
	s.Messages = append(s.Messages, msg)
}

func (s *AgentState) UpdateUsage(usage provider.Usage) {
	s.TokenUsage.PromptTokens += usage.PromptTokens
	s.TokenUsage.CompletionTokens += usage.CompletionTokens
	s.TokenUsage.TotalTokens += usage.TotalTokens
}

// FinalReport returns the latest report draft, empty when none exists
func (s *AgentState) FinalReport() string {
	if len(s.ReportDrafts) == 0 {
		return ""
	}
	return s.ReportDrafts[len(s.ReportDrafts)-1]
}
