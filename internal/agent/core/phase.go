package core

import "strings"

// InferPhase derives the current research phase from state alone. It is
// recomputed from scratch every step, so it holds no memory of its own.
func InferPhase(state *AgentState, maxSteps int, lateRunFrac float64) Phase {
	if state.StepCount <= 2 {
		return PhasePlanning
	}

	recent := state.ToolCalls
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	for _, tc := range recent {
		if tc.Tool == "reflect" || tc.Tool == "cross_validate" {
			return PhaseReflection
		}
	}

	wroteFile := false
	for _, tc := range recent {
		if tc.Tool == "file_write" || tc.Tool == "file_edit" {
			wroteFile = true
			break
		}
	}
	if wroteFile {
		last3 := state.ToolCalls
		if len(last3) > 3 {
			last3 = last3[len(last3)-3:]
		}
		for _, tc := range last3 {
			if strings.Contains(strings.ToLower(tc.Args), "report") {
				return PhaseReportGeneration
			}
		}
	}

	for _, tc := range recent {
		switch tc.Tool {
		case "web_search", "web_browse", "batch_web_surfer":
			return PhaseInformationSeeking
		}
	}

	if lateRunFrac > 0 && float64(state.StepCount) > float64(maxSteps)*lateRunFrac {
		return PhaseReportGeneration
	}

	return PhaseInformationSeeking
}
