package provider

import "sort"

// toolCallDelta is one streamed fragment of a tool call. Index identifies
// which call the fragment belongs to; id, type and name appear on the first
// fragment (or a later one), arguments arrive as concatenable text pieces.
type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

// toolCallAccumulator reassembles streamed tool call fragments, keyed by
// each fragment's stream index
type toolCallAccumulator struct {
	calls map[int]*ToolCall
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{calls: make(map[int]*ToolCall)}
}

// addDelta folds one fragment into the call at its index. The first
// fragment establishes id and name; every fragment may append argument
// text. Later fragments can still fill in id/type/name if the first one
// omitted them.
func (a *toolCallAccumulator) addDelta(delta toolCallDelta) {
	tc, ok := a.calls[delta.Index]
	if !ok {
		tc = &ToolCall{ID: delta.ID, Type: delta.Type}
		tc.Function.Name = delta.Function.Name
		a.calls[delta.Index] = tc
	} else {
		// Fill-in only: once id/type/name are set they never change,
		// whatever later fragments claim.
		if tc.ID == "" {
			tc.ID = delta.ID
		}
		if tc.Type == "" {
			tc.Type = delta.Type
		}
		if tc.Function.Name == "" {
			tc.Function.Name = delta.Function.Name
		}
	}
	tc.Function.Arguments += delta.Function.Arguments
}

// toolCalls returns copies of every accumulated call ordered by index.
// Indices need not be contiguous; a gap never drops the calls after it.
func (a *toolCallAccumulator) toolCalls() []ToolCall {
	if len(a.calls) == 0 {
		return nil
	}
	indices := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	out := make([]ToolCall, 0, len(indices))
	for _, i := range indices {
		tc := *a.calls[i]
		if tc.Type == "" {
			tc.Type = "function"
		}
		out = append(out, tc)
	}
	return out
}
