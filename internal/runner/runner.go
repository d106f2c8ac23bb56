package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/core"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/provider"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/tools"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

// Engine modes
const (
	ModeDeepResearch = "deep_research"
	ModeBaseline     = "baseline"
)

// progressChannel is the redis pub/sub channel for one run's step events
func progressChannel(runID string) string { return "run:progress:" + runID }

// statusKey is the redis cache key holding one run's latest progress snapshot
func statusKey(runID string) string { return "run:status:" + runID }

// Progress is one step snapshot published while a run executes
type Progress struct {
	RunID      string                 `json:"run_id"`
	Step       int                    `json:"step"`
	Phase      string                 `json:"phase"`
	Tokens     int                    `json:"tokens"`
	Evidence   int                    `json:"evidence"`
	Claims     int                    `json:"claims"`
	Todo       map[string]interface{} `json:"todo,omitempty"`
	IsComplete bool                   `json:"is_complete"`
	Err        string                 `json:"error,omitempty"`
}

// Result is what a finished run produced
type Result struct {
	RunID    string
	Report   string
	State    *core.AgentState
	Duration time.Duration
}

// Runner executes research runs end to end: it builds a fresh per-run
// ToolSet and workdir, drives the ReAct loop, and persists progress and
// outcomes as it goes. Store and Rdb are optional; a nil Store runs
// without persistence (CLI mode) and a nil Rdb skips progress fan-out.
type Runner struct {
	Cfg       *config.Config
	Provider  provider.ModelProvider
	Store     *store.Store
	Rdb       *redis.Client
	Telemetry *telemetry.Telemetry
	Logger    *log.Logger
}

func New(cfg *config.Config, p provider.ModelProvider, st *store.Store, rdb *redis.Client, tel *telemetry.Telemetry) *Runner {
	return &Runner{
		Cfg:       cfg,
		Provider:  p,
		Store:     st,
		Rdb:       rdb,
		Telemetry: tel,
		Logger:    log.New(os.Stdout, "[RUNNER] ", log.LstdFlags),
	}
}

// Execute runs one research query under the given run ID and mode.
// The run ID doubles as the workdir name under the configured data dir.
func (r *Runner) Execute(ctx context.Context, runID, query, mode string) (*Result, error) {
	start := time.Now()
	baseline := mode == ModeBaseline

	workdir := filepath.Join(r.Cfg.Agent.Workdir, runID)
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run workdir: %w", err)
	}

	toolset, err := tools.NewToolSet(r.Cfg.Tools, workdir)
	if err != nil {
		return nil, fmt.Errorf("building toolset: %w", err)
	}

	agent := core.NewReActAgent(r.Provider, toolset, r.Cfg.Agent, baseline, r.Telemetry)

	if r.Store != nil {
		if err := r.Store.StartRun(ctx, runID); err != nil {
			r.Logger.Printf("start run %s: %v", runID, err)
		}
	}

	state := core.NewAgentState(runID)
	persistedEvents := 0
	state = agent.Run(ctx, query, state, func(s *core.AgentState) {
		r.onStep(ctx, s, toolset, &persistedEvents)
	})

	duration := time.Since(start)
	report := state.FinalReport()

	outcome := "completed"
	var errMsg *string
	if state.Err != "" {
		outcome = "failed"
		errMsg = &state.Err
	}

	if r.Store != nil {
		r.persist(ctx, runID, state, report, outcome, errMsg)
	}
	r.publish(ctx, runID, Progress{
		RunID:      runID,
		Step:       state.StepCount,
		Phase:      string(state.CurrentPhase),
		Tokens:     state.TokenUsage.TotalTokens,
		Evidence:   len(state.Evidence),
		Claims:     len(state.Claims),
		Todo:       toolset.TodoState(),
		IsComplete: true,
		Err:        state.Err,
	})
	if r.Telemetry != nil {
		r.Telemetry.RecordRun(state.Err == "", duration, state.TokenUsage.TotalTokens)
	}

	r.Logger.Printf("run %s %s: %d steps, %d tokens, %d evidence, %d claims in %s",
		runID, outcome, state.StepCount, state.TokenUsage.TotalTokens,
		len(state.Evidence), len(state.Claims), duration.Round(time.Millisecond))

	if state.Err != "" {
		return &Result{RunID: runID, Report: report, State: state, Duration: duration}, fmt.Errorf("run failed: %s", state.Err)
	}
	return &Result{RunID: runID, Report: report, State: state, Duration: duration}, nil
}

func (r *Runner) onStep(ctx context.Context, s *core.AgentState, toolset *tools.ToolSet, persisted *int) {
	if r.Store != nil {
		if err := r.Store.UpdateRunProgress(ctx, s.RunID, string(s.CurrentPhase), s.StepCount,
			s.TokenUsage.PromptTokens, s.TokenUsage.CompletionTokens, s.TokenUsage.TotalTokens); err != nil {
			r.Logger.Printf("progress update %s: %v", s.RunID, err)
		}
		// Persist the tool calls this step added
		for ; *persisted < len(s.ToolCalls); *persisted++ {
			rec := s.ToolCalls[*persisted]
			if err := r.Store.AppendRunEvent(ctx, s.RunID, rec.Tool, rec.Args, rec.Success); err != nil {
				r.Logger.Printf("append run event %s: %v", s.RunID, err)
			}
		}
	}
	r.publish(ctx, s.RunID, Progress{
		RunID:    s.RunID,
		Step:     s.StepCount,
		Phase:    string(s.CurrentPhase),
		Tokens:   s.TokenUsage.TotalTokens,
		Evidence: len(s.Evidence),
		Claims:   len(s.Claims),
		Todo:     toolset.TodoState(),
	})
}

func (r *Runner) persist(ctx context.Context, runID string, state *core.AgentState, report, outcome string, errMsg *string) {
	if err := r.Store.FinishRun(ctx, runID, outcome, report, errMsg); err != nil {
		r.Logger.Printf("finish run %s: %v", runID, err)
	}
	if err := r.Store.InsertEvidence(ctx, runID, state.Evidence); err != nil {
		r.Logger.Printf("persist evidence %s: %v", runID, err)
	}
	if err := r.Store.InsertClaims(ctx, runID, state.Claims); err != nil {
		r.Logger.Printf("persist claims %s: %v", runID, err)
	}
}

// publish pushes a progress snapshot to redis: a pub/sub message for live
// subscribers plus a cached status key for polling clients
func (r *Runner) publish(ctx context.Context, runID string, p Progress) {
	if r.Rdb == nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.Rdb.Publish(ctx, progressChannel(runID), payload).Err(); err != nil {
		r.Logger.Printf("publish progress %s: %v", runID, err)
	}
	if err := r.Rdb.Set(ctx, statusKey(runID), payload, time.Hour).Err(); err != nil {
		r.Logger.Printf("cache status %s: %v", runID, err)
	}
}

// CachedStatus reads the latest progress snapshot for a run, if any
func (r *Runner) CachedStatus(ctx context.Context, runID string) (*Progress, error) {
	if r.Rdb == nil {
		return nil, nil
	}
	raw, err := r.Rdb.Get(ctx, statusKey(runID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Progress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
