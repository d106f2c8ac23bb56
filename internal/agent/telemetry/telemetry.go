package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors served on /metrics by the HTTP server
var (
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_agent_steps_total",
		Help: "Agent loop steps taken, by phase.",
	}, []string{"phase"})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_tool_calls_total",
		Help: "Tool calls executed, by tool and outcome.",
	}, []string{"tool", "outcome"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_tokens_total",
		Help: "Tokens consumed, by kind.",
	}, []string{"kind"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_runs_total",
		Help: "Research runs finished, by outcome.",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "deepresearch_run_duration_seconds",
		Help:    "Wall-clock duration of research runs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// Telemetry tracks run metrics and mirrors them to the log
type Telemetry struct {
	logger *log.Logger
	mu     sync.Mutex

	totalRuns      int64
	failedRuns     int64
	totalSteps     int64
	totalToolCalls int64
	totalTokens    int64
}

func New() *Telemetry {
	return &Telemetry{
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
	}
}

// RecordStep records one loop step in the given phase
func (t *Telemetry) RecordStep(phase string) {
	stepsTotal.WithLabelValues(phase).Inc()
	t.mu.Lock()
	t.totalSteps++
	t.mu.Unlock()
}

// RecordToolCall records one executed tool call
func (t *Telemetry) RecordToolCall(tool string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	t.mu.Lock()
	t.totalToolCalls++
	t.mu.Unlock()
	t.logger.Printf("Tool Call: tool=%s outcome=%s duration=%v", tool, outcome, duration)
}

// RecordTokens records token usage from one completion
func (t *Telemetry) RecordTokens(promptTokens, completionTokens int) {
	tokensTotal.WithLabelValues("prompt").Add(float64(promptTokens))
	tokensTotal.WithLabelValues("completion").Add(float64(completionTokens))
	t.mu.Lock()
	t.totalTokens += int64(promptTokens + completionTokens)
	t.mu.Unlock()
}

// RecordRun records a finished run
func (t *Telemetry) RecordRun(success bool, duration time.Duration, totalTokens int) {
	outcome := "success"
	t.mu.Lock()
	t.totalRuns++
	if !success {
		t.failedRuns++
		outcome = "failure"
	}
	t.mu.Unlock()
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Observe(duration.Seconds())
	t.logger.Printf("Run Finished: outcome=%s duration=%v tokens=%d", outcome, duration, totalTokens)
}

// Snapshot is a point-in-time view of the in-memory counters, served by
// the HTTP API's stats endpoint
type Snapshot struct {
	TotalRuns      int64 `json:"total_runs"`
	FailedRuns     int64 `json:"failed_runs"`
	TotalSteps     int64 `json:"total_steps"`
	TotalToolCalls int64 `json:"total_tool_calls"`
	TotalTokens    int64 `json:"total_tokens"`
}

func (t *Telemetry) GetSnapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		TotalRuns:      t.totalRuns,
		FailedRuns:     t.failedRuns,
		TotalSteps:     t.totalSteps,
		TotalToolCalls: t.totalToolCalls,
		TotalTokens:    t.totalTokens,
	}
}
