package telemetry

import (
	"testing"
	"time"
)

func TestSnapshotTracksCounters(t *testing.T) {
	tel := New()

	tel.RecordStep("planning")
	tel.RecordStep("information_seeking")
	tel.RecordToolCall("web_search", true, 50*time.Millisecond)
	tel.RecordToolCall("web_browse", false, 10*time.Millisecond)
	tel.RecordTokens(100, 40)
	tel.RecordRun(true, 2*time.Second, 140)
	tel.RecordRun(false, time.Second, 0)

	snap := tel.GetSnapshot()
	if snap.TotalSteps != 2 {
		t.Errorf("steps = %d", snap.TotalSteps)
	}
	if snap.TotalToolCalls != 2 {
		t.Errorf("tool calls = %d", snap.TotalToolCalls)
	}
	if snap.TotalTokens != 140 {
		t.Errorf("tokens = %d", snap.TotalTokens)
	}
	if snap.TotalRuns != 2 || snap.FailedRuns != 1 {
		t.Errorf("runs = %d failed = %d", snap.TotalRuns, snap.FailedRuns)
	}
}

func TestSnapshotIsolatedPerInstance(t *testing.T) {
	a, b := New(), New()
	a.RecordStep("planning")
	if got := b.GetSnapshot().TotalSteps; got != 0 {
		t.Errorf("fresh instance steps = %d", got)
	}
}
