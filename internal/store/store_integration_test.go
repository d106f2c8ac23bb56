package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/deepresearch/internal/server"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

func startPostgres(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "deepresearch",
			"POSTGRES_PASSWORD": "deepresearch",
			"POSTGRES_DB":       "deepresearch",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(1).WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start postgres: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := pg.Host(ctx)
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get host: %v", err)
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", "deepresearch", "deepresearch", host, port.Port(), "deepresearch")
	return pg, dsn
}

func findMigrationsDir(t *testing.T) string {
	t.Helper()
	cwd, _ := os.Getwd()
	for i := 0; i < 6; i++ {
		candidate := filepath.Join(cwd, "migrations")
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return "file://" + candidate
		}
		cwd = filepath.Dir(cwd)
	}
	t.Fatalf("could not locate migrations directory from test cwd")
	return ""
}

func TestStoreRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pg, dsn := startPostgres(t, ctx)
	defer func() { _ = pg.Terminate(ctx) }()

	migDir := findMigrationsDir(t)
	var migErr error
	for i := 0; i < 6; i++ {
		migErr = server.Migrate(migDir, dsn, "up", 0)
		if migErr == nil {
			break
		}
		time.Sleep(300 * time.Millisecond)
	}
	if migErr != nil {
		t.Fatalf("migrate up failed after retries: %v", migErr)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}

	// users
	if err := st.CreateUser(ctx, "alice@example.com", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	uid, hash, err := st.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || uid == "" || hash != "hash" {
		t.Fatalf("get user: id=%q hash=%q err=%v", uid, hash, err)
	}
	if err := st.CreateUser(ctx, "alice@example.com", "hash"); err == nil {
		t.Fatal("duplicate email accepted")
	}

	// topics
	topicID, err := st.CreateTopic(ctx, uid, "Quantum", "state of quantum computing", "deep_research", "@daily")
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}
	topics, err := st.ListTopics(ctx, uid)
	if err != nil || len(topics) != 1 || topics[0].ScheduleCron != "@daily" {
		t.Fatalf("list topics: %+v err=%v", topics, err)
	}
	if last, err := st.LatestRunTime(ctx, topicID); err != nil || last != nil {
		t.Fatalf("latest run time before any run: %v err=%v", last, err)
	}

	// runs
	runID, err := st.CreateRun(ctx, uid, &topicID, "state of quantum computing", "deep_research")
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := st.StartRun(ctx, runID); err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := st.UpdateRunProgress(ctx, runID, "information_seeking", 3, 100, 50, 150); err != nil {
		t.Fatalf("update progress: %v", err)
	}
	run, err := st.GetRun(ctx, runID, uid)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != store.RunStatusRunning || run.Phase != "information_seeking" || run.StepCount != 3 || run.TotalTokens != 150 {
		t.Fatalf("run = %+v", run)
	}
	if run.StartedAt == nil {
		t.Fatal("started_at not set")
	}

	// other users cannot see the run
	if _, err := st.GetRun(ctx, runID, "00000000-0000-0000-0000-000000000000"); err == nil {
		t.Fatal("run visible to wrong user")
	}

	// events, including malformed args
	if err := st.AppendRunEvent(ctx, runID, "web_search", `{"query":"quantum"}`, true); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := st.AppendRunEvent(ctx, runID, "web_browse", "not-json", false); err != nil {
		t.Fatalf("append malformed event: %v", err)
	}
	events, err := st.ListRunEvents(ctx, runID)
	if err != nil || len(events) != 2 {
		t.Fatalf("list events: %+v err=%v", events, err)
	}
	if events[0].Tool != "web_search" || !events[0].Success || events[1].Success {
		t.Fatalf("events = %+v", events)
	}

	// evidence and claims
	evidence := []map[string]interface{}{
		{"source_url": "https://a", "source_title": "A", "snippet": "alpha", "retrieved_at": time.Now().UTC().Format(time.RFC3339)},
		{"source_url": "https://b", "source_title": "B", "snippet": "beta"},
	}
	if err := st.InsertEvidence(ctx, runID, evidence); err != nil {
		t.Fatalf("insert evidence: %v", err)
	}
	gotEvidence, err := st.ListEvidence(ctx, runID)
	if err != nil || len(gotEvidence) != 2 {
		t.Fatalf("list evidence: %+v err=%v", gotEvidence, err)
	}
	if gotEvidence[0].AuthorityTier != "other" {
		t.Errorf("authority tier default = %q", gotEvidence[0].AuthorityTier)
	}
	claims := []map[string]interface{}{
		{"text": "qubits decohere", "status": "supported", "supporting_sources": float64(2)},
	}
	if err := st.InsertClaims(ctx, runID, claims); err != nil {
		t.Fatalf("insert claims: %v", err)
	}
	gotClaims, err := st.ListClaims(ctx, runID)
	if err != nil || len(gotClaims) != 1 || gotClaims[0].SupportingSources != 2 {
		t.Fatalf("list claims: %+v err=%v", gotClaims, err)
	}

	// finish
	if err := st.FinishRun(ctx, runID, store.RunStatusCompleted, "# Report", nil); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	run, err = st.GetRun(ctx, runID, uid)
	if err != nil || run.Status != store.RunStatusCompleted || run.Report != "# Report" || run.FinishedAt == nil {
		t.Fatalf("finished run = %+v err=%v", run, err)
	}

	if last, err := st.LatestRunTime(ctx, topicID); err != nil || last == nil {
		t.Fatalf("latest run time after run: %v err=%v", last, err)
	}

	runs, err := st.ListRuns(ctx, uid, 10)
	if err != nil || len(runs) != 1 || runs[0].ID != runID {
		t.Fatalf("list runs: %+v err=%v", runs, err)
	}
}
