package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// Store wraps the Postgres connection for run persistence
type Store struct {
	DB *sql.DB
}

// Run statuses
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one persisted research run
type Run struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	TopicID          *string    `json:"topic_id,omitempty"`
	Query            string     `json:"query"`
	Mode             string     `json:"mode"`
	Status           string     `json:"status"`
	Phase            string     `json:"phase"`
	StepCount        int        `json:"step_count"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
	TotalTokens      int        `json:"total_tokens"`
	Report           string     `json:"report,omitempty"`
	Error            *string    `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// Topic is a saved research topic, optionally on a cron schedule
type Topic struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Query        string    `json:"query"`
	Mode         string    `json:"mode"`
	ScheduleCron string    `json:"schedule_cron,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunEvent is one logged tool call
type RunEvent struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Tool      string    `json:"tool"`
	Args      string    `json:"args"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// Evidence is one persisted source entry. AuthorityTier is a passthrough
// label from whatever produced the entry; nothing here scores sources.
type Evidence struct {
	ID            string    `json:"id"`
	RunID         string    `json:"run_id"`
	SourceURL     string    `json:"source_url"`
	SourceTitle   string    `json:"source_title"`
	Snippet       string    `json:"snippet"`
	AuthorityTier string    `json:"authority_tier"`
	RetrievedAt   time.Time `json:"retrieved_at"`
}

// Claim is one persisted cross-validated claim
type Claim struct {
	ID                string    `json:"id"`
	RunID             string    `json:"run_id"`
	Text              string    `json:"text"`
	Status            string    `json:"status"`
	SupportingSources int       `json:"supporting_sources"`
	CreatedAt         time.Time `json:"created_at"`
}

// New constructs the Store from environment configuration
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Topic operations
func (s *Store) CreateTopic(ctx context.Context, userID, name, query, mode, cron string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO topics (user_id, name, query, mode, schedule_cron) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		userID, name, query, mode, cron).Scan(&id)
	return id, err
}

func (s *Store) ListTopics(ctx context.Context, userID string) ([]Topic, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, name, query, mode, schedule_cron, created_at FROM topics WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTopics(rows)
}

// ListAllTopics returns every topic; the scheduler walks this
func (s *Store) ListAllTopics(ctx context.Context) ([]Topic, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, name, query, mode, schedule_cron, created_at FROM topics ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTopics(rows)
}

func scanTopics(rows *sql.Rows) ([]Topic, error) {
	var out []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Query, &t.Mode, &t.ScheduleCron, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LatestRunTime returns the creation time of a topic's most recent run
func (s *Store) LatestRunTime(ctx context.Context, topicID string) (*time.Time, error) {
	var t sql.NullTime
	err := s.DB.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM runs WHERE topic_id=$1`, topicID).Scan(&t)
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

// Run operations
func (s *Store) CreateRun(ctx context.Context, userID string, topicID *string, query, mode string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO runs (user_id, topic_id, query, mode, status) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		userID, topicID, query, mode, RunStatusPending).Scan(&id)
	return id, err
}

func (s *Store) StartRun(ctx context.Context, runID string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status=$2, started_at=NOW() WHERE id=$1`, runID, RunStatusRunning)
	return err
}

// UpdateRunProgress records the loop's position after a step
func (s *Store) UpdateRunProgress(ctx context.Context, runID, phase string, stepCount, promptTokens, completionTokens, totalTokens int) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET phase=$2, step_count=$3, prompt_tokens=$4, completion_tokens=$5, total_tokens=$6 WHERE id=$1`,
		runID, phase, stepCount, promptTokens, completionTokens, totalTokens)
	return err
}

func (s *Store) FinishRun(ctx context.Context, runID, status, report string, errMsg *string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status=$2, report=$3, error=$4, finished_at=NOW() WHERE id=$1`,
		runID, status, report, errMsg)
	return err
}

func (s *Store) GetRun(ctx context.Context, runID, userID string) (Run, error) {
	var r Run
	var report sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, topic_id, query, mode, status, phase, step_count,
		        prompt_tokens, completion_tokens, total_tokens, report, error,
		        created_at, started_at, finished_at
		 FROM runs WHERE id=$1 AND user_id=$2`, runID, userID).
		Scan(&r.ID, &r.UserID, &r.TopicID, &r.Query, &r.Mode, &r.Status, &r.Phase, &r.StepCount,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &report, &r.Error,
			&r.CreatedAt, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return Run{}, err
	}
	r.Report = report.String
	return r, nil
}

func (s *Store) ListRuns(ctx context.Context, userID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, topic_id, query, mode, status, phase, step_count,
		        prompt_tokens, completion_tokens, total_tokens, error,
		        created_at, started_at, finished_at
		 FROM runs WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.UserID, &r.TopicID, &r.Query, &r.Mode, &r.Status, &r.Phase, &r.StepCount,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.Error,
			&r.CreatedAt, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run event operations
func (s *Store) AppendRunEvent(ctx context.Context, runID, tool, args string, success bool) error {
	if !json.Valid([]byte(args)) {
		// Malformed arguments still get logged, wrapped as a JSON string
		raw, _ := json.Marshal(args)
		args = string(raw)
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO run_events (run_id, tool, args, success) VALUES ($1,$2,$3,$4)`,
		runID, tool, args, success)
	return err
}

func (s *Store) ListRunEvents(ctx context.Context, runID string) ([]RunEvent, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, run_id, tool, args, success, created_at FROM run_events WHERE run_id=$1 ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunEvent
	for rows.Next() {
		var e RunEvent
		if err := rows.Scan(&e.ID, &e.RunID, &e.Tool, &e.Args, &e.Success, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Evidence operations
func (s *Store) InsertEvidence(ctx context.Context, runID string, entries []map[string]interface{}) error {
	for _, e := range entries {
		retrievedAt := time.Now().UTC()
		if ts, ok := e["retrieved_at"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				retrievedAt = parsed
			}
		}
		tier := str(e["authority_tier"])
		if tier == "" {
			tier = "other"
		}
		if _, err := s.DB.ExecContext(ctx,
			`INSERT INTO evidence (run_id, source_url, source_title, snippet, authority_tier, retrieved_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			runID, str(e["source_url"]), str(e["source_title"]), str(e["snippet"]), tier, retrievedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListEvidence(ctx context.Context, runID string) ([]Evidence, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, run_id, source_url, source_title, snippet, authority_tier, retrieved_at FROM evidence WHERE run_id=$1 ORDER BY retrieved_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Evidence
	for rows.Next() {
		var e Evidence
		if err := rows.Scan(&e.ID, &e.RunID, &e.SourceURL, &e.SourceTitle, &e.Snippet, &e.AuthorityTier, &e.RetrievedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Claim operations
func (s *Store) InsertClaims(ctx context.Context, runID string, claims []map[string]interface{}) error {
	for _, c := range claims {
		supporting := 0
		switch n := c["supporting_sources"].(type) {
		case int:
			supporting = n
		case float64:
			supporting = int(n)
		}
		if _, err := s.DB.ExecContext(ctx,
			`INSERT INTO claims (run_id, text, status, supporting_sources) VALUES ($1,$2,$3,$4)`,
			runID, str(c["text"]), str(c["status"]), supporting); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListClaims(ctx context.Context, runID string) ([]Claim, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, run_id, text, status, supporting_sources, created_at FROM claims WHERE run_id=$1 ORDER BY created_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Claim
	for rows.Next() {
		var c Claim
		if err := rows.Scan(&c.ID, &c.RunID, &c.Text, &c.Status, &c.SupportingSources, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
