package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.MaxSteps != 50 || cfg.Agent.MinReportSteps != 5 || cfg.Agent.MinReportChars != 1000 {
		t.Errorf("agent defaults = %+v", cfg.Agent)
	}
	if cfg.Agent.LateRunFrac != 0.7 {
		t.Errorf("late_run_frac = %v", cfg.Agent.LateRunFrac)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.Timeout != 120*time.Second {
		t.Errorf("llm defaults = %+v", cfg.LLM)
	}
	if cfg.Tools.WebSearch.Provider != "serper" || cfg.Tools.WebSearch.MaxResults != 10 {
		t.Errorf("web search defaults = %+v", cfg.Tools.WebSearch)
	}
	if !cfg.Tools.Ablations.EnableTodoState || !cfg.Tools.Ablations.EnableEvidenceIndex {
		t.Errorf("ablation defaults = %+v", cfg.Tools.Ablations)
	}
	if cfg.Server.Addr != ":10001" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		return &Config{
			Agent: AgentConfig{MaxSteps: 50, LateRunFrac: 0.7},
			Tools: ToolsConfig{WebSearch: WebSearchConfig{Provider: "serper"}},
		}
	}

	if err := validateConfig(base()); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	c := base()
	c.Agent.MaxSteps = 0
	if err := validateConfig(c); err == nil {
		t.Error("zero max_steps accepted")
	}

	c = base()
	c.Agent.LateRunFrac = 1.5
	if err := validateConfig(c); err == nil {
		t.Error("late_run_frac > 1 accepted")
	}

	c = base()
	c.Tools.WebSearch.Provider = "duckduckgo"
	if err := validateConfig(c); err == nil {
		t.Error("unknown search provider accepted")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{URL: "postgres://u:p@h:5432/db"}
	if dsn, err := p.DSN(); err != nil || dsn != "postgres://u:p@h:5432/db" {
		t.Errorf("url passthrough: %q, %v", dsn, err)
	}

	p = PostgresConfig{Host: "localhost", User: "u", Password: "p", DBName: "db"}
	dsn, err := p.DSN()
	if err != nil || dsn != "postgres://u:p@localhost:5432/db?sslmode=disable" {
		t.Errorf("built dsn: %q, %v", dsn, err)
	}

	p = PostgresConfig{}
	if _, err := p.DSN(); err == nil {
		t.Error("unconfigured postgres accepted")
	}
}

func TestScenarios(t *testing.T) {
	all := Scenarios()
	if len(all) == 0 {
		t.Fatal("no scenarios")
	}
	seen := map[string]bool{}
	for _, s := range all {
		if s.ID == "" || s.Query == "" || s.Category == "" {
			t.Errorf("incomplete scenario: %+v", s)
		}
		if seen[s.ID] {
			t.Errorf("duplicate scenario id %s", s.ID)
		}
		seen[s.ID] = true
	}

	s, ok := ScenarioByID("verify-climate")
	if !ok || s.Category != "verification" {
		t.Errorf("scenario lookup: %+v ok=%v", s, ok)
	}
	if _, ok := ScenarioByID("nope"); ok {
		t.Error("unknown scenario found")
	}

	// Callers get a copy, not the backing slice
	all[0].ID = "mutated"
	if again := Scenarios(); again[0].ID == "mutated" {
		t.Error("Scenarios returns shared backing slice")
	}
}
