package config

// Scenario is a curated demo research task
type Scenario struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Query         string   `json:"query"`
	Category      string   `json:"category"`
	ExpectedTools []string `json:"expected_tools"`
}

var demoScenarios = []Scenario{
	{
		ID:            "planning-microservices",
		Name:          "Microservices Migration",
		Description:   "Plan a migration from monolith to microservices",
		Query:         "Create a comprehensive migration plan for transitioning a Python Django monolith to microservices architecture. Include technology choices, data migration strategy, and rollout phases.",
		Category:      "planning",
		ExpectedTools: []string{"web_search", "web_browse", "todo", "file_write"},
	},
	{
		ID:            "info-llm-training",
		Name:          "LLM Training Techniques",
		Description:   "Research modern LLM training approaches",
		Query:         "What are the current state-of-the-art techniques for training large language models efficiently? Cover data preparation, distributed training, and fine-tuning methods.",
		Category:      "information_seeking",
		ExpectedTools: []string{"web_search", "web_browse", "reflect"},
	},
	{
		ID:            "verify-climate",
		Name:          "Climate Statistics Verification",
		Description:   "Verify climate change claims with authoritative sources",
		Query:         "Verify the claim: 'Global temperatures have risen by 1.1°C since pre-industrial times.' Find authoritative sources and cross-validate the data.",
		Category:      "verification",
		ExpectedTools: []string{"web_search", "web_browse", "cross_validate"},
	},
	{
		ID:            "report-quantum",
		Name:          "Quantum Computing Report",
		Description:   "Generate a technical briefing on quantum computing",
		Query:         "Write a technical brief on the current state of quantum computing, covering hardware approaches (superconducting, trapped ion, photonic), key players, and near-term applications.",
		Category:      "reporting",
		ExpectedTools: []string{"web_search", "web_browse", "todo", "file_write", "reflect"},
	},
	{
		ID:            "authority-medical",
		Name:          "Medical Research Sources",
		Description:   "Research with emphasis on authoritative medical sources",
		Query:         "What are the latest FDA-approved treatments for Type 2 diabetes? Prioritize official sources and peer-reviewed research.",
		Category:      "authority",
		ExpectedTools: []string{"web_search", "web_browse"},
	},
	{
		ID:            "planning-security",
		Name:          "Security Audit Plan",
		Description:   "Create a security audit checklist",
		Query:         "Develop a comprehensive security audit checklist for a web application handling financial data. Include OWASP considerations, compliance requirements (PCI-DSS), and remediation priorities.",
		Category:      "planning",
		ExpectedTools: []string{"web_search", "todo", "file_write"},
	},
	{
		ID:            "info-rust-async",
		Name:          "Rust Async Ecosystem",
		Description:   "Deep dive into Rust async programming",
		Query:         "Explain the Rust async ecosystem: tokio vs async-std, pin and futures, and best practices for building high-performance async applications.",
		Category:      "information_seeking",
		ExpectedTools: []string{"web_search", "web_browse"},
	},
	{
		ID:            "verify-ai-claims",
		Name:          "AI Benchmark Claims",
		Description:   "Verify AI model performance claims",
		Query:         "Verify GPT-4's claimed performance on various benchmarks (MMLU, HumanEval, etc.). Find the original sources and compare with independent evaluations.",
		Category:      "verification",
		ExpectedTools: []string{"web_search", "web_browse", "cross_validate", "reflect"},
	},
}

// Scenarios returns all demo scenarios
func Scenarios() []Scenario {
	out := make([]Scenario, len(demoScenarios))
	copy(out, demoScenarios)
	return out
}

// ScenarioByID returns the scenario with the given ID, if any
func ScenarioByID(id string) (Scenario, bool) {
	for _, s := range demoScenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}
