package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the deepresearch system
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig contains the model provider configuration
type LLMConfig struct {
	Type        string        `mapstructure:"type"` // openai or any openai-compatible endpoint
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// AgentConfig contains ReAct loop settings
type AgentConfig struct {
	MaxSteps int `mapstructure:"max_steps"`
	// Completion heuristics; both are tunable policy, not protocol.
	MinReportSteps int     `mapstructure:"min_report_steps"`
	MinReportChars int     `mapstructure:"min_report_chars"`
	LateRunFrac    float64 `mapstructure:"late_run_frac"`
	Workdir        string  `mapstructure:"workdir"`
}

// ToolsConfig contains tool backends and ablation toggles
type ToolsConfig struct {
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	WebFetch  WebFetchConfig  `mapstructure:"web_fetch"`
	Ablations AblationsConfig `mapstructure:"ablations"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	Provider     string        `mapstructure:"provider"` // brave or serper
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// WebFetchConfig contains page fetch settings
type WebFetchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// AblationsConfig toggles optional tools for comparative evaluation.
// The minimal tool set (search, browse, file read/write) is always registered.
type AblationsConfig struct {
	EnableTodoState     bool `mapstructure:"enable_todo_state"`
	EnablePatchEditing  bool `mapstructure:"enable_patch_editing"`
	EnableReflection    bool `mapstructure:"enable_reflection"`
	EnableEvidenceIndex bool `mapstructure:"enable_evidence_index"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN builds a Postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	host := p.Host
	port := p.Port
	ssl := p.SSLMode
	if host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	if port == "" {
		port = "5432"
	}
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl), nil
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("deepresearch")
	viper.SetConfigType("json")
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("DEEPRESEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional; defaults + env are enough for a local run
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "30s")

	viper.SetDefault("llm.type", "openai")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 4000)
	viper.SetDefault("llm.timeout", "120s")

	viper.SetDefault("agent.max_steps", 50)
	viper.SetDefault("agent.min_report_steps", 5)
	viper.SetDefault("agent.min_report_chars", 1000)
	viper.SetDefault("agent.late_run_frac", 0.7)
	viper.SetDefault("agent.workdir", "./data/runs")

	viper.SetDefault("tools.web_search.provider", "serper")
	viper.SetDefault("tools.web_search.max_results", 10)
	viper.SetDefault("tools.web_search.timeout", "30s")
	viper.SetDefault("tools.web_fetch.timeout", "15s")
	viper.SetDefault("tools.web_fetch.max_chars", 15000)
	viper.SetDefault("tools.ablations.enable_todo_state", true)
	viper.SetDefault("tools.ablations.enable_patch_editing", true)
	viper.SetDefault("tools.ablations.enable_reflection", true)
	viper.SetDefault("tools.ablations.enable_evidence_index", true)

	viper.SetDefault("server.addr", ":10001")

	viper.SetDefault("storage.postgres.host", "")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.postgres.timeout", "5s")
	viper.SetDefault("storage.redis.host", "localhost")
	viper.SetDefault("storage.redis.port", 6379)
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.timeout", "5s")
}

// overrideFromEnv overrides configuration with well-known environment variables
func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("llm.api_key", apiKey)
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		viper.Set("llm.base_url", baseURL)
	}
	if apiKey := os.Getenv("BRAVE_SEARCH_KEY"); apiKey != "" {
		viper.Set("tools.web_search.brave_api_key", apiKey)
	}
	if apiKey := os.Getenv("SERPER_API_KEY"); apiKey != "" {
		viper.Set("tools.web_search.serper_api_key", apiKey)
	}
	if secret := os.Getenv("DEEPRESEARCH_JWT_SECRET"); secret != "" {
		viper.Set("server.jwt_secret", secret)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		viper.Set("storage.postgres.url", url)
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		viper.Set("storage.postgres.host", host)
	}
	if port := os.Getenv("POSTGRES_PORT"); port != "" {
		viper.Set("storage.postgres.port", port)
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		viper.Set("storage.postgres.user", user)
	}
	if pass := os.Getenv("POSTGRES_PASSWORD"); pass != "" {
		viper.Set("storage.postgres.password", pass)
	}
	if db := os.Getenv("POSTGRES_DB"); db != "" {
		viper.Set("storage.postgres.dbname", db)
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		viper.Set("storage.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("storage.redis.port", p)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		viper.Set("storage.redis.password", password)
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive")
	}
	if config.Agent.LateRunFrac <= 0 || config.Agent.LateRunFrac > 1 {
		return fmt.Errorf("agent.late_run_frac must be in (0,1]")
	}
	switch config.Tools.WebSearch.Provider {
	case "", "brave", "serper":
	default:
		return fmt.Errorf("unsupported web search provider: %s", config.Tools.WebSearch.Provider)
	}
	return nil
}
