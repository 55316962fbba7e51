// Package config loads the Agent Actor runtime's configuration: the event
// bus, message store, MCP servers, LLM providers and their per-config
// credentials, and the static agent/topic roster a standalone deployment
// activates against. The structure and loading mechanism (YAML with
// $include, environment overrides, strict field checking) follow the
// wider Nexus config package this runtime was carved out of.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/mcp"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// Config is the root configuration for cmd/nexusactor.
type Config struct {
	// Version selects the configuration file format this document was
	// written against. Unset (zero) defaults to CurrentVersion; any other
	// value is checked against CurrentVersion in validateConfig.
	Version int `yaml:"version"`

	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	MCP      mcp.Config     `yaml:"mcp"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Agents and LLMConfigs are the static roster a standalone deployment
	// activates and resolves against, in lieu of a database-backed
	// control plane. Topics are created on demand from incoming messages.
	Agents     []models.Agent      `yaml:"agents"`
	LLMConfigs []models.LLMConfig `yaml:"llm_configs"`
}

// ServerConfig configures the HTTP listener that serves the message
// ingest endpoint, the live topic event stream, and /metrics.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// RedisConfig configures the shared event bus and the action chain store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig configures the message store backend. Driver is either
// "postgres" (github.com/lib/pq) or "sqlite" (modernc.org/sqlite); DSN is
// passed straight to sql.Open. An empty Driver falls back to an in-memory
// store, useful for local development.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LLMConfig configures the LLM provider clients the runtime constructs at
// startup. Individual agents select among the configured providers via
// their resolved models.LLMConfig row (see LLMConfigs), not this struct.
type LLMConfig struct {
	Anthropic AnthropicProviderConfig `yaml:"anthropic"`
	OpenAI    OpenAIProviderConfig    `yaml:"openai"`
	Gemini    GeminiProviderConfig    `yaml:"gemini"`
	Bedrock   BedrockProviderConfig   `yaml:"bedrock"`
}

type AnthropicProviderConfig struct {
	Enabled          bool   `yaml:"enabled"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	DefaultModel     string `yaml:"default_model"`
	DefaultMaxTokens int    `yaml:"default_max_tokens"`
}

type OpenAIProviderConfig struct {
	Enabled      bool          `yaml:"enabled"`
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

type GeminiProviderConfig struct {
	Enabled      bool   `yaml:"enabled"`
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
}

type BedrockProviderConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	DefaultModel    string `yaml:"default_model"`
}

// MetricsConfig is the metrics section of the file. Enabled is decoded but
// not read: cmd/nexusactor always serves /metrics on the main HTTP
// listener, and ServerConfig.MetricsPort is likewise defaulted but not
// used to open a separate listener.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, expands, and validates the configuration file at path.
// Supports YAML or JSON5 and resolves $include directives via LoadRaw, so
// a deployment can split its MCP server roster or agent list into
// separate included files.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.LLM.Anthropic.DefaultMaxTokens == 0 {
		cfg.LLM.Anthropic.DefaultMaxTokens = 4096
	}
	if cfg.LLM.OpenAI.MaxRetries == 0 {
		cfg.LLM.OpenAI.MaxRetries = 2
	}
	if cfg.LLM.OpenAI.RetryDelay == 0 {
		cfg.LLM.OpenAI.RetryDelay = time.Second
	}
	if cfg.LLM.Bedrock.Region == "" {
		cfg.LLM.Bedrock.Region = "us-east-1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// ConfigValidationError collects every validation issue found in a single
// pass, rather than stopping at the first one.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if err := ValidateVersion(cfg.Version); err != nil {
		issues = append(issues, err.Error())
	}
	if cfg.Database.Driver != "" && cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		issues = append(issues, `database.driver must be "postgres", "sqlite", or empty`)
	}
	if cfg.Database.Driver != "" && strings.TrimSpace(cfg.Database.DSN) == "" {
		issues = append(issues, "database.dsn is required when database.driver is set")
	}
	for i, a := range cfg.Agents {
		if strings.TrimSpace(a.AgentID) == "" {
			issues = append(issues, fmt.Sprintf("agents[%d].agent_id is required", i))
		}
	}
	for _, server := range cfg.MCP.Servers {
		if err := server.Validate(); err != nil {
			issues = append(issues, err.Error())
		}
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
