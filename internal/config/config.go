// Package config provides hierarchical configuration loading for answerdesk.
// Precedence: defaults < YAML file < environment variables.
package config

import (
	"time"

	"github.com/Strob0t/answerdesk/internal/domain/workflow"
)

// Config holds all runtime configuration for the answerdesk service.
type Config struct {
	Server    Server    `yaml:"server"`
	Postgres  Postgres  `yaml:"postgres"`
	NATS      NATS      `yaml:"nats"`
	LiteLLM   LiteLLM   `yaml:"litellm"`
	Generator Generator `yaml:"generator"`
	Logging   Logging   `yaml:"logging"`
	Breaker   Breaker   `yaml:"breaker"`
	Rate      Rate      `yaml:"rate"`
	Cache     Cache     `yaml:"cache"`
	OTEL      OTEL      `yaml:"otel"`
	Matcher   Matcher   `yaml:"matcher"`
	Workflow  Workflow  `yaml:"workflow"`
	Knowledge Knowledge `yaml:"knowledge"`
	GitHub    GitHub    `yaml:"github"`
	Slack     Slack     `yaml:"slack"`
	Notify    Notify    `yaml:"notify"`
	Webhook   Webhook   `yaml:"webhook"`
	MCP       MCP       `yaml:"mcp"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
	PublicURL  string `yaml:"public_url"` // base URL used in approval links
}

// Postgres holds PostgreSQL connection configuration. An empty DSN disables
// the database; the knowledge base then comes from YAML and the approval audit
// stays in memory.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// NATS holds NATS JetStream configuration. An empty URL disables events.
type NATS struct {
	URL               string        `yaml:"url"`
	IdempotencyBucket string        `yaml:"idempotency_bucket"`
	IdempotencyTTL    time.Duration `yaml:"idempotency_ttl"`
}

// LiteLLM holds LiteLLM proxy configuration.
type LiteLLM struct {
	URL       string        `yaml:"url"`
	MasterKey string        `yaml:"master_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Generator controls language-model refinement of answers.
type Generator struct {
	Enabled         bool `yaml:"enabled"`
	FallbackOnError bool `yaml:"fallback_on_error"` // keep the deterministic draft when generation fails
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds rate limiter configuration.
type Rate struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Cache holds publish-deduplication cache configuration.
type Cache struct {
	L1MaxSizeMB  int64         `yaml:"l1_max_size_mb"`
	L2Bucket     string        `yaml:"l2_bucket"` // NATS KV bucket; used only when NATS is enabled
	PublishedTTL time.Duration `yaml:"published_ttl"`
}

// OTEL holds OpenTelemetry exporter configuration. An empty endpoint keeps
// the global no-op providers.
type OTEL struct {
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Matcher holds matching configuration.
type Matcher struct {
	Threshold float64 `yaml:"threshold"`
}

// Workflow holds the response-delivery policy.
type Workflow struct {
	ActionMode    string   `yaml:"action_mode"`    // "direct_answer" | "approval_required" | "notify_only"
	NotifyTargets []string `yaml:"notify_targets"` // "provider:address"
}

// Knowledge selects and configures the knowledge base source.
type Knowledge struct {
	Source string `yaml:"source"` // "yaml" | "postgres"
	Path   string `yaml:"path"`
	Watch  bool   `yaml:"watch"`
}

// GitHub holds GitHub API configuration for publishing issue comments.
type GitHub struct {
	Token  string `yaml:"token"`
	APIURL string `yaml:"api_url"`
}

// Slack holds Slack app configuration for thread replies and interactions.
type Slack struct {
	BotToken      string `yaml:"bot_token"`
	SigningSecret string `yaml:"signing_secret"`
	APIURL        string `yaml:"api_url"`
}

// Notify holds per-provider notifier settings, keyed by provider name
// ("slack", "discord", "email"). Each value is passed to the provider factory.
type Notify struct {
	Providers map[string]map[string]string `yaml:"providers"`
}

// Webhook holds inbound webhook secrets.
type Webhook struct {
	GitHubSecret string `yaml:"github_secret"`
}

// MCP holds Model Context Protocol server configuration.
type MCP struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
			PublicURL:  "http://localhost:8080",
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		NATS: NATS{
			IdempotencyBucket: "ANSWERDESK_IDEMPOTENCY",
			IdempotencyTTL:    24 * time.Hour,
		},
		LiteLLM: LiteLLM{
			URL:       "http://localhost:4000",
			Model:     "openai/gpt-4o-mini",
			MaxTokens: 800,
			Timeout:   30 * time.Second,
		},
		Generator: Generator{
			Enabled:         false,
			FallbackOnError: true,
		},
		Logging: Logging{
			Level:   "info",
			Service: "answerdesk",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Rate: Rate{
			RequestsPerSecond: 10,
			Burst:             50,
		},
		Cache: Cache{
			L1MaxSizeMB:  16,
			L2Bucket:     "ANSWERDESK_PUBLISHED",
			PublishedTTL: 7 * 24 * time.Hour,
		},
		OTEL: OTEL{
			ServiceName: "answerdesk",
		},
		Matcher: Matcher{
			Threshold: 0.85,
		},
		Workflow: Workflow{
			ActionMode: string(workflow.ModeDirectAnswer),
		},
		Knowledge: Knowledge{
			Source: "yaml",
			Path:   "knowledge.yaml",
			Watch:  true,
		},
		GitHub: GitHub{
			APIURL: "https://api.github.com",
		},
		Slack: Slack{
			APIURL: "https://slack.com/api",
		},
	}
}

// WorkflowSettings converts the workflow and matcher sections into the
// validated settings handed to the core.
func (c *Config) WorkflowSettings() (workflow.Settings, error) {
	mode, err := workflow.ParseActionMode(c.Workflow.ActionMode)
	if err != nil {
		return workflow.Settings{}, err
	}
	s := workflow.Settings{
		MatchThreshold: c.Matcher.Threshold,
		ActionMode:     mode,
		NotifyTargets:  workflow.DedupeTargets(c.Workflow.NotifyTargets),
	}
	if err := s.Validate(); err != nil {
		return workflow.Settings{}, err
	}
	return s, nil
}
