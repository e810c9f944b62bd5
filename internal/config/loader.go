package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "answerdesk.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("ANSWERDESK_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-supplied
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "ANSWERDESK_PORT")
	setString(&cfg.Server.CORSOrigin, "ANSWERDESK_CORS_ORIGIN")
	setString(&cfg.Server.PublicURL, "ANSWERDESK_PUBLIC_URL")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "ANSWERDESK_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "ANSWERDESK_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "ANSWERDESK_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "ANSWERDESK_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "ANSWERDESK_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.IdempotencyBucket, "ANSWERDESK_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.NATS.IdempotencyTTL, "ANSWERDESK_IDEMPOTENCY_TTL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.Model, "ANSWERDESK_LLM_MODEL")
	setInt(&cfg.LiteLLM.MaxTokens, "ANSWERDESK_LLM_MAX_TOKENS")
	setDuration(&cfg.LiteLLM.Timeout, "ANSWERDESK_LLM_TIMEOUT")
	setBool(&cfg.Generator.Enabled, "ANSWERDESK_GENERATOR_ENABLED")
	setBool(&cfg.Generator.FallbackOnError, "ANSWERDESK_GENERATOR_FALLBACK")
	setString(&cfg.Logging.Level, "ANSWERDESK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "ANSWERDESK_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "ANSWERDESK_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "ANSWERDESK_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "ANSWERDESK_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "ANSWERDESK_RATE_RPS")
	setInt(&cfg.Rate.Burst, "ANSWERDESK_RATE_BURST")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "ANSWERDESK_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "ANSWERDESK_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.PublishedTTL, "ANSWERDESK_CACHE_PUBLISHED_TTL")

	// Telemetry
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "OTEL_EXPORTER_OTLP_INSECURE")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")

	// Workflow
	setFloat64(&cfg.Matcher.Threshold, "ANSWERDESK_MATCH_THRESHOLD")
	setString(&cfg.Workflow.ActionMode, "ANSWERDESK_ACTION_MODE")
	setStringSlice(&cfg.Workflow.NotifyTargets, "ANSWERDESK_NOTIFY_TARGETS")

	// Knowledge base
	setString(&cfg.Knowledge.Source, "ANSWERDESK_KB_SOURCE")
	setString(&cfg.Knowledge.Path, "ANSWERDESK_KB_PATH")
	setBool(&cfg.Knowledge.Watch, "ANSWERDESK_KB_WATCH")

	// Channels
	setString(&cfg.GitHub.Token, "GITHUB_TOKEN")
	setString(&cfg.GitHub.APIURL, "ANSWERDESK_GITHUB_API_URL")
	setString(&cfg.Slack.BotToken, "SLACK_BOT_TOKEN")
	setString(&cfg.Slack.SigningSecret, "SLACK_SIGNING_SECRET")
	setString(&cfg.Slack.APIURL, "ANSWERDESK_SLACK_API_URL")
	setString(&cfg.Webhook.GitHubSecret, "ANSWERDESK_WEBHOOK_GITHUB_SECRET")

	// MCP
	setBool(&cfg.MCP.Enabled, "ANSWERDESK_MCP_ENABLED")
	setString(&cfg.MCP.APIKey, "ANSWERDESK_MCP_API_KEY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN != "" && cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	switch cfg.Knowledge.Source {
	case "yaml":
		if cfg.Knowledge.Path == "" {
			return errors.New("knowledge.path is required for the yaml source")
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("knowledge.source postgres requires postgres.dsn")
		}
	default:
		return fmt.Errorf("knowledge.source %q must be yaml or postgres", cfg.Knowledge.Source)
	}
	if cfg.Generator.Enabled && cfg.LiteLLM.URL == "" {
		return errors.New("generator.enabled requires litellm.url")
	}
	if _, err := cfg.WorkflowSettings(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setStringSlice splits a comma-separated value.
func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
