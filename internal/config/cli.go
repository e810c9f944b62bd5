package config

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// CLIFlags holds command-line overrides. A nil field was not passed.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	DSN        *string
	NatsURL    *string
	ActionMode *string
}

// ParseFlags parses args (without the program name). Both -name and --name
// spellings are accepted; -c and -p are shorthands for --config and --port.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("answerdesk", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var configPath, port, logLevel, dsn, natsURL, mode string
	fs.StringVar(&configPath, "config", "", "path to YAML config")
	fs.StringVar(&configPath, "c", "", "path to YAML config (shorthand)")
	fs.StringVar(&port, "port", "", "HTTP listen port")
	fs.StringVar(&port, "p", "", "HTTP listen port (shorthand)")
	fs.StringVar(&logLevel, "log-level", "", "debug|info|warn|error")
	fs.StringVar(&dsn, "dsn", "", "PostgreSQL DSN")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL")
	fs.StringVar(&mode, "action-mode", "", "direct_answer|approval_required|notify_only")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var out CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			out.ConfigPath = &configPath
		case "port", "p":
			out.Port = &port
		case "log-level":
			out.LogLevel = &logLevel
		case "dsn":
			out.DSN = &dsn
		case "nats-url":
			out.NatsURL = &natsURL
		case "action-mode":
			out.ActionMode = &mode
		}
	})
	return out, nil
}

// LoadWithCLI loads configuration with the full hierarchy:
// defaults < YAML < ENV < CLI flags. It returns the YAML path that was used.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if p := os.Getenv("ANSWERDESK_CONFIG"); p != "" {
		path = p
	}
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, "", fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, "", fmt.Errorf("config validate: %w", err)
	}
	return &cfg, path, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
	if flags.ActionMode != nil {
		cfg.Workflow.ActionMode = *flags.ActionMode
	}
}
