package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lherron/eotdiff/internal/logging"
	"github.com/lherron/eotdiff/internal/match"
	"github.com/lherron/eotdiff/internal/render"
	"gopkg.in/yaml.v3"
)

// DefaultDaemonAddr is the daemon listen address when none is configured.
const DefaultDaemonAddr = "127.0.0.1:7272"

// MatcherConfig tunes the matching heuristics
type MatcherConfig struct {
	UIDBonus float64 `yaml:"uid_bonus"`
	MaxPool  int     `yaml:"max_pool"`
}

// Config represents the application configuration
type Config struct {
	LogLevel        string        `yaml:"log_level"`
	Output          string        `yaml:"output"`
	DaemonAddr      string        `yaml:"daemon_addr"`
	DaemonToken     string        `yaml:"daemon_token"`
	IncludeBaseline bool          `yaml:"include_baseline"`
	Matcher         MatcherConfig `yaml:"matcher"`
	WebhookURLs     []string      `yaml:"webhook_urls"`
	Workers         int           `yaml:"workers"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/eotdiff/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		Output:     string(render.FormatTable),
		DaemonAddr: DefaultDaemonAddr,
		Matcher: MatcherConfig{
			UIDBonus: match.DefaultUIDBonus,
			MaxPool:  match.DefaultMaxPool,
		},
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// YAML config is optional; only a malformed file is an error
	if err := loadYAMLConfig(cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables
	if logLevel := os.Getenv("EOTDIFF_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if output := os.Getenv("EOTDIFF_OUTPUT"); output != "" {
		cfg.Output = output
	}
	if addr := os.Getenv("EOTDIFF_ADDR"); addr != "" {
		cfg.DaemonAddr = addr
	}
	if token := getEnvOrFile("EOTDIFF_TOKEN", "EOTDIFF_TOKEN_FILE"); token != "" {
		cfg.DaemonToken = token
	}
	if hooks := os.Getenv("EOTDIFF_WEBHOOK_URLS"); hooks != "" {
		cfg.WebhookURLs = splitList(hooks)
	}
	if workers := os.Getenv("EOTDIFF_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return nil, fmt.Errorf("invalid EOTDIFF_WORKERS %q: %w", workers, err)
		}
		cfg.Workers = n
	}
	if baseline := os.Getenv("EOTDIFF_INCLUDE_BASELINE"); baseline != "" {
		v, err := strconv.ParseBool(baseline)
		if err != nil {
			return nil, fmt.Errorf("invalid EOTDIFF_INCLUDE_BASELINE %q: %w", baseline, err)
		}
		cfg.IncludeBaseline = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges after all sources are merged.
func (c *Config) Validate() error {
	if _, err := render.ParseFormat(c.Output); err != nil {
		return fmt.Errorf("invalid output: %w", err)
	}
	if c.Matcher.MaxPool <= 0 {
		return fmt.Errorf("invalid matcher.max_pool %d: must be positive", c.Matcher.MaxPool)
	}
	if c.Matcher.UIDBonus < 0 {
		return fmt.Errorf("invalid matcher.uid_bonus %v: must not be negative", c.Matcher.UIDBonus)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid workers %d: must not be negative", c.Workers)
	}
	return nil
}

// MatchOptions converts the matcher section to matcher options.
func (c *Config) MatchOptions() match.Options {
	return match.Options{UIDBonus: c.Matcher.UIDBonus, MaxPool: c.Matcher.MaxPool}
}

// Level returns the normalized log level, warn when none is configured.
func (c *Config) Level() string {
	return c.LevelOr(logging.LevelWarn)
}

// LevelOr returns the normalized log level, or fallback when none is configured.
func (c *Config) LevelOr(fallback string) string {
	if c.LogLevel == "" {
		return fallback
	}
	return logging.ParseLevel(c.LogLevel)
}

// loadYAMLConfig loads configuration from ~/.config/eotdiff/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "eotdiff", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, just check cwd
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Clean paths for reliable comparison
	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		// Stop if we've reached home directory
		if dir == homeDir {
			break
		}

		// Get parent directory
		parent := filepath.Dir(dir)

		// Stop if we've reached the filesystem root
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
