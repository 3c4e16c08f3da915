// Package config loads the records desk settings: built-in defaults, then an
// optional YAML file, then STUDENT_AI_* environment variables. Command-line
// flags are applied last by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "STUDENT_AI_"

type Config struct {
	ServiceURL            string  `yaml:"service_url"`
	Token                 string  `yaml:"token"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	RateLimit             float64 `yaml:"rate_limit"`
	RateBurst             int     `yaml:"rate_burst"`
	GradeConcurrency      int     `yaml:"grade_concurrency"`
	HistoryPath           string  `yaml:"history_path"`
	HistoryLimit          int     `yaml:"history_limit"`
	LogPath               string  `yaml:"log_path"`
	LogLevel              string  `yaml:"log_level"`
	AltScreen             bool    `yaml:"alt_screen"`
	Markdown              bool    `yaml:"markdown"`
	NoticeTTLSeconds      int     `yaml:"notice_ttl_seconds"`
	SessionSeed           string  `yaml:"session_seed"`
}

func Default() Config {
	home := homeDir()
	return Config{
		ServiceURL:       "http://127.0.0.1:5000",
		RateLimit:        5,
		RateBurst:        3,
		GradeConcurrency: 3,
		HistoryPath:      filepath.Join(home, ".student-ai", "history.db"),
		HistoryLimit:     200,
		LogPath:          filepath.Join(home, ".student-ai", "records-tui.log"),
		LogLevel:         "info",
		AltScreen:        true,
		Markdown:         true,
		NoticeTTLSeconds: 4,
	}
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".student-ai", "config.yaml")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return home
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from STUDENT_AI_* variables. Unparseable values
// keep the current setting.
func (c *Config) ApplyEnv() {
	c.ServiceURL = envOr("SERVICE_URL", c.ServiceURL)
	c.Token = envOr("TOKEN", c.Token)
	c.RequestTimeoutSeconds = envOrInt("REQUEST_TIMEOUT_SECONDS", c.RequestTimeoutSeconds)
	c.RateLimit = envOrFloat("RATE_LIMIT", c.RateLimit)
	c.RateBurst = envOrInt("RATE_BURST", c.RateBurst)
	c.GradeConcurrency = envOrInt("GRADE_CONCURRENCY", c.GradeConcurrency)
	c.HistoryPath = envOr("HISTORY_PATH", c.HistoryPath)
	c.HistoryLimit = envOrInt("HISTORY_LIMIT", c.HistoryLimit)
	c.LogPath = envOr("LOG_PATH", c.LogPath)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.AltScreen = envOrBool("ALT_SCREEN", c.AltScreen)
	c.Markdown = envOrBool("MARKDOWN", c.Markdown)
	c.NoticeTTLSeconds = envOrInt("NOTICE_TTL_SECONDS", c.NoticeTTLSeconds)
	c.SessionSeed = envOr("SESSION_SEED", c.SessionSeed)
}

// Normalize clamps numeric settings into their supported ranges.
func (c *Config) Normalize() {
	c.ServiceURL = strings.TrimRight(strings.TrimSpace(c.ServiceURL), "/")
	c.RequestTimeoutSeconds = clampInt(c.RequestTimeoutSeconds, 0, 300)
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	c.RateBurst = clampInt(c.RateBurst, 1, 50)
	c.GradeConcurrency = clampInt(c.GradeConcurrency, 1, 3)
	c.HistoryLimit = clampInt(c.HistoryLimit, 0, 5000)
	c.NoticeTTLSeconds = clampInt(c.NoticeTTLSeconds, 1, 60)
	switch level := strings.ToLower(strings.TrimSpace(c.LogLevel)); level {
	case "debug", "info", "warn", "error":
		c.LogLevel = level
	default:
		c.LogLevel = "info"
	}
}

// RequestTimeout is zero when requests run until the service answers.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c Config) NoticeTTL() time.Duration {
	return time.Duration(c.NoticeTTLSeconds) * time.Second
}

func (c Config) Validate() error {
	if c.ServiceURL == "" {
		return fmt.Errorf("service_url is required")
	}
	if !strings.HasPrefix(c.ServiceURL, "http://") && !strings.HasPrefix(c.ServiceURL, "https://") {
		return fmt.Errorf("service_url must be an http(s) URL, got %q", c.ServiceURL)
	}
	return nil
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(envPrefix + key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(envPrefix + key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(envPrefix + key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(envPrefix + key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
