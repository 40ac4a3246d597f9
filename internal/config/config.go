// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	DBPath          string
	AuthSecret      string // shared password compared verbatim against user input
	AdminToken      string // required by the webhook setup control call, which is disabled without it
	StoreTimeout    time.Duration
	SearchPrefix    string
	TaskOwner       string // created_by for tasks when no actor id is known
	Telegram        TelegramConfig
	Classifier      ClassifierConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// TelegramConfig configures the Bot API client.
type TelegramConfig struct {
	Token         string
	APIURL        string
	WebhookSecret string
	Timeout       time.Duration
}

// ClassifierConfig configures the OpenAI-compatible intent classifier.
type ClassifierConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// RateLimitConfig bounds inbound messages per sender.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls per-user NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled bool
	Dir     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DBPath:       getEnv("DB_PATH", "./data/vcsearch.db"),
		AuthSecret:   getEnv("BOT_PASSWORD", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		SearchPrefix: getEnv("SEARCH_PREFIX", "."),
		TaskOwner:    getEnv("TASK_FALLBACK_OWNER", "bot"),
		Telegram: TelegramConfig{
			Token:         getEnv("TELEGRAM_API_KEY", ""),
			APIURL:        getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
			Timeout:       getEnvDuration("TELEGRAM_TIMEOUT", 10*time.Second),
		},
		Classifier: ClassifierConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout:     getEnvDuration("CLASSIFIER_TIMEOUT", 20*time.Second),
			MaxTokens:   getEnvInt("CLASSIFIER_MAX_TOKENS", 150),
			Temperature: getEnvFloat("CLASSIFIER_TEMPERATURE", 0.1),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled: getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:     getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.AuthSecret == "" {
		return fmt.Errorf("BOT_PASSWORD cannot be empty")
	}
	if len([]rune(c.SearchPrefix)) != 1 {
		return fmt.Errorf("SEARCH_PREFIX must be a single character")
	}
	if c.StoreTimeout <= 0 || c.Telegram.Timeout <= 0 || c.Classifier.Timeout <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	if c.Classifier.MaxTokens <= 0 {
		return fmt.Errorf("CLASSIFIER_MAX_TOKENS must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	return nil
}

// ClassifierEnabled reports whether free text can be routed through the
// language model. Without it every free-text message becomes a search.
func (c *Config) ClassifierEnabled() bool {
	return c.Classifier.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
