package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the SDR agent service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Gemini model configuration
	GeminiAPIKey        string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiBaseURL       string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiPrimaryModel  string `envconfig:"GEMINI_PRIMARY_MODEL" default:"gemini-2.5-flash"`
	GeminiFallbackModel string `envconfig:"GEMINI_FALLBACK_MODEL" default:"gemini-2.0-flash"`

	// Model retry policy. The backoff is fixed per attempt.
	ModelMaxRetries          int `envconfig:"MODEL_MAX_RETRIES" default:"3"`
	ModelRetryBackoffSeconds int `envconfig:"MODEL_RETRY_BACKOFF_SECONDS" default:"40"`

	// Google Calendar configuration
	GoogleCalendarID        string `envconfig:"GOOGLE_CALENDAR_ID" required:"true"`
	GoogleServiceAccountKey string `envconfig:"GOOGLE_SERVICE_ACCOUNT_KEY" required:"true"` // raw JSON key content

	// Pipefy CRM configuration. An empty token enables simulation mode:
	// mutations are short-circuited with simulated payloads.
	PipefyAccessToken string `envconfig:"PIPEFY_ACCESS_TOKEN" default:""`
	PipefyPipeID      string `envconfig:"PIPEFY_PIPE_ID" default:""`
	PipefyURL         string `envconfig:"PIPEFY_URL" default:"https://api.pipefy.com/graphql"`

	// Scheduling configuration
	Timezone          string `envconfig:"TIMEZONE" default:"America/Sao_Paulo"`
	SlotSearchDays    int    `envconfig:"SLOT_SEARCH_DAYS" default:"7"`
	SlotSearchCount   int    `envconfig:"SLOT_SEARCH_COUNT" default:"3"`
	SlotDayStartHour  int    `envconfig:"SLOT_DAY_START_HOUR" default:"9"`
	SlotDayEndHour    int    `envconfig:"SLOT_DAY_END_HOUR" default:"18"`
	SlotDurationHours int    `envconfig:"SLOT_DURATION_HOURS" default:"1"`
	SuggestionStepMin int    `envconfig:"SUGGESTION_STEP_MINUTES" default:"60"`
	SuggestionCount   int    `envconfig:"SUGGESTION_COUNT" default:"3"`

	// Optional Postgres transcript store; disabled when empty
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.GoogleCalendarID == "" {
		return fmt.Errorf("GOOGLE_CALENDAR_ID is required")
	}
	if c.GoogleServiceAccountKey == "" {
		return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_KEY is required")
	}
	if c.ModelMaxRetries < 1 {
		return fmt.Errorf("MODEL_MAX_RETRIES must be at least 1")
	}
	if c.SlotDayStartHour < 0 || c.SlotDayEndHour > 24 || c.SlotDayStartHour >= c.SlotDayEndHour {
		return fmt.Errorf("invalid slot day window [%d, %d)", c.SlotDayStartHour, c.SlotDayEndHour)
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
