package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process-wide configuration for inboxdraft.
// It is loaded once at startup and passed explicitly to every component
// that needs it; nothing reads ambient environment state after Load.
type Config struct {
	// HTTPAddr is the listen address of the API server (e.g. ":8080").
	HTTPAddr string

	// BaseURL is the externally visible URL of this server. It is used to
	// build the OAuth redirect URL, which must match the Google Cloud
	// Console configuration exactly.
	BaseURL string

	// Google OAuth client credentials.
	GoogleClientID     string
	GoogleClientSecret string

	// DBPath is the SQLite database file holding stored credentials.
	DBPath string

	// Completions endpoint used by the reply generator. An empty API key
	// disables generation; the generator then returns placeholder text.
	CompletionsAPIURL string
	CompletionsAPIKey string
	CompletionsModel  string

	// Metrics server settings.
	MetricsEnabled bool
	MetricsAddr    string

	// SessionTimeout bounds how long an idle browser session is kept.
	SessionTimeout time.Duration
}

// Load reads configuration from the environment, consulting a .env file
// if one is present in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	conf := &Config{
		HTTPAddr:           getEnv("INBOXDRAFT_HTTP_ADDR", ":8080"),
		BaseURL:            getEnv("INBOXDRAFT_BASE_URL", "http://localhost:8080"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		DBPath:             getEnv("INBOXDRAFT_DB_PATH", "inboxdraft.db"),
		CompletionsAPIURL:  getEnv("COMPLETIONS_API_URL", "https://api.openai.com/v1"),
		CompletionsAPIKey:  getEnv("COMPLETIONS_API_KEY", ""),
		CompletionsModel:   getEnv("COMPLETIONS_MODEL", "gpt-4.1-mini"),
		MetricsEnabled:     getEnvBool("INBOXDRAFT_METRICS_ENABLED", true),
		MetricsAddr:        getEnv("INBOXDRAFT_METRICS_ADDR", ":9090"),
		SessionTimeout:     getEnvDuration("INBOXDRAFT_SESSION_TIMEOUT", 24*time.Hour),
	}

	return conf, nil
}

// Validate checks that the settings required to serve requests are present.
func (c *Config) Validate() error {
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
