package esearch

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is the NCBI ESearch E-utility endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"

// Config controls the fetcher.
type Config struct {
	BaseURL string
	RetMax  int           // Page size sent as retmax
	Sleep   time.Duration // Pause between consecutive requests
	Timeout time.Duration // Per-request HTTP timeout

	// NCBI asks API clients to identify themselves. Empty values are not sent.
	APIKey string
	Email  string
	Tool   string
}

// DefaultConfig returns the settings the NCBI usage guidelines are written
// around: 100 ids per page, one request every two seconds.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		RetMax:  100,
		Sleep:   2 * time.Second,
		Timeout: 30 * time.Second,
	}
}

// ConfigFromEnv starts from DefaultConfig and applies environment overrides.
// When files are given they are loaded with godotenv first; variables already
// set in the process environment win over the files.
//
//	NCBI_API_KEY, NCBI_EMAIL, NCBI_TOOL
//	ESEARCH_URL, ESEARCH_RETMAX, ESEARCH_SLEEP, ESEARCH_TIMEOUT
//
// Durations use time.ParseDuration syntax ("500ms", "2s").
func ConfigFromEnv(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("loading env files: %w", err)
		}
	}

	cfg := DefaultConfig()
	cfg.BaseURL = getEnv("ESEARCH_URL", cfg.BaseURL)
	cfg.APIKey = getEnv("NCBI_API_KEY", "")
	cfg.Email = getEnv("NCBI_EMAIL", "")
	cfg.Tool = getEnv("NCBI_TOOL", "")

	var err error
	if cfg.RetMax, err = getEnvInt("ESEARCH_RETMAX", cfg.RetMax); err != nil {
		return Config{}, err
	}
	if cfg.Sleep, err = getEnvDuration("ESEARCH_SLEEP", cfg.Sleep); err != nil {
		return Config{}, err
	}
	if cfg.Timeout, err = getEnvDuration("ESEARCH_TIMEOUT", cfg.Timeout); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate reports settings the fetch loop cannot run with.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("esearch: base URL is required")
	}
	if c.RetMax <= 0 {
		return fmt.Errorf("esearch: retmax must be positive, got %d", c.RetMax)
	}
	if c.Sleep < 0 {
		return fmt.Errorf("esearch: sleep must not be negative, got %s", c.Sleep)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("esearch: %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("esearch: %s: %w", key, err)
	}
	return d, nil
}
