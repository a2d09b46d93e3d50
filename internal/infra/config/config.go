package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken      string
	OperatorTelegramID int64
	APIBaseURL         string
	APIToken           string
	DatabaseURL        string // Optional, enables the outcome journal
	UpgradeURL         string // Optional, shown on plan limit rejections
	LogLevel           string
	Environment        string

	PollInterval            time.Duration
	CountdownInterval       time.Duration
	ProgressRefreshInterval time.Duration
	NotificationTTL         time.Duration
	HTTPTimeout             time.Duration
	HTTPMaxRetries          int
	MaxPollFailures         int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	operatorIDStr := os.Getenv("OPERATOR_TELEGRAM_ID")
	if operatorIDStr == "" {
		return nil, fmt.Errorf("OPERATOR_TELEGRAM_ID is not set")
	}
	cfg.OperatorTelegramID, err = strconv.ParseInt(operatorIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OPERATOR_TELEGRAM_ID: %w", err)
	}

	cfg.APIBaseURL = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is not set")
	}
	if u, err := url.Parse(cfg.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API_BASE_URL %q", cfg.APIBaseURL)
	}

	cfg.APIToken = os.Getenv("API_TOKEN")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.UpgradeURL = os.Getenv("UPGRADE_URL")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.CountdownInterval, err = durationEnv("COUNTDOWN_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.ProgressRefreshInterval, err = durationEnv("PROGRESS_REFRESH_INTERVAL", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.NotificationTTL, err = durationEnv("NOTIFICATION_TTL", 6*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = durationEnv("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPMaxRetries, err = intEnv("HTTP_MAX_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.MaxPollFailures, err = intEnv("MAX_POLL_FAILURES", 30); err != nil {
		return nil, err
	}

	// cron cannot schedule below one second
	for name, d := range map[string]time.Duration{
		"POLL_INTERVAL":             cfg.PollInterval,
		"COUNTDOWN_INTERVAL":        cfg.CountdownInterval,
		"PROGRESS_REFRESH_INTERVAL": cfg.ProgressRefreshInterval,
	} {
		if d < time.Second {
			return nil, fmt.Errorf("%s must be at least 1s, got %s", name, d)
		}
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return n, nil
}
