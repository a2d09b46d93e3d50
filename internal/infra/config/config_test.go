package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnvs sets the required variables plus any overrides for one test.
func setEnvs(t *testing.T, overrides map[string]string) {
	t.Helper()
	envs := map[string]string{
		"TELEGRAM_TOKEN":            "token",
		"OPERATOR_TELEGRAM_ID":      "4242",
		"API_BASE_URL":              "https://api.example.com/",
		"API_TOKEN":                 "",
		"DATABASE_URL":              "",
		"UPGRADE_URL":               "",
		"LOG_LEVEL":                 "",
		"ENVIRONMENT":               "",
		"POLL_INTERVAL":             "",
		"COUNTDOWN_INTERVAL":        "",
		"PROGRESS_REFRESH_INTERVAL": "",
		"NOTIFICATION_TTL":          "",
		"HTTP_TIMEOUT":              "",
		"HTTP_MAX_RETRIES":          "",
		"MAX_POLL_FAILURES":         "",
	}
	for k, v := range overrides {
		envs[k] = v
	}
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, nil)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "token", cfg.TelegramToken)
	assert.Equal(t, int64(4242), cfg.OperatorTelegramID)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.CountdownInterval)
	assert.Equal(t, 3*time.Second, cfg.ProgressRefreshInterval)
	assert.Equal(t, 6*time.Second, cfg.NotificationTTL)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2, cfg.HTTPMaxRetries)
	assert.Equal(t, 30, cfg.MaxPollFailures)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	setEnvs(t, map[string]string{
		"API_TOKEN":         "secret",
		"DATABASE_URL":      "postgres://localhost/replies?sslmode=disable",
		"UPGRADE_URL":       "https://example.com/pricing",
		"LOG_LEVEL":         "DEBUG",
		"ENVIRONMENT":       "Production",
		"POLL_INTERVAL":     "5s",
		"HTTP_MAX_RETRIES":  "0",
		"MAX_POLL_FAILURES": "10",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.APIToken)
	assert.Equal(t, "postgres://localhost/replies?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, "https://example.com/pricing", cfg.UpgradeURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 0, cfg.HTTPMaxRetries)
	assert.Equal(t, 10, cfg.MaxPollFailures)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		contains  string
	}{
		{"missing token", map[string]string{"TELEGRAM_TOKEN": ""}, "TELEGRAM_TOKEN"},
		{"missing operator", map[string]string{"OPERATOR_TELEGRAM_ID": ""}, "OPERATOR_TELEGRAM_ID"},
		{"operator not a number", map[string]string{"OPERATOR_TELEGRAM_ID": "abc"}, "OPERATOR_TELEGRAM_ID"},
		{"missing api url", map[string]string{"API_BASE_URL": ""}, "API_BASE_URL"},
		{"relative api url", map[string]string{"API_BASE_URL": "api.example.com"}, "API_BASE_URL"},
		{"bad duration", map[string]string{"POLL_INTERVAL": "often"}, "POLL_INTERVAL"},
		{"negative duration", map[string]string{"NOTIFICATION_TTL": "-1s"}, "NOTIFICATION_TTL"},
		{"sub second interval", map[string]string{"COUNTDOWN_INTERVAL": "500ms"}, "COUNTDOWN_INTERVAL"},
		{"bad int", map[string]string{"HTTP_MAX_RETRIES": "many"}, "HTTP_MAX_RETRIES"},
		{"negative int", map[string]string{"MAX_POLL_FAILURES": "-3"}, "MAX_POLL_FAILURES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.overrides)

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
