package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.ServerHost)
				assert.Equal(t, 8080, cfg.ServerPort)
				assert.Equal(t, "file:///var/lib/qbdrelay?create_dir=true", cfg.BlobBucketURL)
				assert.Equal(t, "primary", cfg.Origin)
				assert.Empty(t, cfg.ConnectionIDs)
				assert.Equal(t, 30*time.Second, cfg.PollInterval)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
			},
		},
		{
			name: "load custom server configuration",
			envVars: map[string]string{
				"SERVER_HOST": "localhost",
				"SERVER_PORT": "9090",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "localhost", cfg.ServerHost)
				assert.Equal(t, 9090, cfg.ServerPort)
			},
		},
		{
			name: "load custom store configuration",
			envVars: map[string]string{
				"BLOB_BUCKET_URL": "s3://qbd-staging?region=us-east-1",
				"ORIGIN":          "quickbooks",
				"CONNECTION_IDS":  "54372cb069702d1f59000000, 5af3b2cf25d9e10cde000001",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "s3://qbd-staging?region=us-east-1", cfg.BlobBucketURL)
				assert.Equal(t, "quickbooks", cfg.Origin)
				assert.Equal(
					t,
					[]string{"54372cb069702d1f59000000", "5af3b2cf25d9e10cde000001"},
					cfg.ConnectionIDs,
				)
			},
		},
		{
			name: "load custom poll interval",
			envVars: map[string]string{
				"POLL_INTERVAL_SECONDS": "10",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 10*time.Second, cfg.PollInterval)
			},
		},
		{
			name: "load custom log level",
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.LogLevel)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for key, value := range tt.envVars {
				err := os.Setenv(key, value)
				require.NoError(t, err)
			}

			// Load configuration
			cfg := Load()

			// Validate
			tt.validate(t, cfg)
		})
	}
}

func TestGetGinMode(t *testing.T) {
	tests := []struct {
		logLevel string
		expected string
	}{
		{"debug", "debug"},
		{"info", "release"},
		{"warn", "release"},
		{"error", "release"},
		{"unknown", "release"},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			assert.Equal(t, tt.expected, cfg.GetGinMode())
		})
	}
}
