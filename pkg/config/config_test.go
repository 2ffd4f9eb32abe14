package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.OutputFormat)
	assert.Empty(t, cfg.Address)
	assert.Equal(t, "walkingpad", cfg.DeviceName)
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 890*time.Millisecond, cfg.CommandInterval)
	assert.Equal(t, 128, cfg.NotificationBuffer)
	assert.Equal(t, "127.0.0.1:3030", cfg.HTTP.Listen)
	assert.Equal(t, uint32(256), cfg.HTTP.HistorySize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("empty path yields defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join("testdata", "padctl.yaml"))
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "json", cfg.OutputFormat)
		assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.Address)
		assert.Equal(t, 15*time.Second, cfg.ConnectTimeout)
		assert.Equal(t, time.Second, cfg.CommandInterval)
		assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Listen)
		assert.Equal(t, uint32(64), cfg.HTTP.HistorySize)

		// untouched keys keep their defaults
		assert.Equal(t, "walkingpad", cfg.DeviceName)
		assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join("testdata", "absent.yaml"))
		assert.ErrorContains(t, err, "failed to read config")
	})

	t.Run("command interval below the pad minimum", func(t *testing.T) {
		_, err := Load(filepath.Join("testdata", "too_fast.yaml"))
		assert.ErrorContains(t, err, "command_interval")
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		_, err := Load(filepath.Join("testdata", "unknown_field.yaml"))
		assert.ErrorContains(t, err, "speed_limit")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad output format", func(c *Config) { c.OutputFormat = "xml" }, "output_format"},
		{"zero notification buffer", func(c *Config) { c.NotificationBuffer = 0 }, "notification_buffer"},
		{"zero history", func(c *Config) { c.HTTP.HistorySize = 0 }, "history_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level

			logger := cfg.NewLogger()

			expected, _ := logrus.ParseLevel(level)
			assert.Equal(t, expected, logger.GetLevel())
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}

	t.Run("invalid level falls back to info", func(t *testing.T) {
		cfg := &Config{LogLevel: "chatty"}
		assert.Equal(t, logrus.InfoLevel, cfg.NewLogger().GetLevel())
	})
}

func TestConfig_ConnectOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectTimeout = 3 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	cfg.NotificationBuffer = 16

	opts := cfg.ConnectOptions()

	assert.Equal(t, 3*time.Second, opts.ConnectTimeout)
	assert.Equal(t, 2*time.Second, opts.WriteTimeout)
	assert.Equal(t, 16, opts.NotificationBuffer)
	assert.Len(t, cfg.SessionOptions(logrus.New()), 3)
}

func BenchmarkDefaultConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConfig()
	}
}
