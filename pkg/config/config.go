package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/padctl/internal/device"
	"github.com/srg/padctl/internal/pad"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel     string `yaml:"log_level" default:"info"`
	OutputFormat string `yaml:"output_format" default:"text"` // text, json

	// Address selects the pad directly; when empty the pad is found by scanning for DeviceName.
	Address    string `yaml:"address"`
	DeviceName string `yaml:"device_name" default:"walkingpad"`

	ScanTimeout        time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout" default:"30s"`
	WriteTimeout       time.Duration `yaml:"write_timeout" default:"5s"`
	CommandInterval    time.Duration `yaml:"command_interval" default:"890ms"`
	NotificationBuffer int           `yaml:"notification_buffer" default:"128"`

	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the serve command
type HTTPConfig struct {
	Listen      string `yaml:"listen" default:"127.0.0.1:3030"`
	HistorySize uint32 `yaml:"history_size" default:"256"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := cfg.decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return c.Validate()
}

// Validate checks values that would otherwise fail later and less clearly
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.OutputFormat {
	case "text", "json":
	default:
		return fmt.Errorf("output_format: unknown format %q (must be text or json)", c.OutputFormat)
	}
	if c.CommandInterval < pad.MinCommandInterval {
		return fmt.Errorf("command_interval: %v is below the pad's minimum of %v", c.CommandInterval, pad.MinCommandInterval)
	}
	if c.NotificationBuffer <= 0 {
		return fmt.Errorf("notification_buffer: must be > 0")
	}
	if c.HTTP.HistorySize == 0 {
		return fmt.Errorf("http.history_size: must be > 0")
	}
	return nil
}

// Level returns the parsed log level, falling back to info
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// ConnectOptions returns the transport options derived from c
func (c *Config) ConnectOptions() *device.ConnectOptions {
	opts := device.DefaultConnectOptions()
	opts.ConnectTimeout = c.ConnectTimeout
	opts.WriteTimeout = c.WriteTimeout
	opts.NotificationBuffer = c.NotificationBuffer
	return opts
}

// SessionOptions returns the pad session options derived from c
func (c *Config) SessionOptions(logger *logrus.Logger) []pad.Option {
	return []pad.Option{
		pad.WithLogger(logger),
		pad.WithCommandInterval(c.CommandInterval),
		pad.WithConnectOptions(c.ConnectOptions()),
	}
}
