package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/photonctl/pkg/session"
)

// Config holds application configuration
type Config struct {
	LogLevel string        `yaml:"log_level" default:"info"`
	Session  SessionConfig `yaml:"session"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
}

// SessionConfig tunes the BLE session.
type SessionConfig struct {
	AutoScan           bool          `yaml:"auto_scan" default:"true"`
	ReconnectDelay     time.Duration `yaml:"reconnect_delay" default:"0s"`
	InboxSize          int           `yaml:"inbox_size" default:"256"`
	SubscriptionBuffer int           `yaml:"subscription_buffer" default:"16"`
}

// MQTTConfig configures telemetry forwarding. Forwarding is off while Broker is empty.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TopicPrefix    string        `yaml:"topic_prefix" default:"photon"`
	QoS            int           `yaml:"qos" default:"0"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"10s"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be expressed by the YAML types.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Session.InboxSize <= 0 {
		errs = append(errs, fmt.Errorf("session.inbox_size must be positive, got %d", c.Session.InboxSize))
	}
	if c.Session.ReconnectDelay < 0 {
		errs = append(errs, fmt.Errorf("session.reconnect_delay must not be negative, got %s", c.Session.ReconnectDelay))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}

// Level returns the configured log level, falling back to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// SessionOptions converts the session section.
func (c *Config) SessionOptions() session.Options {
	opts := session.DefaultOptions()
	opts.AutoScan = c.Session.AutoScan
	opts.ReconnectDelay = c.Session.ReconnectDelay
	if c.Session.InboxSize > 0 {
		opts.InboxSize = c.Session.InboxSize
	}
	return opts
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
