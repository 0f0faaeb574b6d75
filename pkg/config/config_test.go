package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photonctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Session.AutoScan)
	assert.Equal(t, time.Duration(0), cfg.Session.ReconnectDelay)
	assert.Equal(t, 256, cfg.Session.InboxSize)
	assert.Equal(t, 16, cfg.Session.SubscriptionBuffer)
	assert.Equal(t, "photon", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 10*time.Second, cfg.MQTT.ConnectTimeout)
	assert.False(t, cfg.MQTT.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
session:
  auto_scan: false
  reconnect_delay: 2s
mqtt:
  broker: tcp://localhost:1883
  qos: 1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.False(t, cfg.Session.AutoScan, "explicit false MUST override the default")
	assert.Equal(t, 2*time.Second, cfg.Session.ReconnectDelay)
	assert.Equal(t, 256, cfg.Session.InboxSize, "absent keys MUST keep defaults")
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.Equal(t, "photon", cfg.MQTT.TopicPrefix)

	opts := cfg.SessionOptions()
	assert.False(t, opts.AutoScan)
	assert.Equal(t, 2*time.Second, opts.ReconnectDelay)
	assert.Equal(t, 256, opts.InboxSize)
	assert.NotNil(t, opts.Clock)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "malformed yaml", body: "log_level: [", want: "failed to parse config"},
		{name: "bad level", body: "log_level: loud", want: "not a valid logrus Level"},
		{name: "bad qos", body: "mqtt:\n  qos: 3", want: "mqtt.qos"},
		{name: "bad inbox", body: "session:\n  inbox_size: 0", want: "session.inbox_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{name: "creates logger with debug level", logLevel: "debug", want: logrus.DebugLevel},
		{name: "creates logger with info level", logLevel: "info", want: logrus.InfoLevel},
		{name: "creates logger with warn level", logLevel: "warn", want: logrus.WarnLevel},
		{name: "falls back to info", logLevel: "bogus", want: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}
