package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
checks:
  sbfspot:
    enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, 60*time.Second, cfg.Polling.Interval)
	assert.Equal(t, 30*time.Second, cfg.Polling.Timeout)
	assert.Equal(t, "statsd", cfg.Sender.Type)
	assert.Equal(t, "127.0.0.1:8125", cfg.Sender.Statsd.Address)
	assert.Equal(t, "sbfspot", cfg.Checks.SBFspot.Prefix)
	assert.Equal(t, "/var/lib/smadata/SBFspot.db", cfg.Checks.SBFspot.Path)
	assert.Equal(t, "cozytouch", cfg.Checks.Cozytouch.Prefix)
	assert.Equal(t, "netatmo", cfg.Checks.Netatmo.Prefix)
	assert.False(t, cfg.Buffer.Enabled)
	assert.Equal(t, ":8080", cfg.Health.Address)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("COZYTOUCH_PASSWORD", "from-env")
	t.Setenv("SENDER_TYPE", "log")

	path := writeConfig(t, `
polling:
  interval: 5m
checks:
  cozytouch:
    enabled: true
    username: me@example.com
    interval: 2m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Checks.Cozytouch.Password)
	assert.Equal(t, "log", cfg.Sender.Type)
	assert.Equal(t, 2*time.Minute, cfg.IntervalFor(cfg.Checks.Cozytouch.Interval))
	assert.Equal(t, 5*time.Minute, cfg.IntervalFor(cfg.Checks.Netatmo.Interval))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMustLoadPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}

func validConfig() *Config {
	return &Config{
		Polling: PollingConfig{Interval: time.Minute, Timeout: 10 * time.Second},
		Checks: ChecksConfig{
			SBFspot: SBFspotConfig{Enabled: true, Path: "/tmp/SBFspot.db"},
		},
		Sender: SenderConfig{Type: SenderStatsd},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "no checks",
			mutate:  func(c *Config) { c.Checks.SBFspot.Enabled = false },
			wantErr: "at least one check must be enabled",
		},
		{
			name:    "cozytouch without credentials",
			mutate:  func(c *Config) { c.Checks.Cozytouch.Enabled = true },
			wantErr: "checks.cozytouch.username and password are required",
		},
		{
			name: "netatmo without grant",
			mutate: func(c *Config) {
				c.Checks.Netatmo = NetatmoConfig{Enabled: true, ClientID: "id", ClientSecret: "secret"}
			},
			wantErr: "refresh_token or username and password",
		},
		{
			name: "netatmo with refresh token",
			mutate: func(c *Config) {
				c.Checks.Netatmo = NetatmoConfig{Enabled: true, ClientID: "id", ClientSecret: "secret", RefreshToken: "rt"}
			},
		},
		{
			name:    "unknown sender",
			mutate:  func(c *Config) { c.Sender.Type = "carrier-pigeon" },
			wantErr: `unknown sender type "carrier-pigeon"`,
		},
		{
			name:    "http sender without url",
			mutate:  func(c *Config) { c.Sender.Type = SenderHTTP },
			wantErr: "sender.http.url is required",
		},
		{
			name:    "influxdb without bucket",
			mutate:  func(c *Config) { c.Sender.Type = SenderInfluxDB },
			wantErr: "sender.influxdb.org and sender.influxdb.bucket are required",
		},
		{
			name: "mqtt bad qos",
			mutate: func(c *Config) {
				c.Sender.Type = SenderMQTT
				c.Sender.MQTT.QoS = 3
			},
			wantErr: "sender.mqtt.qos must be 0, 1, or 2",
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Polling.Interval = 0 },
			wantErr: "polling.interval must be positive",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
