package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, logrus.InfoLevel, cfg.Level())

	options := cfg.Options()
	require.NoError(t, options.Validate())
	assert.Equal(t, cfg.Listen, options.LocalAddr)
	assert.Equal(t, cfg.Resend, options.Resend)
}

func TestParse(t *testing.T) {
	data := []byte(`
listen: 127.0.0.1:0
remote: 127.0.0.1:9987
log_level: debug
verbose: 2
outbound_queue: 128
resend:
  initial_timeout: 250ms
  backoff: 2
  max_retries: 3
unknown:
  rate: 5
  burst: 10
metrics:
  enabled: true
  listen: 127.0.0.1:9200
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9987", cfg.Remote)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.Equal(t, 2, cfg.Verbose)
	assert.Equal(t, 250*time.Millisecond, cfg.Resend.InitialTimeout)
	assert.Equal(t, 2.0, cfg.Resend.Backoff)
	assert.Equal(t, 3, cfg.Resend.MaxRetries)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path, "unset keys keep defaults")

	options := cfg.Options()
	assert.Equal(t, 128, options.OutboundQueue)
	assert.Equal(t, rate.Limit(5), options.UnknownRate)
	assert.Equal(t, 10, options.UnknownBurst)
}

func TestParseEnv(t *testing.T) {
	t.Setenv("TSPROTO_REMOTE", "10.0.0.1:9987")
	cfg, err := Parse([]byte("remote: ${TSPROTO_REMOTE}\nlisten: ${TSPROTO_LISTEN:-127.0.0.1:0}\n"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:9987", cfg.Remote)
	assert.Equal(t, "127.0.0.1:0", cfg.Listen)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"listen", func(c *Config) { c.Listen = "nope" }, "invalid listen address"},
		{"remote", func(c *Config) { c.Remote = "nope" }, "invalid remote address"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log_level"},
		{"verbose", func(c *Config) { c.Verbose = 4 }, "verbose"},
		{"queue", func(c *Config) { c.OutboundQueue = 0 }, "outbound_queue"},
		{"resend", func(c *Config) { c.Resend.MaxRetries = -1 }, "max retries"},
		{"unknown", func(c *Config) { c.Unknown.Burst = -1 }, "unknown.rate"},
		{"metrics path", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Path = "metrics" }, "metrics.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tsproto.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, cfg.Level())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("resend: [1, 2]"))
	assert.Error(t, err)

	assert.Contains(t, Default().String(), "initial_timeout: 1s")
}
