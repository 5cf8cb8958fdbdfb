// Package config loads socket and tooling configuration from YAML.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/tsproto"
	"github.com/opd-ai/tsproto/observe"
	"github.com/opd-ai/tsproto/resend"
	"github.com/opd-ai/tsproto/transport"
)

// Config is the complete configuration.
type Config struct {
	// Listen is the local UDP address.
	Listen string `yaml:"listen"`
	// Remote is the server address a client connects to.
	Remote string `yaml:"remote"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
	// Verbose selects packet logging: 1 commands, 2 packets, 3 datagrams.
	Verbose int `yaml:"verbose"`
	// OutboundQueue is the capacity of the outbound datagram queue.
	OutboundQueue int `yaml:"outbound_queue"`

	Resend  resend.Config `yaml:"resend"`
	Unknown UnknownConfig `yaml:"unknown"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// UnknownConfig limits datagrams of peers without a connection.
type UnknownConfig struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Listen:        "0.0.0.0:0",
		LogLevel:      "info",
		OutboundQueue: transport.DefaultQueueCapacity,
		Resend:        resend.DefaultConfig(),
		Unknown: UnknownConfig{
			Rate:  50,
			Burst: 100,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9100",
			Path:   "/metrics",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envVarRegex matches ${VAR}, ${VAR:-default} and $VAR.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if varName, def, ok := strings.Cut(name, ":-"); ok {
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return def
		}
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("invalid listen address %q: %v", c.Listen, err))
	}
	if c.Remote != "" {
		if _, _, err := net.SplitHostPort(c.Remote); err != nil {
			errs = append(errs, fmt.Sprintf("invalid remote address %q: %v", c.Remote, err))
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}
	if c.Verbose < 0 || c.Verbose > int(observe.Datagrams) {
		errs = append(errs, fmt.Sprintf("verbose must be between 0 and %d", observe.Datagrams))
	}
	if c.OutboundQueue < 1 {
		errs = append(errs, "outbound_queue must be positive")
	}
	if err := c.Resend.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Unknown.Rate < 0 || c.Unknown.Burst < 0 {
		errs = append(errs, "unknown.rate and unknown.burst must not be negative")
	}
	if c.Metrics.Enabled {
		if c.Metrics.Listen == "" {
			errs = append(errs, "metrics.listen is required when enabled")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			errs = append(errs, "metrics.path must start with /")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Options converts the configuration into socket options. Logger,
// Observer and Clock are left for the caller.
func (c *Config) Options() *tsproto.Options {
	options := tsproto.NewOptions()
	options.LocalAddr = c.Listen
	options.Resend = c.Resend
	options.OutboundQueue = c.OutboundQueue
	options.UnknownRate = rate.Limit(c.Unknown.Rate)
	options.UnknownBurst = c.Unknown.Burst
	return options
}

// String renders the configuration as YAML.
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}
