// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path from.
const EnvironmentVariable = "WEBRTC_DIRECT_CONFIG"

// Config is the master configuration for the webrtc-direct binaries.
type Config struct {
	// Dial configures outbound negotiation sessions.
	Dial DialConfig `yaml:"dial"`

	// Credentials configures the derived-credential cache.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Logging configures the slog handler.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// DialConfig configures outbound negotiation sessions.
type DialConfig struct {
	// Transport is the transport sub-protocol: "udp" or "tcp".
	// Default: udp
	Transport string `yaml:"transport"`

	// ConnectTimeout bounds the Connecting state.
	// Default: 30s
	ConnectTimeout string `yaml:"connect_timeout"`

	// DataChannelID is the stream id of the pre-negotiated data channel.
	// Both peers must agree on it. Default: 0
	DataChannelID uint16 `yaml:"data_channel_id"`

	// DataChannelLabel labels the pre-negotiated data channel.
	// Default: "" (the remote does not see it for negotiated channels)
	DataChannelLabel string `yaml:"data_channel_label"`

	// SCTPPort is advertised as a=sctp-port in the synthesized answer.
	// Default: 5000
	SCTPPort int `yaml:"sctp_port"`

	// MaxMessageSize is advertised as a=max-message-size and bounds
	// each write on the data channel. At most 65536, the largest
	// message a receiving data channel conn reads whole. Default: 16384
	MaxMessageSize int `yaml:"max_message_size"`

	// ICEDisconnectedTimeout and ICEFailedTimeout tune the local ICE
	// agent. Default: 5s and 25s
	ICEDisconnectedTimeout string `yaml:"ice_disconnected_timeout"`
	ICEFailedTimeout       string `yaml:"ice_failed_timeout"`
}

// CredentialsConfig configures the derived-credential cache.
type CredentialsConfig struct {
	// CacheFile is a CBOR file holding previously derived remote
	// credentials. Empty disables persistence.
	CacheFile string `yaml:"cache_file"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level"`

	// Format is "text" or "json". Default: text
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the host:port serving /metrics. Empty disables it.
	Listen string `yaml:"listen"`
}

// maxMessageSizeLimit matches transport.MaxMessageSizeLimit.
const maxMessageSizeLimit = 64 * 1024

// Default returns the default configuration. LoadFile decodes the
// file on top of it, so keys absent from the file keep these values.
func Default() *Config {
	return &Config{
		Dial: DialConfig{
			Transport:              "udp",
			ConnectTimeout:         "30s",
			DataChannelID:          0,
			SCTPPort:               5000,
			MaxMessageSize:         16384,
			ICEDisconnectedTimeout: "5s",
			ICEFailedTimeout:       "25s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the file named by WEBRTC_DIRECT_CONFIG.
// Fails if the variable is not set.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your webrtc-direct.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path and validates it.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Credentials.CacheFile = expandVars(c.Credentials.CacheFile, vars)
	if c.Credentials.CacheFile != "" {
		c.Credentials.CacheFile = filepath.Clean(c.Credentials.CacheFile)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{"udp", "tcp"}, c.Dial.Transport) {
		errs = append(errs, fmt.Errorf("dial.transport must be udp or tcp, got %q", c.Dial.Transport))
	}
	for name, value := range map[string]string{
		"dial.connect_timeout":          c.Dial.ConnectTimeout,
		"dial.ice_disconnected_timeout": c.Dial.ICEDisconnectedTimeout,
		"dial.ice_failed_timeout":       c.Dial.ICEFailedTimeout,
	} {
		if _, err := parsePositiveDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Dial.SCTPPort < 1 || c.Dial.SCTPPort > 65535 {
		errs = append(errs, fmt.Errorf("dial.sctp_port must be in 1..65535, got %d", c.Dial.SCTPPort))
	}
	if c.Dial.MaxMessageSize < 1024 || c.Dial.MaxMessageSize > maxMessageSizeLimit {
		errs = append(errs, fmt.Errorf("dial.max_message_size must be in 1024..%d, got %d", maxMessageSizeLimit, c.Dial.MaxMessageSize))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level))
	}
	if !slices.Contains([]string{"text", "json"}, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// ConnectTimeoutDuration returns dial.connect_timeout as a duration. Only
// meaningful after Validate succeeded.
func (c *DialConfig) ConnectTimeoutDuration() time.Duration {
	duration, _ := parsePositiveDuration(c.ConnectTimeout)
	return duration
}

// ICETimeouts returns the disconnected and failed ICE timeouts.
func (c *DialConfig) ICETimeouts() (disconnected, failed time.Duration) {
	disconnected, _ = parsePositiveDuration(c.ICEDisconnectedTimeout)
	failed, _ = parsePositiveDuration(c.ICEFailedTimeout)
	return disconnected, failed
}

func parsePositiveDuration(value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if duration <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", value)
	}
	return duration, nil
}
