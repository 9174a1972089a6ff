// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webrtc-direct.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if cfg.Dial.Transport != "udp" {
		t.Errorf("expected transport=udp, got %s", cfg.Dial.Transport)
	}
	if got := cfg.Dial.ConnectTimeoutDuration(); got != 30*time.Second {
		t.Errorf("expected connect timeout 30s, got %s", got)
	}
	if cfg.Dial.SCTPPort != 5000 {
		t.Errorf("expected sctp_port=5000, got %d", cfg.Dial.SCTPPort)
	}
}

func TestLoad_RequiresEnvironmentVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when WEBRTC_DIRECT_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "WEBRTC_DIRECT_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_WithEnvironmentVariable(t *testing.T) {
	path := writeConfig(t, `
dial:
  transport: tcp
  connect_timeout: 45s
logging:
  format: json
`)
	t.Setenv(EnvironmentVariable, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Dial.Transport != "tcp" {
		t.Errorf("expected transport=tcp, got %s", cfg.Dial.Transport)
	}
	if got := cfg.Dial.ConnectTimeoutDuration(); got != 45*time.Second {
		t.Errorf("expected connect timeout 45s, got %s", got)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected format=json, got %s", cfg.Logging.Format)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Dial.MaxMessageSize != 16384 {
		t.Errorf("expected default max_message_size=16384, got %d", cfg.Dial.MaxMessageSize)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default level=info, got %s", cfg.Logging.Level)
	}
}

func TestLoadFile_ExpandsCacheFile(t *testing.T) {
	t.Setenv("HOME", "/home/operator")
	t.Setenv("WEBRTC_DIRECT_STATE", "")

	path := writeConfig(t, "credentials:\n  cache_file: ${WEBRTC_DIRECT_STATE:-/var/lib/webrtc-direct}/credentials.cbor\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Credentials.CacheFile != "/var/lib/webrtc-direct/credentials.cbor" {
		t.Errorf("cache_file = %q, want default branch", cfg.Credentials.CacheFile)
	}

	path = writeConfig(t, "credentials:\n  cache_file: ${HOME}/.cache/credentials.cbor\n")
	cfg, err = LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Credentials.CacheFile != "/home/operator/.cache/credentials.cbor" {
		t.Errorf("cache_file = %q, want /home/operator/.cache/credentials.cbor", cfg.Credentials.CacheFile)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad transport", func(c *Config) { c.Dial.Transport = "sctp" }, "dial.transport"},
		{"bad timeout", func(c *Config) { c.Dial.ConnectTimeout = "soon" }, "dial.connect_timeout"},
		{"zero timeout", func(c *Config) { c.Dial.ICEFailedTimeout = "0s" }, "dial.ice_failed_timeout"},
		{"bad sctp port", func(c *Config) { c.Dial.SCTPPort = 0 }, "dial.sctp_port"},
		{"small message size", func(c *Config) { c.Dial.MaxMessageSize = 512 }, "dial.max_message_size"},
		{"message size above the read buffer", func(c *Config) { c.Dial.MaxMessageSize = 64*1024 + 1 }, "dial.max_message_size"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not mention %q", err, test.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Dial.Transport = "sctp"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"dial.transport", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
