package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Remote.DefaultBase != defaultRemoteBase {
		t.Fatalf("default base = %q", cfg.Remote.DefaultBase)
	}
	if cfg.Similarity.DefaultThreshold != 70 {
		t.Fatalf("default threshold = %d", cfg.Similarity.DefaultThreshold)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`state_dir = "` + filepath.Join(dir, "state") + `"`,
		`api_bind = " 127.0.0.1:9999 "`,
		"[remote]",
		`default_base = "https://cms.example.org/++api++/"`,
		"request_timeout_seconds = 30",
		"[logging]",
		`format = "JSON"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("api bind = %q", cfg.Paths.APIBind)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("log format = %q", cfg.Logging.Format)
	}
	if cfg.Remote.RequestTimeoutSeconds != 30 {
		t.Fatalf("timeout = %d", cfg.Remote.RequestTimeoutSeconds)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty bind", func(c *Config) { c.Paths.APIBind = "" }},
		{"non-http base", func(c *Config) { c.Remote.DefaultBase = "ftp://example.org" }},
		{"zero timeout", func(c *Config) { c.Remote.RequestTimeoutSeconds = 0 }},
		{"threshold too high", func(c *Config) { c.Similarity.DefaultThreshold = 101 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[similarity]") {
		t.Fatal("sample config missing similarity section")
	}
}
