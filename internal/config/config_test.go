package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envBindings {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != DefaultHost || cfg.AuthHost != DefaultAuthHost {
		t.Fatalf("unexpected hosts: %q %q", cfg.Host, cfg.AuthHost)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.RequestTimeout)
	}
	if cfg.Credentials.Backend != BackendFile {
		t.Fatalf("unexpected backend %q", cfg.Credentials.Backend)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
host: https://staging.example.com
request_timeout: 5s
transport_retries: 2
credentials:
  backend: sqlite
logging:
  level: debug
`)
	t.Setenv("SF_API_CLIENT_ID", "client-1")
	t.Setenv("SF_FIRM_ID", "1234")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "https://staging.example.com" {
		t.Fatalf("unexpected host %q", cfg.Host)
	}
	if cfg.RequestTimeout != 5*time.Second || cfg.TransportRetries != 2 {
		t.Fatalf("unexpected transport settings: %s %d", cfg.RequestTimeout, cfg.TransportRetries)
	}
	if cfg.Credentials.Backend != BackendSQLite || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected nested settings: %+v %+v", cfg.Credentials, cfg.Logging)
	}
	if cfg.ClientID != "client-1" || cfg.DefaultFirm != "1234" {
		t.Fatalf("env bindings not applied: %q %q", cfg.ClientID, cfg.DefaultFirm)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "host: https://file.example.com\n")
	t.Setenv("SF_HOST", "https://env.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "https://env.example.com" {
		t.Fatalf("expected env host, got %q", cfg.Host)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad host", func(c *Config) { c.Host = "not a url" }, "host must include scheme"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"negative retries", func(c *Config) { c.TransportRetries = -1 }, "transport_retries"},
		{"backend", func(c *Config) { c.Credentials.Backend = "vault" }, "credentials.backend"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestURLs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "https://live.example.com/"
	if got := cfg.FirmBaseURL("42"); got != "https://live.example.com/api/v4/f/42" {
		t.Fatalf("unexpected base url %q", got)
	}
	if got := cfg.TokenURL("42"); got != "https://api.getsilverfin.com/f/42/oauth/token" {
		t.Fatalf("unexpected token url %q", got)
	}
}

func TestAuthorizeURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClientID = "cid"
	got := cfg.AuthorizeURL("42")
	if !strings.HasPrefix(got, "https://live.getsilverfin.com/f/42/oauth/authorize?") {
		t.Fatalf("unexpected authorize url %q", got)
	}
	for _, want := range []string{"client_id=cid", "redirect_uri=urn%3Aietf%3Awg%3Aoauth%3A2.0%3Aoob", "scope=administration%3Aread"} {
		if !strings.Contains(got, want) {
			t.Fatalf("authorize url %q misses %q", got, want)
		}
	}
}

func TestRequireClient(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.RequireClient(); err == nil || !strings.Contains(err.Error(), "SF_API_SECRET") {
		t.Fatalf("expected missing client error, got %v", err)
	}
	cfg.ClientID, cfg.ClientSecret = "id", "secret"
	if err := cfg.RequireClient(); err != nil {
		t.Fatalf("RequireClient: %v", err)
	}
}

func TestRenderRedactsSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClientSecret = "top-secret"

	data, err := Render(cfg)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "top-secret") {
		t.Fatalf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "request_timeout: 30s") {
		t.Fatalf("timeout not rendered as duration: %s", out)
	}
	if cfg.ClientSecret != "top-secret" {
		t.Fatalf("Render mutated the config")
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if written != path {
		t.Fatalf("unexpected path %q", written)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load written default: %v", err)
	}
	if cfg.RequestTimeout != 30*time.Second || cfg.Host != DefaultHost {
		t.Fatalf("unexpected loaded config: %+v", cfg)
	}
}
