// Package config loads the tplsync configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/firmkit/tplsync/internal/vault"
)

// Credential backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Defaults for the remote service.
const (
	DefaultHost        = "https://live.getsilverfin.com"
	DefaultAuthHost    = "https://api.getsilverfin.com"
	DefaultRedirectURI = "urn:ietf:wg:oauth:2.0:oob"
)

// Config is the top-level configuration.
type Config struct {
	Host             string            `mapstructure:"host" yaml:"host"`
	AuthHost         string            `mapstructure:"auth_host" yaml:"auth_host"`
	ClientID         string            `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret     string            `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectURI      string            `mapstructure:"redirect_uri" yaml:"redirect_uri"`
	DefaultFirm      string            `mapstructure:"default_firm" yaml:"default_firm"`
	RequestTimeout   time.Duration     `mapstructure:"request_timeout" yaml:"request_timeout"`
	TransportRetries int               `mapstructure:"transport_retries" yaml:"transport_retries"`
	TemplatesDir     string            `mapstructure:"templates_dir" yaml:"templates_dir"`
	Credentials      CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	State            StateConfig       `mapstructure:"state" yaml:"state"`
	Logging          LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// CredentialsConfig selects where token pairs are kept.
type CredentialsConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// StateConfig locates the SQLite database holding the sync history (and the
// tokens when the sqlite backend is selected).
type StateConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Dir returns the configuration directory.
func Dir() string {
	return vault.DefaultVaultPath()
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns a config with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Host:             DefaultHost,
		AuthHost:         DefaultAuthHost,
		RedirectURI:      DefaultRedirectURI,
		RequestTimeout:   30 * time.Second,
		TransportRetries: 0,
		TemplatesDir:     ".",
		Credentials: CredentialsConfig{
			Backend: BackendFile,
			Path:    vault.DefaultCredentialsPath(),
		},
		State: StateConfig{
			DBPath: filepath.Join(Dir(), "tplsync.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the config for unusable values.
func (c *Config) Validate() error {
	var errs []error
	if err := validateURL("host", c.Host); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("auth_host", c.AuthHost); err != nil {
		errs = append(errs, err)
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.TransportRetries < 0 {
		errs = append(errs, fmt.Errorf("transport_retries must not be negative, got %d", c.TransportRetries))
	}
	if strings.TrimSpace(c.TemplatesDir) == "" {
		errs = append(errs, errors.New("templates_dir is required"))
	}
	switch c.Credentials.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Credentials.Path) == "" {
			errs = append(errs, errors.New("credentials.path is required for the file backend"))
		}
	case BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported credentials.backend %q (expected %s or %s)", c.Credentials.Backend, BackendFile, BackendSQLite))
	}
	if strings.TrimSpace(c.State.DBPath) == "" {
		errs = append(errs, errors.New("state.db_path is required"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported logging.format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// RequireClient reports an error when the OAuth2 client credentials are
// missing.
func (c *Config) RequireClient() error {
	var missing []string
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client_id (SF_API_CLIENT_ID)")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "client_secret (SF_API_SECRET)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing OAuth2 client settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// FirmBaseURL returns the API base URL scoped to firm.
func (c *Config) FirmBaseURL(firm string) string {
	return strings.TrimRight(c.Host, "/") + "/api/v4/f/" + url.PathEscape(firm)
}

// TokenURL returns the OAuth2 token endpoint of firm.
func (c *Config) TokenURL(firm string) string {
	return strings.TrimRight(c.AuthHost, "/") + "/f/" + url.PathEscape(firm) + "/oauth/token"
}

// AuthorizeScopes are requested when a firm is authorized.
const AuthorizeScopes = "administration:read administration:write financials:read financials:write workflows:read"

// AuthorizeURL returns the page where a user grants access to firm and
// receives the authorization code.
func (c *Config) AuthorizeURL(firm string) string {
	query := url.Values{}
	query.Set("client_id", c.ClientID)
	query.Set("redirect_uri", c.RedirectURI)
	query.Set("scope", AuthorizeScopes)
	return strings.TrimRight(c.Host, "/") + "/f/" + url.PathEscape(firm) + "/oauth/authorize?" + query.Encode()
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.ClientSecret != "" {
		out.ClientSecret = "********"
	}
	return &out
}

func validateURL(key, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must include scheme and host (e.g. https://example.com), got %q", key, value)
	}
	return nil
}

func expandPath(value string) string {
	if value == "" {
		return value
	}
	value = os.ExpandEnv(value)
	if value == "~" || strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			value = filepath.Join(home, strings.TrimPrefix(value, "~"))
		}
	}
	return value
}
