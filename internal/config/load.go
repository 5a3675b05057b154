package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// envBindings maps config keys to their SF_* environment variables.
var envBindings = map[string]string{
	"host":          "SF_HOST",
	"auth_host":     "SF_API_HOST",
	"client_id":     "SF_API_CLIENT_ID",
	"client_secret": "SF_API_SECRET",
	"default_firm":  "SF_FIRM_ID",
}

// Load reads configuration from path. If path is empty the default path is
// used and a missing file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("host", cfg.Host)
	v.SetDefault("auth_host", cfg.AuthHost)
	v.SetDefault("client_id", cfg.ClientID)
	v.SetDefault("client_secret", cfg.ClientSecret)
	v.SetDefault("redirect_uri", cfg.RedirectURI)
	v.SetDefault("default_firm", cfg.DefaultFirm)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("transport_retries", cfg.TransportRetries)
	v.SetDefault("templates_dir", cfg.TemplatesDir)
	v.SetDefault("credentials.backend", cfg.Credentials.Backend)
	v.SetDefault("credentials.path", cfg.Credentials.Path)
	v.SetDefault("state.db_path", cfg.State.DBPath)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetEnvPrefix("TPLSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "TPLSYNC_"+strings.ToUpper(key), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		if !missing || explicit {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.TemplatesDir = expandPath(cfg.TemplatesDir)
	cfg.Credentials.Path = expandPath(cfg.Credentials.Path)
	cfg.State.DBPath = expandPath(cfg.State.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Render returns the config as YAML with the client secret redacted.
func Render(cfg *Config) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(cfg.Redacted()); err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "request_timeout" {
			node.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cfg.RequestTimeout.String()}
		}
	}
	return yaml.Marshal(&node)
}

const configTemplate = `# tplsync configuration.
# Every key can also be set through TPLSYNC_<KEY> (dots become underscores).

# Web host of the remote service (SF_HOST).
host: %q

# OAuth2 host (SF_API_HOST).
auth_host: %q

# OAuth2 client credentials (SF_API_CLIENT_ID, SF_API_SECRET).
client_id: ""
client_secret: ""
redirect_uri: %q

# Firm used when --firm is not given (SF_FIRM_ID).
default_firm: ""

# Timeout of every network call.
request_timeout: %s

# Retries on connection errors. HTTP statuses are never retried.
transport_retries: %d

# Directory holding account_templates/.
templates_dir: %q

credentials:
  # file or sqlite
  backend: %s
  path: %q

state:
  db_path: %q

logging:
  # trace, debug, info, warn, error
  level: %s
  # console or json
  format: %s
`

// WriteDefault writes a commented default config to path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg := DefaultConfig()
	data := fmt.Sprintf(configTemplate,
		cfg.Host,
		cfg.AuthHost,
		cfg.RedirectURI,
		cfg.RequestTimeout.Round(time.Second),
		cfg.TransportRetries,
		cfg.TemplatesDir,
		cfg.Credentials.Backend,
		cfg.Credentials.Path,
		cfg.State.DBPath,
		cfg.Logging.Level,
		cfg.Logging.Format,
	)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		return "", err
	}
	return path, nil
}
