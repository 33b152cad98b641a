// Package config provides configuration loading and defaults for gqlfetch.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ClientConfig holds connection details for the GraphQL endpoint the fetch
// command talks to.
type ClientConfig struct {
	URL   string `yaml:"url"`
	Query string `yaml:"query"`
	// Timeout is the HTTP request timeout in seconds.
	Timeout     int               `yaml:"timeout"`
	Headers     map[string]string `yaml:"headers"`
	BearerToken string            `yaml:"bearer_token"`
}

// ServerConfig holds listen and authentication settings for the local
// GraphQL server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AuthToken protects the /mcp endpoint. /graphql stays open.
	AuthToken string `yaml:"auth_token"`
}

// FetchFilter holds allowlist and denylist host patterns for the server-side
// request field.
type FetchFilter struct {
	Allowlist []string `yaml:"allowlist"`
	Denylist  []string `yaml:"denylist"`
	// AllowPrivate lets request reach loopback, private and link-local
	// addresses. Off by default.
	AllowPrivate bool `yaml:"allow_private"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuditConfig controls audit logging behaviour.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"log_path"`
}

// Config is the top-level configuration structure.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Server ServerConfig `yaml:"server"`
	Fetch  FetchFilter  `yaml:"fetch"`
	Log    LogConfig    `yaml:"log"`
	Audit  AuditConfig  `yaml:"audit"`
}

// LoadConfig reads and parses a YAML configuration file from the given path.
// Fields absent from the file keep their DefaultConfig values.
// On error, nil is returned for the config pointer.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a new Config populated with default values.
// Each call returns a distinct instance.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			URL:     "http://127.0.0.1:8080/graphql",
			Query:   "{ users{name} }",
			Timeout: 30,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Audit: AuditConfig{
			Enabled: false,
			LogPath: "audit.log",
		},
	}
}

// ApplyEnvOverrides updates cfg in place with values from environment variables.
// Recognized variables:
//   - GQLFETCH_URL overrides cfg.Client.URL
//   - GQLFETCH_QUERY overrides cfg.Client.Query
//   - GQLFETCH_TIMEOUT overrides cfg.Client.Timeout (ignored unless an integer)
//   - GQLFETCH_BEARER_TOKEN overrides cfg.Client.BearerToken
//   - GQLFETCH_SERVER_ADDR overrides cfg.Server.Addr
//   - GQLFETCH_AUTH_TOKEN overrides cfg.Server.AuthToken
//   - GQLFETCH_LOG_LEVEL and GQLFETCH_LOG_FORMAT override cfg.Log
//   - GQLFETCH_AUDIT_LOG enables auditing and sets cfg.Audit.LogPath
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GQLFETCH_URL"); v != "" {
		cfg.Client.URL = v
	}
	if v := os.Getenv("GQLFETCH_QUERY"); v != "" {
		cfg.Client.Query = v
	}
	if v := os.Getenv("GQLFETCH_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Client.Timeout = n
		}
	}
	if v := os.Getenv("GQLFETCH_BEARER_TOKEN"); v != "" {
		cfg.Client.BearerToken = v
	}
	if v := os.Getenv("GQLFETCH_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("GQLFETCH_AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
	}
	if v := os.Getenv("GQLFETCH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GQLFETCH_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("GQLFETCH_AUDIT_LOG"); v != "" {
		cfg.Audit.Enabled = true
		cfg.Audit.LogPath = v
	}
}

// EnsureAuthToken generates a random auth token and sets it on cfg if
// cfg.Server.AuthToken is empty. It returns the token (existing or generated)
// and any error encountered during generation.
func EnsureAuthToken(cfg *Config) (string, error) {
	if cfg.Server.AuthToken != "" {
		return cfg.Server.AuthToken, nil
	}
	token, err := GenerateRandomToken()
	if err != nil {
		return "", fmt.Errorf("generate auth token: %w", err)
	}
	cfg.Server.AuthToken = token
	return token, nil
}

// GenerateRandomToken returns a 32-character hex-encoded cryptographically
// random token string.
func GenerateRandomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand.Read: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Load resolves the config file path from GQLFETCH_CONFIG_PATH and loads it,
// then applies environment overrides. A missing or unreadable file falls
// back to DefaultConfig; the returned error reports why, and is nil when no
// path was configured.
func Load() (*Config, error) {
	path := os.Getenv("GQLFETCH_CONFIG_PATH")
	if path == "" {
		cfg := DefaultConfig()
		ApplyEnvOverrides(cfg)
		return cfg, nil
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		cfg = DefaultConfig()
		ApplyEnvOverrides(cfg)
		return cfg, fmt.Errorf("load %q: %w", path, err)
	}
	ApplyEnvOverrides(cfg)
	return cfg, nil
}
