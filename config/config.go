package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete dashboard service configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`
	Auth     AuthConfig     `yaml:"auth" json:"auth"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// ServerConfig defines the HTTP API server
type ServerConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// UpstreamConfig defines the upstream certificate authority endpoint
// and the client-certificate material used to reach it
type UpstreamConfig struct {
	URL                string        `yaml:"url" json:"url"`
	CertFile           string        `yaml:"cert_file" json:"cert_file"`
	KeyFile            string        `yaml:"key_file" json:"key_file"`
	CAFile             string        `yaml:"ca_file" json:"ca_file"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	CheckOCSP          bool          `yaml:"check_ocsp" json:"check_ocsp"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
	RetryAttempts      int           `yaml:"retry_attempts" json:"retry_attempts"`
	RetryInterval      time.Duration `yaml:"retry_interval" json:"retry_interval"`
	RefreshInterval    time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
	ExpiryThreshold    int           `yaml:"expiry_threshold_days" json:"expiry_threshold_days"`
}

// AuthConfig defines API authentication. Token wins over basic
// credentials when both are set; with neither the API is open.
type AuthConfig struct {
	Token     string `yaml:"token" json:"token"`
	BasicUser string `yaml:"basic_user" json:"basic_user"`
	BasicPass string `yaml:"basic_pass" json:"basic_pass"`
}

// StorageConfig defines local persistence (treated markers)
type StorageConfig struct {
	Path string `yaml:"path" json:"path"` // sqlite file path, ":memory:" for ephemeral
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`           // debug, info, warn, error
	Format    string `yaml:"format" json:"format"`         // json, text
	Output    string `yaml:"output" json:"output"`         // stdout, stderr, file path
	AuditFile string `yaml:"audit_file" json:"audit_file"` // audit log file path, empty disables
}

// Loader provides configuration loading functionality
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses configuration from file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Determine format by extension
	ext := filepath.Ext(path)

	var config Config
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	l.setDefaults(&config)

	return &config, nil
}

// Validate checks configuration validity
func (l *Loader) Validate(config *Config) error {
	if config.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}

	// Client certificate material must exist when configured
	if config.Upstream.CertFile != "" {
		if _, err := os.Stat(config.Upstream.CertFile); err != nil {
			return fmt.Errorf("cert_file not found: %s", config.Upstream.CertFile)
		}
	}
	if config.Upstream.KeyFile != "" {
		if _, err := os.Stat(config.Upstream.KeyFile); err != nil {
			return fmt.Errorf("key_file not found: %s", config.Upstream.KeyFile)
		}
	}
	if config.Upstream.CAFile != "" {
		if _, err := os.Stat(config.Upstream.CAFile); err != nil {
			return fmt.Errorf("ca_file not found: %s", config.Upstream.CAFile)
		}
	}

	// Cert and key come as a pair
	if (config.Upstream.CertFile == "") != (config.Upstream.KeyFile == "") {
		return fmt.Errorf("upstream cert_file and key_file must both be set or both be empty")
	}

	// Basic credentials come as a pair
	if (config.Auth.BasicUser == "") != (config.Auth.BasicPass == "") {
		return fmt.Errorf("auth basic_user and basic_pass must both be set or both be empty")
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("invalid logging level: %s", config.Logging.Level)
	}

	switch config.Logging.Format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("invalid logging format: %s", config.Logging.Format)
	}

	if config.Upstream.ExpiryThreshold < 0 {
		return fmt.Errorf("expiry_threshold_days must not be negative")
	}

	return nil
}

// setDefaults sets default values for optional fields
func (l *Loader) setDefaults(config *Config) {
	// Server defaults
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 15 * time.Second
	}
	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 60 * time.Second
	}

	// Upstream defaults
	if config.Upstream.Timeout == 0 {
		config.Upstream.Timeout = 30 * time.Second
	}
	if config.Upstream.RetryAttempts == 0 {
		config.Upstream.RetryAttempts = 3
	}
	if config.Upstream.RetryInterval == 0 {
		config.Upstream.RetryInterval = 5 * time.Second
	}
	if config.Upstream.RefreshInterval == 0 {
		config.Upstream.RefreshInterval = 5 * time.Minute
	}
	if config.Upstream.ExpiryThreshold == 0 {
		config.Upstream.ExpiryThreshold = 30
	}

	// Storage defaults
	if config.Storage.Path == "" {
		config.Storage.Path = "certindex.db"
	}

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}
}
