package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoader_Load_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	certPath := filepath.Join(tmpDir, "client_cert.pem")
	keyPath := filepath.Join(tmpDir, "client_key.pem")
	os.WriteFile(certPath, []byte("cert"), 0644)
	os.WriteFile(keyPath, []byte("key"), 0644)

	yamlContent := `server:
  addr: ":9090"
  read_timeout: 20s

upstream:
  url: https://authority.example/crtinfo/certindex.json
  cert_file: ` + certPath + `
  key_file: ` + keyPath + `
  refresh_interval: 10m
  expiry_threshold_days: 45

auth:
  token: sekrit

storage:
  path: /tmp/markers.db

logging:
  level: debug
  format: text
`
	configPath := writeConfig(t, "test.yaml", yamlContent)

	config, err := NewLoader().Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q", config.Server.Addr)
	}
	if config.Server.ReadTimeout != 20*time.Second {
		t.Errorf("Server.ReadTimeout = %v", config.Server.ReadTimeout)
	}
	if config.Upstream.URL != "https://authority.example/crtinfo/certindex.json" {
		t.Errorf("Upstream.URL = %q", config.Upstream.URL)
	}
	if config.Upstream.RefreshInterval != 10*time.Minute {
		t.Errorf("Upstream.RefreshInterval = %v", config.Upstream.RefreshInterval)
	}
	if config.Upstream.ExpiryThreshold != 45 {
		t.Errorf("Upstream.ExpiryThreshold = %d", config.Upstream.ExpiryThreshold)
	}
	if config.Auth.Token != "sekrit" {
		t.Errorf("Auth.Token = %q", config.Auth.Token)
	}
	if config.Logging.Level != "debug" || config.Logging.Format != "text" {
		t.Errorf("Logging = %+v", config.Logging)
	}
}

func TestLoader_Load_JSON(t *testing.T) {
	configPath := writeConfig(t, "test.json", `{
  "upstream": {"url": "https://authority.example/index.json"},
  "auth": {"basic_user": "admin", "basic_pass": "hunter2"}
}`)

	config, err := NewLoader().Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Auth.BasicUser != "admin" {
		t.Errorf("Auth.BasicUser = %q", config.Auth.BasicUser)
	}
}

func TestLoader_Load_Defaults(t *testing.T) {
	configPath := writeConfig(t, "minimal.yaml", `upstream:
  url: https://authority.example/index.json
`)

	config, err := NewLoader().Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Server.Addr != ":8080" {
		t.Errorf("default Server.Addr = %q", config.Server.Addr)
	}
	if config.Upstream.Timeout != 30*time.Second {
		t.Errorf("default Upstream.Timeout = %v", config.Upstream.Timeout)
	}
	if config.Upstream.RetryAttempts != 3 {
		t.Errorf("default Upstream.RetryAttempts = %d", config.Upstream.RetryAttempts)
	}
	if config.Upstream.RefreshInterval != 5*time.Minute {
		t.Errorf("default Upstream.RefreshInterval = %v", config.Upstream.RefreshInterval)
	}
	if config.Upstream.ExpiryThreshold != 30 {
		t.Errorf("default Upstream.ExpiryThreshold = %d", config.Upstream.ExpiryThreshold)
	}
	if config.Storage.Path != "certindex.db" {
		t.Errorf("default Storage.Path = %q", config.Storage.Path)
	}
	if config.Logging.Level != "info" || config.Logging.Format != "json" {
		t.Errorf("default Logging = %+v", config.Logging)
	}
}

func TestLoader_Load_UnsupportedFormat(t *testing.T) {
	configPath := writeConfig(t, "test.toml", `upstream = "nope"`)

	if _, err := NewLoader().Load(configPath); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	if _, err := NewLoader().Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoader_Validate(t *testing.T) {
	tmpDir := t.TempDir()
	certPath := filepath.Join(tmpDir, "cert.pem")
	keyPath := filepath.Join(tmpDir, "key.pem")
	os.WriteFile(certPath, []byte("cert"), 0644)
	os.WriteFile(keyPath, []byte("key"), 0644)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "minimal valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing upstream url",
			mutate:  func(c *Config) { c.Upstream.URL = "" },
			wantErr: true,
		},
		{
			name: "cert without key",
			mutate: func(c *Config) {
				c.Upstream.CertFile = certPath
			},
			wantErr: true,
		},
		{
			name: "cert and key pair",
			mutate: func(c *Config) {
				c.Upstream.CertFile = certPath
				c.Upstream.KeyFile = keyPath
			},
		},
		{
			name: "cert file does not exist",
			mutate: func(c *Config) {
				c.Upstream.CertFile = filepath.Join(tmpDir, "missing.pem")
				c.Upstream.KeyFile = keyPath
			},
			wantErr: true,
		},
		{
			name: "basic user without password",
			mutate: func(c *Config) {
				c.Auth.BasicUser = "admin"
			},
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
		{
			name:    "negative expiry threshold",
			mutate:  func(c *Config) { c.Upstream.ExpiryThreshold = -1 },
			wantErr: true,
		},
	}

	loader := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			config.Upstream.URL = "https://authority.example/index.json"
			tt.mutate(config)

			err := loader.Validate(config)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
