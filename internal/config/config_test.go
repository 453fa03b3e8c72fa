package config

import (
	"os"
	"testing"
	"time"
)

func loadInDir(t *testing.T, dir string) (*Config, error) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return Load()
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadInDir(t, t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Addr != ":3000" {
		t.Errorf("server.addr = %q, want :3000", cfg.Server.Addr)
	}
	if cfg.Upstream.BaseURL != "http://localhost:1234" {
		t.Errorf("upstream.base_url = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.MaxRetries != 3 {
		t.Errorf("upstream.max_retries = %d, want 3", cfg.Upstream.MaxRetries)
	}
	if cfg.Upstream.BreakerThreshold != 5 {
		t.Errorf("upstream.breaker_threshold = %d, want 5", cfg.Upstream.BreakerThreshold)
	}
	if cfg.Upstream.BreakerCoolOff != 60*time.Second {
		t.Errorf("upstream.breaker_cool_off = %v, want 60s", cfg.Upstream.BreakerCoolOff)
	}
	if cfg.Discovery.Interval != 30*time.Second {
		t.Errorf("discovery.interval = %v, want 30s", cfg.Discovery.Interval)
	}
	if cfg.Resource.Interval != 10*time.Second {
		t.Errorf("resource.interval = %v, want 10s", cfg.Resource.Interval)
	}
	if cfg.Resource.MaxCPUPercent != 50 {
		t.Errorf("resource.max_cpu_percent = %v, want 50", cfg.Resource.MaxCPUPercent)
	}
	if cfg.Maintenance.Interval != 60*time.Second {
		t.Errorf("maintenance.interval = %v, want 60s", cfg.Maintenance.Interval)
	}
	if cfg.Recovery.MaxAttempts != 5 {
		t.Errorf("recovery.max_attempts = %d, want 5", cfg.Recovery.MaxAttempts)
	}
	if cfg.Gateway.PollInterval != 30*time.Second {
		t.Errorf("gateway.poll_interval = %v, want 30s", cfg.Gateway.PollInterval)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("redis.addr = %q, want disabled by default", cfg.Redis.Addr)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HUB_UPSTREAM_BASE_URL", "http://inference:9999")
	t.Setenv("HUB_LOGGER_LEVEL", "debug")

	cfg, err := loadInDir(t, t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://inference:9999" {
		t.Errorf("upstream.base_url = %q, want env override", cfg.Upstream.BaseURL)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("logger.level = %q, want debug", cfg.Logger.Level)
	}
}

func TestConfigFileOverride(t *testing.T) {
	dir := t.TempDir()
	content := `upstream:
  base_url: http://lmstudio:1234
  max_retries: 1
discovery:
  interval: 10s
  max_interval: 60s
`
	if err := os.WriteFile(dir+"/config.yaml", []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadInDir(t, dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://lmstudio:1234" {
		t.Errorf("upstream.base_url = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.MaxRetries != 1 {
		t.Errorf("upstream.max_retries = %d, want 1", cfg.Upstream.MaxRetries)
	}
	if cfg.Discovery.Interval != 10*time.Second {
		t.Errorf("discovery.interval = %v, want 10s", cfg.Discovery.Interval)
	}
	// Untouched keys keep their defaults.
	if cfg.Upstream.BreakerThreshold != 5 {
		t.Errorf("upstream.breaker_threshold = %d, want default 5", cfg.Upstream.BreakerThreshold)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "empty base url", mutate: func(c *Config) { c.Upstream.BaseURL = "" }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.Upstream.MaxRetries = -1 }, wantErr: true},
		{name: "zero breaker threshold", mutate: func(c *Config) { c.Upstream.BreakerThreshold = 0 }, wantErr: true},
		{name: "zero discovery interval", mutate: func(c *Config) { c.Discovery.Interval = 0 }, wantErr: true},
		{name: "max interval below interval", mutate: func(c *Config) { c.Discovery.MaxInterval = c.Discovery.Interval / 2 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadInDir(t, t.TempDir())
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
