package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for both the bridge and the gateway
// daemons. Values come from config.yaml overridden by HUB_* env vars.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	Resource    ResourceConfig    `mapstructure:"resource"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Recovery    RecoveryConfig    `mapstructure:"recovery"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Tools       ToolsConfig       `mapstructure:"tools"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggerConfig controls the zap logger.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // true => dev console output
}

// UpstreamConfig describes the inference backend and the resilience
// knobs of the client that talks to it.
type UpstreamConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
	BreakerCoolOff   time.Duration `mapstructure:"breaker_cool_off"`
}

// DiscoveryConfig controls the model discovery poll loop.
type DiscoveryConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
}

// ResourceConfig controls the resource monitor.
type ResourceConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	MaxCPUPercent float64       `mapstructure:"max_cpu_percent"`
	MaxMemPercent float64       `mapstructure:"max_mem_percent"`
}

// MaintenanceConfig controls the predictive maintenance monitor.
type MaintenanceConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	TempDir  string        `mapstructure:"temp_dir"`
}

// RecoveryConfig bounds automatic recovery.
type RecoveryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

// GatewayConfig describes the gateway's view of the bridge.
type GatewayConfig struct {
	BridgeURL      string        `mapstructure:"bridge_url"`
	BridgeName     string        `mapstructure:"bridge_name"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ForwardTimeout time.Duration `mapstructure:"forward_timeout"`
}

// RedisConfig describes the optional completion cache. Empty addr
// disables caching entirely.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ToolsConfig points at the optional tool catalog file.
type ToolsConfig struct {
	CatalogFile string `mapstructure:"catalog_file"`
}

// Load reads configuration from file and environment.
// Env vars override the file: HUB_UPSTREAM_BASE_URL overrides upstream.base_url.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("HUB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No file is fine, env and defaults carry the config.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.pretty", false)

	v.SetDefault("upstream.base_url", "http://localhost:1234")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.max_retries", 3)
	v.SetDefault("upstream.breaker_threshold", 5)
	v.SetDefault("upstream.breaker_cool_off", 60*time.Second)

	v.SetDefault("discovery.interval", 30*time.Second)
	v.SetDefault("discovery.max_interval", 300*time.Second)

	v.SetDefault("resource.interval", 10*time.Second)
	v.SetDefault("resource.max_cpu_percent", 50.0)
	v.SetDefault("resource.max_mem_percent", 50.0)

	v.SetDefault("maintenance.interval", 60*time.Second)
	v.SetDefault("maintenance.temp_dir", "")

	v.SetDefault("recovery.max_attempts", 5)
	v.SetDefault("recovery.cooldown", 60*time.Second)

	v.SetDefault("gateway.bridge_url", "http://localhost:3000")
	v.SetDefault("gateway.bridge_name", "inference-bridge")
	v.SetDefault("gateway.poll_interval", 30*time.Second)
	v.SetDefault("gateway.forward_timeout", 30*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)

	v.SetDefault("tools.catalog_file", "")
}

func (c *Config) validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url must not be empty")
	}
	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("upstream.max_retries must be >= 0, got %d", c.Upstream.MaxRetries)
	}
	if c.Upstream.BreakerThreshold == 0 {
		return fmt.Errorf("upstream.breaker_threshold must be > 0")
	}
	if c.Discovery.Interval <= 0 {
		return fmt.Errorf("discovery.interval must be > 0, got %v", c.Discovery.Interval)
	}
	if c.Discovery.MaxInterval < c.Discovery.Interval {
		return fmt.Errorf("discovery.max_interval must be >= discovery.interval")
	}
	return nil
}
