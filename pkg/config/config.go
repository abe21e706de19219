package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Store backend names accepted by store.backend.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Live struct {
		PingInterval      time.Duration `yaml:"ping_interval"`
		SweepInterval     time.Duration `yaml:"sweep_interval"`
		HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`
		ReadTimeout       time.Duration `yaml:"read_timeout"`
		WriteTimeout      time.Duration `yaml:"write_timeout"`
		SendQueueSize     int           `yaml:"send_queue_size"`
		MessagesPerSecond float64       `yaml:"messages_per_second"`
		MessageBurst      int           `yaml:"message_burst"`
	} `yaml:"live"`

	Store struct {
		Backend string `yaml:"backend"`
	} `yaml:"store"`

	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`

	Tracing struct {
		Enabled   bool   `yaml:"enabled"`
		JaegerURL string `yaml:"jaeger_url"`
	} `yaml:"tracing"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Live.PingInterval <= 0 {
		return fmt.Errorf("live.ping_interval must be > 0")
	}
	if c.Live.SweepInterval <= 0 {
		return fmt.Errorf("live.sweep_interval must be > 0")
	}
	if c.Live.HeartbeatTimeout <= c.Live.SweepInterval {
		return fmt.Errorf("live.heartbeat_timeout must be > live.sweep_interval")
	}
	if c.Live.SendQueueSize <= 0 {
		return fmt.Errorf("live.send_queue_size must be > 0")
	}
	if c.Live.MessagesPerSecond <= 0 {
		return fmt.Errorf("live.messages_per_second must be > 0")
	}
	if c.Live.MessageBurst <= 0 {
		return fmt.Errorf("live.message_burst must be > 0")
	}

	switch c.Store.Backend {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("store.backend must be one of memory, sqlite, redis")
	}
	if c.Store.Backend == StoreSQLite && c.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path must not be empty when store.backend=sqlite")
	}
	if c.Store.Backend == StoreRedis {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when store.backend=redis")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when store.backend=redis")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
	}

	if c.Tracing.Enabled && c.Tracing.JaegerURL == "" {
		return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Live.PingInterval = 30 * time.Second
	cfg.Live.SweepInterval = 15 * time.Second
	cfg.Live.HeartbeatTimeout = 45 * time.Second
	cfg.Live.ReadTimeout = 60 * time.Second
	cfg.Live.WriteTimeout = 10 * time.Second
	cfg.Live.SendQueueSize = 64
	cfg.Live.MessagesPerSecond = 50
	cfg.Live.MessageBurst = 100

	cfg.Store.Backend = StoreMemory
	cfg.SQLite.Path = "classhub.db"

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("CLASSHUB_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if backend := os.Getenv("CLASSHUB_STORE_BACKEND"); backend != "" {
		c.Store.Backend = backend
	}
	if path := os.Getenv("CLASSHUB_SQLITE_PATH"); path != "" {
		c.SQLite.Path = path
	}
	if addr := os.Getenv("CLASSHUB_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if level := os.Getenv("CLASSHUB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("CLASSHUB_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
}
