package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Poller     PollerConfig     `mapstructure:"poller"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	BasePath     string        `mapstructure:"base_path"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// IdempotencyTTL bounds how long POST responses are replayed for a
	// repeated Idempotency-Key. Requires the redis ledger backend.
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// ProviderConfig holds the generation provider (MiniMax) configuration.
type ProviderConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	ImageModel      string        `mapstructure:"image_model"`
	VideoModel      string        `mapstructure:"video_model"`
	PromptOptimizer bool          `mapstructure:"prompt_optimizer"`
	SubmitTimeout   time.Duration `mapstructure:"submit_timeout"`
	PollTimeout     time.Duration `mapstructure:"poll_timeout"`
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`
	KeepAlive           time.Duration `mapstructure:"keep_alive"`
}

// BreakerConfig holds provider circuit breaker configuration.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	SuccessThreshold uint32        `mapstructure:"success_threshold"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// LedgerConfig holds request ledger configuration.
type LedgerConfig struct {
	Backend   string        `mapstructure:"backend"` // memory, redis
	Capacity  int           `mapstructure:"capacity"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// PollerConfig holds video status polling configuration.
type PollerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// CacheConfig holds local cache configuration.
type CacheConfig struct {
	FileURLTTL      time.Duration `mapstructure:"file_url_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowOrigins []string      `mapstructure:"allow_origins"`
	MaxAge       time.Duration `mapstructure:"max_age"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	LedgerBackendMemory = "memory"
	LedgerBackendRedis  = "redis"
)

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	return load("")
}

// LoadFile loads configuration from an explicit file path and environment.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/seedai")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("SEEDAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Secrets: the generic MiniMax variable is honoured for compatibility,
	// the prefixed one wins.
	if key := os.Getenv("MINIMAX_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("SEEDAI_PROVIDER_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if password := os.Getenv("SEEDAI_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case LedgerBackendMemory, LedgerBackendRedis:
	default:
		return fmt.Errorf("invalid ledger.backend %q: must be %q or %q", c.Ledger.Backend, LedgerBackendMemory, LedgerBackendRedis)
	}
	if c.Ledger.Capacity <= 0 {
		return fmt.Errorf("invalid ledger.capacity %d: must be positive", c.Ledger.Capacity)
	}
	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url is required")
	}
	if c.Provider.SubmitTimeout <= 0 || c.Provider.PollTimeout <= 0 {
		return errors.New("provider timeouts must be positive")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("invalid poller.interval %s: must be positive", c.Poller.Interval)
	}
	if c.Poller.MaxAttempts <= 0 {
		return fmt.Errorf("invalid poller.max_attempts %d: must be positive", c.Poller.MaxAttempts)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("invalid server.base_path %q: must start with /", c.Server.BasePath)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	// Long enough for wait=true status requests.
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.idempotency_ttl", 24*time.Hour)

	// Provider defaults
	v.SetDefault("provider.base_url", "https://api.minimax.io")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.image_model", "image-01")
	v.SetDefault("provider.video_model", "MiniMax-Hailuo-2.3")
	v.SetDefault("provider.prompt_optimizer", true)
	v.SetDefault("provider.submit_timeout", 60*time.Second)
	v.SetDefault("provider.poll_timeout", 90*time.Second)

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 10*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 120*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Breaker defaults
	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 2)
	v.SetDefault("breaker.interval", 60*time.Second)
	v.SetDefault("breaker.timeout", 30*time.Second)

	// Ledger defaults
	v.SetDefault("ledger.backend", LedgerBackendMemory)
	v.SetDefault("ledger.capacity", 50)
	v.SetDefault("ledger.key_prefix", "seedai:ledger:")
	v.SetDefault("ledger.ttl", 24*time.Hour)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	// Poller defaults
	v.SetDefault("poller.interval", 5*time.Second)
	v.SetDefault("poller.max_attempts", 60)

	// Cache defaults
	v.SetDefault("cache.file_url_ttl", 30*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "seedai")
	v.SetDefault("metrics.path", "/metrics")

	// CORS defaults
	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("cors.max_age", 12*time.Hour)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
