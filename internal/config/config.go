package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Index   IndexConfig   `mapstructure:"index"`
}

type ServerConfig struct {
	// HTTP/3 Server
	HTTP3Port       int           `mapstructure:"http3_port"`
	TLSCertFile     string        `mapstructure:"tls_cert_file"`
	TLSKeyFile      string        `mapstructure:"tls_key_file"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// QUIC specific
	MaxIncomingStreams    int64         `mapstructure:"max_incoming_streams"`
	MaxIncomingUniStreams int64         `mapstructure:"max_incoming_uni_streams"`
	MaxIdleTimeout        time.Duration `mapstructure:"max_idle_timeout"`

	// HTTP/1.1 and HTTP/2 fallback
	EnableHTTP     bool `mapstructure:"enable_http"`
	EnableHTTP2    bool `mapstructure:"enable_http2"`
	HTTPPort       int  `mapstructure:"http_port"`
	DebugEndpoints bool `mapstructure:"debug_endpoints"`

	// Per-client API rate limiting, 0 disables
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	// Heap size above which /health reports degraded, 0 disables
	HeapLimitMB int `mapstructure:"heap_limit_mb"`
}

type RedisConfig struct {
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`     // json or text
	Output     string `mapstructure:"output"`     // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"`   // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// IndexConfig controls keyframe index construction and session handling.
type IndexConfig struct {
	DefaultStrategy string           `mapstructure:"default_strategy"` // full, sparse, adaptive, hierarchical
	MemoryLimitMB   int              `mapstructure:"memory_limit_mb"`  // picks the strategy when > 0
	FrameRate       float64          `mapstructure:"frame_rate"`       // synthetic clock for scanned indexes
	MaxScanBytes    int64            `mapstructure:"max_scan_bytes"`
	ReadRateBytes   int64            `mapstructure:"read_rate_bytes"` // scan throttle in bytes/s, 0 = unlimited
	MaxSessions     int              `mapstructure:"max_sessions"`
	MediaRoot       string           `mapstructure:"media_root"` // relative paths resolve here; others are refused
	Mmap            bool             `mapstructure:"mmap"`       // serve source reads from a memory mapping
	Cache           IndexCacheConfig `mapstructure:"cache"`
}

// IndexCacheConfig controls the shared index store.
type IndexCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"` // redis or memory
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
}

// Load reads configPath, applies KEYSEEK_* environment overrides such as
// KEYSEEK_INDEX_MEMORY_LIMIT_MB, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath)

	v.SetEnvPrefix("KEYSEEK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http3_port", 443)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_incoming_streams", 5000)
	v.SetDefault("server.max_incoming_uni_streams", 1000)
	v.SetDefault("server.max_idle_timeout", "30s")
	v.SetDefault("server.enable_http", false)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.http_port", 8443)
	v.SetDefault("server.debug_endpoints", false)
	v.SetDefault("server.rate_limit_rps", 50)
	v.SetDefault("server.rate_limit_burst", 100)
	v.SetDefault("server.heap_limit_mb", 1024)

	// Redis defaults
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.min_idle_conns", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Index defaults
	v.SetDefault("index.default_strategy", "full")
	v.SetDefault("index.memory_limit_mb", 0)
	v.SetDefault("index.frame_rate", 30.0)
	v.SetDefault("index.max_scan_bytes", 104857600) // 100MB
	v.SetDefault("index.read_rate_bytes", 0)
	v.SetDefault("index.max_sessions", 64)
	v.SetDefault("index.media_root", "")
	v.SetDefault("index.mmap", false)
	v.SetDefault("index.cache.enabled", true)
	v.SetDefault("index.cache.backend", "redis")
	v.SetDefault("index.cache.ttl", "1h")
	v.SetDefault("index.cache.prefix", "keyseek:index:")
}
