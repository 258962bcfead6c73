package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  RedisConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: RedisConfig{
				Addresses:    []string{"localhost:6379"},
				DB:           0,
				MaxRetries:   3,
				PoolSize:     100,
				MinIdleConns: 10,
			},
			wantErr: false,
		},
		{
			name: "missing addresses",
			config: RedisConfig{
				Addresses: []string{},
				DB:        0,
				PoolSize:  100,
			},
			wantErr: true,
			errMsg:  "at least one Redis address is required",
		},
		{
			name: "negative DB",
			config: RedisConfig{
				Addresses: []string{"localhost:6379"},
				DB:        -1,
				PoolSize:  100,
			},
			wantErr: true,
			errMsg:  "invalid Redis database number",
		},
		{
			name: "zero pool size",
			config: RedisConfig{
				Addresses: []string{"localhost:6379"},
				DB:        0,
				PoolSize:  0,
			},
			wantErr: true,
			errMsg:  "pool_size must be positive",
		},
		{
			name: "min idle conns greater than pool size",
			config: RedisConfig{
				Addresses:    []string{"localhost:6379"},
				DB:           0,
				PoolSize:     10,
				MinIdleConns: 20,
			},
			wantErr: true,
			errMsg:  "min_idle_conns cannot be greater than pool_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoggingConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  LoggingConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			config: LoggingConfig{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
			wantErr: true,
			errMsg:  "invalid log level",
		},
		{
			name: "invalid format",
			config: LoggingConfig{
				Level:  "info",
				Format: "xml",
				Output: "stdout",
			},
			wantErr: true,
			errMsg:  "log format must be 'json' or 'text'",
		},
		{
			name: "file output with zero max size",
			config: LoggingConfig{
				Level:   "info",
				Format:  "json",
				Output:  "/var/log/keyseek.log",
				MaxSize: 0,
			},
			wantErr: true,
			errMsg:  "max_size must be positive for file output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMetricsConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  MetricsConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config enabled",
			config: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
				Port:    9090,
			},
			wantErr: false,
		},
		{
			name: "valid config disabled",
			config: MetricsConfig{
				Enabled: false,
			},
			wantErr: false,
		},
		{
			name: "enabled with invalid port",
			config: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
				Port:    0,
			},
			wantErr: true,
			errMsg:  "invalid metrics port",
		},
		{
			name: "enabled with empty path",
			config: MetricsConfig{
				Enabled: true,
				Path:    "",
				Port:    9090,
			},
			wantErr: true,
			errMsg:  "metrics path cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func validIndexConfig() IndexConfig {
	return IndexConfig{
		DefaultStrategy: "full",
		FrameRate:       30,
		MaxScanBytes:    100 * 1024 * 1024,
		MaxSessions:     16,
		Cache: IndexCacheConfig{
			Enabled: true,
			Backend: "redis",
			TTL:     time.Hour,
			Prefix:  "keyseek:index:",
		},
	}
}

func TestIndexConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *IndexConfig)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(c *IndexConfig) {},
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *IndexConfig) { c.DefaultStrategy = "dense" },
			wantErr: true,
			errMsg:  "invalid default_strategy",
		},
		{
			name:    "negative memory limit",
			mutate:  func(c *IndexConfig) { c.MemoryLimitMB = -1 },
			wantErr: true,
			errMsg:  "memory_limit_mb cannot be negative",
		},
		{
			name:    "zero frame rate",
			mutate:  func(c *IndexConfig) { c.FrameRate = 0 },
			wantErr: true,
			errMsg:  "frame_rate must be positive",
		},
		{
			name:    "zero scan cap",
			mutate:  func(c *IndexConfig) { c.MaxScanBytes = 0 },
			wantErr: true,
			errMsg:  "max_scan_bytes must be positive",
		},
		{
			name:    "read rate below window size",
			mutate:  func(c *IndexConfig) { c.ReadRateBytes = 1024 },
			wantErr: true,
			errMsg:  "must be at least the largest scan window",
		},
		{
			name:   "read rate at window size",
			mutate: func(c *IndexConfig) { c.ReadRateBytes = 128 * 1024 },
		},
		{
			name:    "zero sessions",
			mutate:  func(c *IndexConfig) { c.MaxSessions = 0 },
			wantErr: true,
			errMsg:  "max_sessions must be positive",
		},
		{
			name:   "existing media root",
			mutate: func(c *IndexConfig) { c.MediaRoot = os.TempDir() },
		},
		{
			name:    "missing media root",
			mutate:  func(c *IndexConfig) { c.MediaRoot = "/nonexistent/media/root" },
			wantErr: true,
			errMsg:  "media_root not accessible",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *IndexConfig) { c.Cache.Backend = "memcached" },
			wantErr: true,
			errMsg:  "cache backend must be",
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *IndexConfig) { c.Cache.TTL = 0 },
			wantErr: true,
			errMsg:  "cache ttl must be positive",
		},
		{
			name: "disabled cache skips checks",
			mutate: func(c *IndexConfig) {
				c.Cache = IndexCacheConfig{Enabled: false}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validIndexConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerConfigValidate_RateLimit(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0o600))
	require.NoError(t, os.WriteFile(key, []byte("key"), 0o600))

	cfg := ServerConfig{
		HTTP3Port:             443,
		TLSCertFile:           cert,
		TLSKeyFile:            key,
		MaxIncomingStreams:    100,
		MaxIncomingUniStreams: 10,
		RateLimitRPS:          10,
		RateLimitBurst:        0,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit_burst must be positive")

	cfg.RateLimitBurst = 20
	assert.NoError(t, cfg.Validate())

	cfg.HeapLimitMB = -1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heap_limit_mb cannot be negative")
}
