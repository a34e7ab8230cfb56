package config_test

import (
	"testing"
	"time"

	testify "github.com/stretchr/testify/assert"

	"github.com/kode4food/sequin/internal/assert"
	"github.com/kode4food/sequin/internal/assert/helpers"
	"github.com/kode4food/sequin/internal/config"
	"github.com/kode4food/sequin/pkg/api"
)

func TestConfigValidation(t *testing.T) {
	as := assert.New(t)

	t.Run("valid_default_config", func(t *testing.T) {
		cfg := config.NewDefaultConfig()
		as.ConfigValid(cfg)
	})

	t.Run("valid_test_config", func(t *testing.T) {
		cfg := helpers.NewTestConfig()
		as.ConfigValid(cfg)
	})

	tests := []struct {
		name          string
		configMod     func(*config.Config)
		errorContains string
	}{
		{
			name: "invalid_api_port_zero",
			configMod: func(c *config.Config) {
				c.APIPort = 0
			},
			errorContains: "invalid API port",
		},
		{
			name: "invalid_api_port_too_high",
			configMod: func(c *config.Config) {
				c.APIPort = 70000
			},
			errorContains: "invalid API port",
		},
		{
			name: "negative_step_timeout",
			configMod: func(c *config.Config) {
				c.StepTimeout = -1
			},
			errorContains: "step timeout cannot be negative",
		},
		{
			name: "negative_flow_timeout",
			configMod: func(c *config.Config) {
				c.FlowTimeout = -1
			},
			errorContains: "flow timeout cannot be negative",
		},
		{
			name: "zero_batch_size",
			configMod: func(c *config.Config) {
				c.EventBatchSize = 0
			},
			errorContains: "event batch size",
		},
		{
			name: "zero_script_cache",
			configMod: func(c *config.Config) {
				c.ScriptCacheSize = 0
			},
			errorContains: "script cache size",
		},
		{
			name: "zero_instance_cache",
			configMod: func(c *config.Config) {
				c.InstanceCacheSize = 0
			},
			errorContains: "instance cache size",
		},
		{
			name: "bad_error_handling",
			configMod: func(c *config.Config) {
				c.ErrorHandling = "Explode"
			},
			errorContains: "invalid error handling",
		},
		{
			name: "missing_provider",
			configMod: func(c *config.Config) {
				c.Provider.URL = ""
			},
			errorContains: "provider URL required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := helpers.NewTestConfig()
			tt.configMod(cfg)
			as.ConfigInvalid(cfg, tt.errorContains)
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	as := assert.New(t)

	cfg := config.NewDefaultConfig()

	as.Equal(config.DefaultAPIPort, cfg.APIPort)
	as.Equal("0.0.0.0", cfg.APIHost)
	as.Equal(int64(0), cfg.StepTimeout)
	as.Equal(config.DefaultShutdownTimeout, cfg.ShutdownTimeout)
	as.Equal(config.DefaultProviderURL, cfg.Provider.URL)
	as.Equal(api.ErrorHandlingTerminate, cfg.ErrorHandling)
	as.Equal("info", cfg.LogLevel)
	as.True(cfg.Middleware.IsEmpty())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_HOST", "127.0.0.1")
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PROVIDER_URL", "file:///tmp/flows")
	t.Setenv("ARCHIVE_URL", "mem://")
	t.Setenv("STEP_TIMEOUT", "2500")
	t.Setenv("FLOW_TIMEOUT", "0")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("EVENT_BATCH_SIZE", "8")
	t.Setenv("SCRIPT_CACHE_SIZE", "32")
	t.Setenv("ERROR_HANDLING", "skip")
	t.Setenv("FLOW_MIDDLEWARE", "log, archive")
	t.Setenv("ATTEMPT_MIDDLEWARE", "breakpoint")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "5")
	t.Setenv("REDIS_PREFIX", "custom")

	cfg := config.NewDefaultConfig()
	as := testify.New(t)
	as.NoError(cfg.LoadFromEnv())

	as.Equal("127.0.0.1", cfg.APIHost)
	as.Equal(9090, cfg.APIPort)
	as.Equal("debug", cfg.LogLevel)
	as.Equal("file:///tmp/flows", cfg.Provider.URL)
	as.Equal("mem://", cfg.ArchiveURL)
	as.Equal(int64(2500), cfg.StepTimeout)
	as.Equal(int64(0), cfg.FlowTimeout)
	as.Equal(3*time.Second, cfg.ShutdownTimeout)
	as.Equal(8, cfg.EventBatchSize)
	as.Equal(32, cfg.ScriptCacheSize)
	as.Equal(api.ErrorHandlingSkip, cfg.ErrorHandling)
	as.Equal([]string{"log", "archive"}, cfg.Middleware.Flow)
	as.Empty(cfg.Middleware.Group)
	as.Equal([]string{"breakpoint"}, cfg.Middleware.Attempt)
	as.Equal("redis.example.com:6379", cfg.Provider.Redis.Addr)
	as.Equal(5, cfg.Provider.Redis.DB)
	as.Equal("custom", cfg.Provider.Redis.Prefix)
	as.NoError(cfg.Validate())
}

func TestLoadFromEnvErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad_port", "API_PORT", "not_a_number"},
		{"port_out_of_range", "API_PORT", "70000"},
		{"negative_step_timeout", "STEP_TIMEOUT", "-5"},
		{"zero_batch", "EVENT_BATCH_SIZE", "0"},
		{"bad_shutdown", "SHUTDOWN_TIMEOUT", "soon"},
		{"bad_error_handling", "ERROR_HANDLING", "explode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := config.NewDefaultConfig()
			testify.Error(t, cfg.LoadFromEnv())
		})
	}
}

func TestLoadRedisConfigIgnoresBadDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not_a_number")
	r := &config.RedisConfig{DB: 2}
	config.LoadRedisConfigFromEnv(r)
	testify.Equal(t, 2, r.DB)
}
