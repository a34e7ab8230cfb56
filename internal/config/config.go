package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kode4food/sequin/pkg/api"
)

type (
	// Config holds configuration settings for the engine and its server
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Definitions & Archiving
		Provider   ProviderConfig
		ArchiveURL string

		// Engine
		StepTimeout       int64
		FlowTimeout       int64
		ShutdownTimeout   time.Duration
		EventBatchSize    int
		ScriptCacheSize   int
		InstanceCacheSize int
		ErrorHandling     api.ErrorHandling
		Middleware        api.MiddlewareNames
	}

	// ProviderConfig selects and configures the flow definition provider
	ProviderConfig struct {
		URL   string
		Redis RedisConfig
	}

	// RedisConfig holds the connection settings of the Redis provider
	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}
)

const (
	DefaultShutdownTimeout = 10 * time.Second

	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535
	DefaultRedisDB = 0

	DefaultProviderURL       = "memory"
	DefaultRedisEndpoint     = "localhost:6379"
	DefaultRedisPrefix       = "sequin"
	DefaultEventBatchSize    = 64
	DefaultScriptCacheSize   = 4096
	DefaultInstanceCacheSize = 1024
	DefaultErrorHandling     = api.ErrorHandlingTerminate

	// RedisProviderURL selects the Redis provider configured by the
	// REDIS_* variables
	RedisProviderURL = "redis"

	MaxEventBatchSize    = 10_000
	MaxScriptCacheSize   = 1_000_000
	MaxInstanceCacheSize = 1_000_000
	MaxTimeout           = 365 * 24 * 60 * 60 * 1000 // 1 year in ms
)

var (
	ErrInvalidAPIPort         = errors.New("invalid API port")
	ErrInvalidStepTimeout     = errors.New("step timeout cannot be negative")
	ErrInvalidFlowTimeout     = errors.New("flow timeout cannot be negative")
	ErrInvalidEventBatchSize  = errors.New("event batch size must be positive")
	ErrInvalidScriptCacheSize = errors.New(
		"script cache size must be positive",
	)
	ErrInvalidInstanceCacheSize = errors.New(
		"instance cache size must be positive",
	)
	ErrInvalidErrorHandling = errors.New("invalid error handling")
	ErrProviderURLRequired  = errors.New("provider URL required")
)

// NewDefaultConfig creates a configuration with sensible defaults for all
// engine settings and the in-memory definition provider
func NewDefaultConfig() *Config {
	return &Config{
		APIPort: DefaultAPIPort,
		APIHost: DefaultAPIHost,
		Provider: ProviderConfig{
			URL: DefaultProviderURL,
			Redis: RedisConfig{
				Addr:   DefaultRedisEndpoint,
				DB:     DefaultRedisDB,
				Prefix: DefaultRedisPrefix,
			},
		},
		ShutdownTimeout:   DefaultShutdownTimeout,
		EventBatchSize:    DefaultEventBatchSize,
		ScriptCacheSize:   DefaultScriptCacheSize,
		InstanceCacheSize: DefaultInstanceCacheSize,
		ErrorHandling:     DefaultErrorHandling,
		LogLevel:          "info",
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	LoadRedisConfigFromEnv(&c.Provider.Redis)

	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if providerURL := os.Getenv("PROVIDER_URL"); providerURL != "" {
		c.Provider.URL = providerURL
	}
	if archiveURL := os.Getenv("ARCHIVE_URL"); archiveURL != "" {
		c.ArchiveURL = archiveURL
	}
	if eh := os.Getenv("ERROR_HANDLING"); eh != "" {
		parsed, ok := api.ParseErrorHandling(eh)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidErrorHandling, eh)
		}
		c.ErrorHandling = parsed
	}

	loadEnvList("FLOW_MIDDLEWARE", &c.Middleware.Flow)
	loadEnvList("GROUP_MIDDLEWARE", &c.Middleware.Group)
	loadEnvList("ATTEMPT_MIDDLEWARE", &c.Middleware.Attempt)

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"STEP_TIMEOUT", &c.StepTimeout, -1, MaxTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"FLOW_TIMEOUT", &c.FlowTimeout, -1, MaxTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"EVENT_BATCH_SIZE", &c.EventBatchSize, 0, MaxEventBatchSize,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"SCRIPT_CACHE_SIZE", &c.ScriptCacheSize, 0, MaxScriptCacheSize,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"INSTANCE_CACHE_SIZE", &c.InstanceCacheSize, 0, MaxInstanceCacheSize,
	); err != nil {
		return err
	}

	if s := os.Getenv("SHUTDOWN_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %q", s)
		}
		c.ShutdownTimeout = d
	}

	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if c.StepTimeout < 0 {
		return ErrInvalidStepTimeout
	}

	if c.FlowTimeout < 0 {
		return ErrInvalidFlowTimeout
	}

	if c.EventBatchSize <= 0 {
		return ErrInvalidEventBatchSize
	}

	if c.ScriptCacheSize <= 0 {
		return ErrInvalidScriptCacheSize
	}

	if c.InstanceCacheSize <= 0 {
		return ErrInvalidInstanceCacheSize
	}

	if _, ok := api.ParseErrorHandling(string(c.ErrorHandling)); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidErrorHandling, c.ErrorHandling)
	}

	if c.Provider.URL == "" {
		return ErrProviderURLRequired
	}

	return nil
}

// LoadRedisConfigFromEnv loads Redis provider configuration from the
// REDIS_* environment variables
func LoadRedisConfigFromEnv(r *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		r.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		r.Password = password
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err == nil {
			r.DB = db
		}
	}
	if envPrefix := os.Getenv("REDIS_PREFIX"); envPrefix != "" {
		r.Prefix = envPrefix
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

func loadEnvList(key string, dst *[]string) {
	s := os.Getenv(key)
	if s == "" {
		return
	}
	var res []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			res = append(res, name)
		}
	}
	*dst = res
}
