package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"omicpath/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Analysis  AnalysisConfig
	Cache     CacheConfig
	Profiling ProfilingConfig
	LogLevel  string
}

// DatabaseConfig holds database connection settings. The CLI runs without one.
type DatabaseConfig struct {
	URL     string
	Reset   bool
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// AnalysisConfig holds batch and resampling defaults
type AnalysisConfig struct {
	Workers       int
	Iterations    int
	Drop          int
	Alpha         float64
	Seed          int64
	MinModuleSize int
}

// CacheConfig holds the batch result cache settings. An empty Dir disables it.
type CacheConfig struct {
	Dir string
	TTL time.Duration
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:  *loadDatabaseConfig(),
		Server:    *loadServerConfig(),
		Analysis:  *loadAnalysisConfig(),
		Cache:     *loadCacheConfig(),
		Profiling: *loadProfilingConfig(),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// RequireDatabase fails when no database URL is configured
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	return nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:     getEnvOrDefault("DATABASE_URL", ""),
		Reset:   getEnvBoolOrDefault("DB_RESET", false),
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Workers:       getEnvIntOrDefault("OMICPATH_WORKERS", runtime.NumCPU()),
		Iterations:    getEnvIntOrDefault("OMICPATH_ITERATIONS", 100),
		Drop:          getEnvIntOrDefault("OMICPATH_DROP", 3),
		Alpha:         getEnvFloatOrDefault("OMICPATH_ALPHA", 0.05),
		Seed:          int64(getEnvIntOrDefault("OMICPATH_SEED", 42)),
		MinModuleSize: getEnvIntOrDefault("OMICPATH_MIN_MODULE_SIZE", 1),
	}
}

func loadCacheConfig() *CacheConfig {
	return &CacheConfig{
		Dir: getEnvOrDefault("OMICPATH_CACHE_DIR", ""),
		TTL: getEnvDurationOrDefault("OMICPATH_CACHE_TTL", 0),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	a := config.Analysis
	if a.Workers < 1 {
		return errors.ConfigInvalid("OMICPATH_WORKERS must be at least 1")
	}
	if a.Iterations < 0 {
		return errors.ConfigInvalid("OMICPATH_ITERATIONS must not be negative")
	}
	if a.Drop < 0 {
		return errors.ConfigInvalid("OMICPATH_DROP must not be negative")
	}
	if a.Alpha <= 0 || a.Alpha > 1 {
		return errors.ConfigInvalid("OMICPATH_ALPHA must be in (0, 1]")
	}
	if a.MinModuleSize < 1 {
		return errors.ConfigInvalid("OMICPATH_MIN_MODULE_SIZE must be at least 1")
	}
	if config.Cache.TTL < 0 {
		return errors.ConfigInvalid("OMICPATH_CACHE_TTL must not be negative")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
