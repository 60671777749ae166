package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// defaultJWTSecret only exists so development works without setup
const defaultJWTSecret = "dev-secret-change-me"

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration
// In Go, we use structs to group related data together
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Redis    RedisConfig
	App      AppConfig
	Auth     AuthConfig
	Log      LogConfig

	GeoIPPath string // MaxMind country database; empty disables geolocation
	SentryDSN string // empty disables error reporting
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	BaseURL      string // prefix of generated short URLs
	CORSOrigin   string
	StaticDir    string // web UI assets, served when the directory exists
	// TrustedProxies may set the client address through X-Real-IP or
	// X-Forwarded-For; requests from anywhere else use the peer address
	TrustedProxies []netip.Prefix
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string // DATABASE_URL wins over the discrete fields
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

// StoreConfig selects the link store implementation
type StoreConfig struct {
	Driver string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Environment           string
	LogLevel              string
	ShortCodeLength       int
	AllocationMaxAttempts int
	InsertMaxAttempts     int
	RateLimitEnabled      bool
	RateLimitPerMinute    int
	EnableMetrics         bool
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// LogConfig holds the optional rotated log file
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from environment variables
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	port := getEnv("SERVER_PORT", "8080")

	trustedProxies, err := parsePrefixes("TRUSTED_PROXIES")
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         port,
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "10s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "10s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "120s"),
			BaseURL:      getEnv("BASE_URL", "http://localhost:"+port),
			CORSOrigin:   getEnv("CORS_ORIGIN", "*"),
			StaticDir:    getEnv("STATIC_DIR", "web"),

			TrustedProxies: trustedProxies,
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "shortlinks"),
			Password:        getEnv("DB_PASSWORD", "dev_password_123"),
			DBName:          getEnv("DB_NAME", "shortlinks"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        parseInt("DB_MAX_CONNS", 25),
			MinConns:        parseInt("DB_MIN_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", DriverPostgres),
		},
		Redis: RedisConfig{
			Enabled:  parseBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt("REDIS_DB", 0),
			CacheTTL: parseDuration("REDIS_CACHE_TTL", "1h"),
		},
		App: AppConfig{
			Environment:           getEnv("APP_ENV", "development"),
			LogLevel:              getEnv("LOG_LEVEL", "info"),
			ShortCodeLength:       parseInt("SHORT_CODE_LENGTH", 6),
			AllocationMaxAttempts: parseInt("ALLOCATION_MAX_ATTEMPTS", 10),
			InsertMaxAttempts:     parseInt("INSERT_MAX_ATTEMPTS", 3),
			RateLimitEnabled:      parseBool("RATE_LIMIT_ENABLED", true),
			RateLimitPerMinute:    parseInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 100),
			EnableMetrics:         parseBool("ENABLE_METRICS", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
			TokenTTL:  parseDuration("JWT_TOKEN_TTL", "24h"),
		},
		Log: LogConfig{
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  parseInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: parseInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: parseInt("LOG_MAX_AGE_DAYS", 28),
		},
		GeoIPPath: getEnv("GEOIP_DB_PATH", ""),
		SentryDSN: getEnv("SENTRY_DSN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.App.ShortCodeLength < 4 || c.App.ShortCodeLength > 10 {
		errs = append(errs, fmt.Errorf("SHORT_CODE_LENGTH must be between 4 and 10, got %d", c.App.ShortCodeLength))
	}
	if c.App.AllocationMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("ALLOCATION_MAX_ATTEMPTS must be positive, got %d", c.App.AllocationMaxAttempts))
	}
	if c.App.InsertMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("INSERT_MAX_ATTEMPTS must be positive, got %d", c.App.InsertMaxAttempts))
	}
	if c.App.RateLimitEnabled && c.App.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive, got %d", c.App.RateLimitPerMinute))
	}
	switch c.Store.Driver {
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.IsProduction() && c.Auth.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// DatabaseDSN returns the PostgreSQL connection string
// DSN = Data Source Name, a standard format for database connections
func (c *DatabaseConfig) DatabaseDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address in host:port format
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions to parse environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// parsePrefixes reads a comma-separated list of CIDRs; a bare address
// stands for itself
func parsePrefixes(key string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range strings.Split(os.Getenv(key), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is neither an address nor a CIDR", key, entry)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		// If parsing fails, parse the default value
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
