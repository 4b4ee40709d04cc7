// Package config loads and validates the dashboard gateway configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the VENTAS_ prefix (e.g., VENTAS_BACKEND_BASE_URL
// overrides backend.base_url in the YAML). The same binary therefore runs with a
// config.yaml in local development and with pure environment variables in containers.
//
// The session signing secret is read separately (VENTAS_SESSION_SECRET) by the auth
// package so it never has to appear in a config file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	Environment  string        `mapstructure:"environment"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// IsProduction reports whether the gateway runs with production hardening
// (secure cookies, no stack traces on error pages).
func (s *ServerConfig) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}

// BackendConfig describes the remote REST API the dashboard is a client of.
type BackendConfig struct {
	// BaseURL is the root of the REST API (e.g. https://api.example.com/api/v1)
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// SessionConfig holds browser session configuration
type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
	// Store selects the session backend: "memory", "redis" or "postgres"
	Store           string        `mapstructure:"store"`
	SecureCookie    bool          `mapstructure:"secure_cookie"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// EncryptionSalt is mixed into the key derivation for upstream tokens at rest
	EncryptionSalt string `mapstructure:"encryption_salt"`
}

// RedisConfig holds redis connection configuration (session store and rate limits)
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// DatabaseConfig holds database connection configuration for the postgres session store
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig holds rate limiting configuration for the credential endpoints
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	// Backend is "memory" (per process) or "redis" (shared across replicas)
	Backend string `mapstructure:"backend"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName string        `mapstructure:"service_name"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// AuditConfig holds dashboard audit shipping configuration.
// The backend keeps the authoritative audit log; these shippers are best-effort copies.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// ShipToBackend posts login/logout events to the backend /auditoria endpoint
	ShipToBackend bool                 `mapstructure:"ship_to_backend"`
	Shippers      []AuditShipperConfig `mapstructure:"shippers"`
}

// AuditShipperConfig holds configuration for a single audit shipper
type AuditShipperConfig struct {
	Enabled bool                `mapstructure:"enabled"`
	Type    string              `mapstructure:"type"` // webhook, file
	Webhook *AuditWebhookConfig `mapstructure:"webhook"`
	File    *AuditFileConfig    `mapstructure:"file"`
}

// AuditWebhookConfig holds webhook shipper configuration
type AuditWebhookConfig struct {
	URL           string            `mapstructure:"url"`
	Headers       map[string]string `mapstructure:"headers"`
	TimeoutSecs   int               `mapstructure:"timeout_secs"`
	BatchSize     int               `mapstructure:"batch_size"`
	FlushInterval int               `mapstructure:"flush_interval_secs"`
}

// AuditFileConfig holds file shipper configuration
type AuditFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// AutomaticEnv() alone does not populate nested structs during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.environment",
		"server.read_timeout",
		"server.write_timeout",

		// Backend
		"backend.base_url",
		"backend.timeout",
		"backend.user_agent",

		// Session
		"session.cookie_name",
		"session.ttl",
		"session.store",
		"session.secure_cookie",
		"session.cleanup_interval",
		"session.encryption_salt",

		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",
		"redis.pool_size",

		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.backend",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",

		// Audit
		"audit.enabled",
		"audit.ship_to_backend",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/ventas-dashboard")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("VENTAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Watch loads the configuration and re-decodes it whenever the config file changes.
// onChange receives every successfully validated reload; invalid edits are logged and
// ignored so a typo in config.yaml never takes down a running gateway.
func Watch(configPath string, onChange func(*Config)) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		reloaded, err := decode(v)
		if err != nil {
			slog.Warn("ignoring invalid configuration change", "file", e.Name, "error", err)
			return
		}
		slog.Info("configuration reloaded", "file", e.Name)
		onChange(reloaded)
	})
	v.WatchConfig()

	return cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.base_url", "http://localhost:3000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.user_agent", "ventas-dashboard")

	// Session defaults
	v.SetDefault("session.cookie_name", "ventas_session")
	v.SetDefault("session.ttl", "8h")
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.secure_cookie", false)
	v.SetDefault("session.cleanup_interval", "5m")
	v.SetDefault("session.encryption_salt", "ventas-dashboard-session-salt")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "ventas_dashboard")
	v.SetDefault("database.user", "dashboard")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_idle_connections", 2)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 10)
	v.SetDefault("security.rate_limiting.burst", 5)
	v.SetDefault("security.rate_limiting.backend", "memory")
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "ventas-dashboard")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)

	// Audit defaults
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.ship_to_backend", true)
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[strings.ToLower(c.Server.Environment)] {
		return fmt.Errorf("invalid server environment: %s (must be development, staging, or production)", c.Server.Environment)
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend.base_url must be an http(s) URL: %s", c.Backend.BaseURL)
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	validStores := map[string]bool{"memory": true, "redis": true, "postgres": true}
	if !validStores[c.Session.Store] {
		return fmt.Errorf("invalid session store: %s (must be memory, redis, or postgres)", c.Session.Store)
	}
	if c.Session.Store == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when using the redis session store")
	}
	if c.Session.Store == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required when using the postgres session store")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required when using the postgres session store")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required when using the postgres session store")
		}
	}

	if c.Security.RateLimiting.Enabled {
		if c.Security.RateLimiting.RequestsPerMinute < 1 {
			return fmt.Errorf("security.rate_limiting.requests_per_minute must be at least 1")
		}
		switch c.Security.RateLimiting.Backend {
		case "memory":
		case "redis":
			if c.Redis.Addr == "" {
				return fmt.Errorf("redis.addr is required when rate limiting uses redis")
			}
		default:
			return fmt.Errorf("invalid rate limiting backend: %s (must be memory or redis)", c.Security.RateLimiting.Backend)
		}
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	for i, s := range c.Audit.Shippers {
		if !s.Enabled {
			continue
		}
		switch s.Type {
		case "webhook":
			if s.Webhook == nil || s.Webhook.URL == "" {
				return fmt.Errorf("audit.shippers[%d]: webhook.url is required", i)
			}
		case "file":
			if s.File == nil || s.File.Path == "" {
				return fmt.Errorf("audit.shippers[%d]: file.path is required", i)
			}
		default:
			return fmt.Errorf("audit.shippers[%d]: unknown shipper type %q", i, s.Type)
		}
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
