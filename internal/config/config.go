package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	S3       S3Config
	Email    EmailConfig
	CORS     CORSConfig
	Log      LogConfig
	Resolver ResolverConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds certificate storage settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// EmailConfig holds review-notification delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	ReviewInbox string `mapstructure:"review_inbox"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ResolverConfig holds the tax engine's tuning knobs.
type ResolverConfig struct {
	// MinPatternConfidence gates the learned-pattern fallback and
	// auto-approval of resolved calculations.
	MinPatternConfidence float64 `mapstructure:"min_pattern_confidence"`
	// ConfidenceAlpha is the EMA step for pattern confidence updates.
	ConfidenceAlpha float64 `mapstructure:"confidence_alpha"`
	// LookupProvider names the injected external provider.
	LookupProvider string `mapstructure:"lookup_provider"`
	// CacheTTL bounds how long an external response is served from cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// MaxInflightLookups bounds concurrent adapter calls per provider.
	MaxInflightLookups int64 `mapstructure:"max_inflight_lookups"`
}

// Load reads configuration from environment variables with the TAXATLAS_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TAXATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "taxatlas")
	v.SetDefault("db.password", "taxatlas_secret")
	v.SetDefault("db.name", "taxatlas_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "taxatlas-certificates")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 10)
	v.SetDefault("s3.presign_expiry", 3600)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@taxatlas.io")
	v.SetDefault("email.from_name", "TaxAtlas")
	v.SetDefault("email.review_inbox", "tax-review@taxatlas.io")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Resolver defaults
	v.SetDefault("resolver.min_pattern_confidence", 0.6)
	v.SetDefault("resolver.confidence_alpha", 0.1)
	v.SetDefault("resolver.lookup_provider", "geotax")
	v.SetDefault("resolver.cache_ttl", "720h")
	v.SetDefault("resolver.max_inflight_lookups", 4)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                    "TAXATLAS_SERVER_PORT",
		"server.read_timeout":            "TAXATLAS_SERVER_READ_TIMEOUT",
		"server.write_timeout":           "TAXATLAS_SERVER_WRITE_TIMEOUT",
		"server.environment":             "TAXATLAS_SERVER_ENVIRONMENT",
		"db.host":                        "TAXATLAS_DB_HOST",
		"db.port":                        "TAXATLAS_DB_PORT",
		"db.user":                        "TAXATLAS_DB_USER",
		"db.password":                    "TAXATLAS_DB_PASSWORD",
		"db.name":                        "TAXATLAS_DB_NAME",
		"db.sslmode":                     "TAXATLAS_DB_SSLMODE",
		"db.max_open":                    "TAXATLAS_DB_MAX_OPEN",
		"db.max_idle":                    "TAXATLAS_DB_MAX_IDLE",
		"s3.region":                      "TAXATLAS_S3_REGION",
		"s3.bucket":                      "TAXATLAS_S3_BUCKET",
		"s3.endpoint":                    "TAXATLAS_S3_ENDPOINT",
		"s3.access_key":                  "TAXATLAS_S3_ACCESS_KEY",
		"s3.secret_key":                  "TAXATLAS_S3_SECRET_KEY",
		"s3.max_file_size_mb":            "TAXATLAS_S3_MAX_FILE_SIZE_MB",
		"s3.presign_expiry":              "TAXATLAS_S3_PRESIGN_EXPIRY",
		"email.provider":                 "TAXATLAS_EMAIL_PROVIDER",
		"email.region":                   "TAXATLAS_EMAIL_REGION",
		"email.from_address":             "TAXATLAS_EMAIL_FROM_ADDRESS",
		"email.from_name":                "TAXATLAS_EMAIL_FROM_NAME",
		"email.review_inbox":             "TAXATLAS_EMAIL_REVIEW_INBOX",
		"cors.allowed_origins":           "TAXATLAS_CORS_ALLOWED_ORIGINS",
		"log.level":                      "TAXATLAS_LOG_LEVEL",
		"log.format":                     "TAXATLAS_LOG_FORMAT",
		"resolver.min_pattern_confidence": "TAXATLAS_RESOLVER_MIN_PATTERN_CONFIDENCE",
		"resolver.confidence_alpha":      "TAXATLAS_RESOLVER_CONFIDENCE_ALPHA",
		"resolver.lookup_provider":       "TAXATLAS_RESOLVER_LOOKUP_PROVIDER",
		"resolver.cache_ttl":             "TAXATLAS_RESOLVER_CACHE_TTL",
		"resolver.max_inflight_lookups":  "TAXATLAS_RESOLVER_MAX_INFLIGHT_LOOKUPS",
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Comma-separated origins come in as a single string from the env.
	if len(cfg.CORS.AllowedOrigins) == 1 && strings.Contains(cfg.CORS.AllowedOrigins[0], ",") {
		cfg.CORS.AllowedOrigins = strings.Split(cfg.CORS.AllowedOrigins[0], ",")
	}

	return &cfg, nil
}
