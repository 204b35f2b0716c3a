// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreMongo   = "mongo"
	StoreMariaDB = "mariadb"
)

// devSessionSecret is only used when SESSION_SECRET is unset outside production.
const devSessionSecret = "dev-session-secret-do-not-use-in-production!!"

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 3000).
	Port int

	// BaseURL is the public-facing URL used in outbound email links.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// TrustedProxies lists CIDRs whose X-Forwarded-For / X-Real-IP headers
	// are believed when resolving the client IP.
	TrustedProxies []string

	// StoreDriver selects the credential store backend: "mongo" or "mariadb".
	StoreDriver string

	// Mongo holds MongoDB connection settings (STORE_DRIVER=mongo).
	Mongo MongoConfig

	// Database holds MariaDB connection settings (STORE_DRIVER=mariadb).
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Auth holds session and password hashing settings.
	Auth AuthConfig

	// Mail holds the outbound mail account.
	Mail MailConfig
}

// MongoConfig holds MongoDB connection parameters.
type MongoConfig struct {
	// URI is the connection string. The path component names the database.
	URI string
}

// DatabaseName returns the database named in the URI path, falling back to
// "password-reset" when the URI has no path.
func (m MongoConfig) DatabaseName() string {
	u, err := url.Parse(m.URI)
	if err != nil {
		return "password-reset"
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return "password-reset"
	}
	return name
}

// DatabaseConfig holds MariaDB connection parameters. If DATABASE_URL is set,
// it takes precedence over the individual fields.
type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Name     string

	// dsnOverride is set when DATABASE_URL is provided.
	dsnOverride string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string
}

// DSN returns the go-sql-driver/mysql connection string. Built with
// Config.FormatDSN() so special characters in passwords survive.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds session and credential settings.
type AuthConfig struct {
	// SessionSecret signs the session cookie handle.
	SessionSecret string

	// SessionTTL is how long sessions last before expiring.
	SessionTTL time.Duration

	// BcryptCost is the bcrypt work factor.
	BcryptCost int
}

// MailConfig holds the SMTP account used for transactional mail.
type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string

	// Encryption is "starttls", "ssl", or "none".
	Encryption string

	// SendTimeout bounds a single background send.
	SendTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing or malformed.
func Load() (*Config, error) {
	env := getEnv("ENV", "development")
	defaultLevel := "info"
	if isDevEnv(env) {
		defaultLevel = "debug"
	}

	cfg := &Config{
		Env:         env,
		Port:        getEnvInt("PORT", 3000),
		BaseURL:     getEnv("BASE_URL", "http://localhost:3000"),
		LogLevel:    getEnv("LOG_LEVEL", defaultLevel),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),

		TrustedProxies: getEnvList("TRUSTED_PROXIES", []string{"127.0.0.0/8", "::1/128"}),

		Mongo: MongoConfig{
			URI: getEnv("MONGODB_URI", "mongodb://localhost:27017/password-reset"),
		},

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "gatehouse"),
			Password:        getEnv("DB_PASSWORD", "gatehouse"),
			Name:            getEnv("DB_NAME", "gatehouse"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "db/migrations"),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", ""),
			SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
			BcryptCost:    getEnvInt("BCRYPT_COST", 10),
		},

		Mail: MailConfig{
			Host:        getEnv("MAIL_HOST", ""),
			Port:        getEnvInt("MAIL_PORT", 587),
			Username:    getEnv("MAIL_USERNAME", ""),
			Password:    getEnv("MAIL_PASSWORD", ""),
			FromAddress: getEnv("MAIL_FROM", ""),
			FromName:    getEnv("MAIL_FROM_NAME", "Gatehouse"),
			Encryption:  strings.ToLower(getEnv("MAIL_ENCRYPTION", "starttls")),
			SendTimeout: getEnvDuration("MAIL_SEND_TIMEOUT", 15*time.Second),
		},
	}

	switch cfg.StoreDriver {
	case StoreMongo, StoreMariaDB:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreMariaDB, cfg.StoreDriver)
	}

	switch cfg.Mail.Encryption {
	case "starttls", "ssl", "none":
	default:
		return nil, fmt.Errorf("MAIL_ENCRYPTION must be starttls, ssl, or none, got %q", cfg.Mail.Encryption)
	}

	// bcrypt rejects costs outside [4, 31].
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.Auth.BcryptCost)
	}

	// A non-positive TTL would issue sessions that are already expired.
	if cfg.Auth.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.Auth.SessionTTL)
	}

	for _, cidr := range cfg.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid CIDR %q", cidr)
		}
	}

	if cfg.IsProduction() {
		if cfg.Auth.SessionSecret == "" {
			return nil, fmt.Errorf("SESSION_SECRET is required in production")
		}
		if len(cfg.Auth.SessionSecret) < 32 {
			return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters in production")
		}
	}

	if cfg.Auth.SessionSecret == "" {
		cfg.Auth.SessionSecret = devSessionSecret
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return isDevEnv(c.Env)
}

// IsProduction returns true for production deployments. Secure cookies are
// only issued in production.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

func isDevEnv(env string) bool {
	env = strings.ToLower(env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "24h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var. An empty value yields an empty
// list, which is different from the variable being unset.
func getEnvList(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
