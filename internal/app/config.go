package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/odyssey-starter/internal/auth"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
)

// DefaultSecretKey is the development secret. Running with it outside
// development produces a warning.
const DefaultSecretKey = "dev"

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"production"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" default:"bolt://app.db"`
	Dyno        string `envconfig:"DYNO"`

	SessionRedisURL string        `envconfig:"SESSION_REDIS_URL"`
	SecretKey       string        `envconfig:"SECRET_KEY" default:"dev"`
	CSRFSecret      string        `envconfig:"CSRF_SECRET"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	AdminUser     string `envconfig:"ADMIN_USER" default:"app-admin"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"app-admin"`

	Argon2Time      uint32 `envconfig:"ARGON2_TIME" default:"3"`
	Argon2MemoryKiB uint32 `envconfig:"ARGON2_MEMORY_KIB" default:"65536"`
	Argon2Threads   uint8  `envconfig:"ARGON2_THREADS" default:"2"`

	DefaultLanguage string `envconfig:"DEFAULT_LANGUAGE" default:"en"`
	LoginRateLimit  int    `envconfig:"LOGIN_RATE_LIMIT" default:"10"`

	// DevMode is derived from the usual development flags, not read directly.
	DevMode bool `ignored:"true"`
	// ConfigFile is the file that was loaded, if any.
	ConfigFile string `ignored:"true"`
	// Warnings collects non-fatal problems for the caller to log.
	Warnings []string `ignored:"true"`
}

// devFlags are checked, in order, to detect a development environment.
var devFlags = []string{"DEBUG", "CI", "DEV", "DEVELOPMENT", "NODE_ENV", "ENV", "APP_ENV"}

// ConfigSearchPaths lists the config files tried in order; the first one
// found is loaded.
func ConfigSearchPaths() []string {
	paths := []string{
		"/etc/odyssey-starter/starter.conf",
		"/etc/odyssey-starter.conf",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "odyssey-starter", "starter.conf"))
	}
	return append(paths, "starter.conf")
}

// LoadConfig reads the first config file found, then environment variables.
// Variables already set in the environment win over the file. Test mode
// skips the file search so host config never leaks into tests.
func LoadConfig() (*Config, error) {
	if InTestMode() {
		return loadConfig(nil)
	}
	return loadConfig(ConfigSearchPaths())
}

func loadConfig(paths []string) (*Config, error) {
	loaded, err := loadConfigFile(paths)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.ConfigFile = loaded
	cfg.DevMode = DetectDevMode(os.Getenv)
	if cfg.DevMode && os.Getenv("APP_ENV") == "" {
		cfg.AppEnv = "development"
	}
	if cfg.CSRFSecret == "" {
		cfg.CSRFSecret = cfg.SecretKey
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must be provided")
	}
	if cfg.SecretKey == DefaultSecretKey && !cfg.DevMode {
		cfg.Warnings = append(cfg.Warnings, "SECRET_KEY is the development default; set a real secret in production")
	}

	normalized, err := NormalizeDatabaseURL(cfg.DatabaseURL, cfg.Dyno != "")
	if err != nil {
		return nil, err
	}
	cfg.DatabaseURL = normalized
	return &cfg, nil
}

func loadConfigFile(paths []string) (string, error) {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("load config file %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

// DetectDevMode reports whether any development flag holds a truthy value.
func DetectDevMode(getenv func(string) string) bool {
	for _, key := range devFlags {
		switch strings.ToLower(strings.TrimSpace(getenv(key))) {
		case "1", "true", "yes", "on", "development", "dev":
			return true
		}
	}
	return false
}

// NormalizeDatabaseURL canonicalises the postgres scheme and, on managed
// hosts, enforces TLS. Schemes without a backend are rejected.
func NormalizeDatabaseURL(raw string, managedHost bool) (string, error) {
	driver, _, err := db.ParseURL(raw)
	if err != nil {
		return "", err
	}
	if driver != db.DriverPostgres {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	u.Scheme = "postgres"
	if managedHost {
		q := u.Query()
		q.Set("sslmode", "require")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && !c.DevMode && c.AppEnv == "production"
}

// HasherParams returns the argon2id costs for new hashes.
func (c *Config) HasherParams() auth.Params {
	return auth.Params{
		Time:      c.Argon2Time,
		MemoryKiB: c.Argon2MemoryKiB,
		Threads:   c.Argon2Threads,
		SaltLen:   16,
		KeyLen:    32,
	}
}

// AdminCredentials returns the first-run administrator account.
func (c *Config) AdminCredentials() auth.AdminCredentials {
	return auth.AdminCredentials{Username: c.AdminUser, Password: c.AdminPassword}
}
