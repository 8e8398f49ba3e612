package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/tax"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "GYMDESK_"

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config errors
var (
	ErrInvalidCSRFKey  = errors.New("csrf key must be 64 hex characters (32 bytes)")
	ErrMissingCSRFKey  = errors.New("csrf key is required in production")
	ErrInvalidEnv      = errors.New("env must be 'development' or 'production'")
	ErrEmptyAddr       = errors.New("server address cannot be empty")
	ErrEmptyDBPath     = errors.New("database path cannot be empty")
	ErrInvalidRate     = errors.New("rate limit must be positive")
	ErrInvalidInterval = errors.New("outbox interval must be positive")
)

// Config is the full runtime configuration.
type Config struct {
	Env      string         `yaml:"env"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Gym      GymConfig      `yaml:"gym"`
	Email    EmailConfig    `yaml:"email"`
	NATS     NATSConfig     `yaml:"nats"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Outbox   OutboxConfig   `yaml:"outbox"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// CSRFKey is hex-encoded; a random key is generated outside production when empty.
	CSRFKey            string `yaml:"csrf_key"`
	RateLimitPerSecond int    `yaml:"rate_limit_per_second"`
	SlowRequestMs      int    `yaml:"slow_request_ms"`
	StaticDir          string `yaml:"static_dir"`
}

// DatabaseConfig configures the SQLite file.
type DatabaseConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	SlowQueryMs  int    `yaml:"slow_query_ms"`
}

// GymConfig names the business on receipts.
type GymConfig struct {
	Name string `yaml:"name"`
}

// EmailConfig configures receipt delivery through Resend. Mail is logged only when APIKey is empty.
type EmailConfig struct {
	ResendAPIKey string `yaml:"resend_api_key"`
	From         string `yaml:"from"`
	ReplyTo      string `yaml:"reply_to"`
}

// NATSConfig configures change-event publishing. Disabled when URL is empty.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// TracingConfig configures the OTLP/HTTP exporter. Disabled when Endpoint is empty.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// OutboxConfig tunes the retry worker.
type OutboxConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// CatalogConfig is the seed catalog written into an empty database.
type CatalogConfig struct {
	Packages []plan.CatalogEntry `yaml:"packages"`
	Taxes    []tax.Rule          `yaml:"taxes"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Env: EnvDevelopment,
		Server: ServerConfig{
			Addr:               ":8080",
			RateLimitPerSecond: 10,
			SlowRequestMs:      200,
			StaticDir:          "static",
		},
		Database: DatabaseConfig{
			Path:         "gymdesk.db",
			MaxOpenConns: 25,
			SlowQueryMs:  100,
		},
		Gym: GymConfig{Name: "Gym"},
		Email: EmailConfig{
			From: "Gym Desk <receipts@gymdesk.local>",
		},
		Outbox: OutboxConfig{
			Interval:  time.Minute,
			BatchSize: 50,
			BaseDelay: time.Minute,
			MaxDelay:  time.Hour,
		},
	}
}

// LoadFromFile reads a YAML file on top of the defaults.
// PRE: path names a readable file
// POST: Keys absent from the file keep their default values
func LoadFromFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the configuration with layered precedence:
// defaults, then the YAML file at path (skipped when empty), then .env files, then GYMDESK_* variables.
// PRE: none
// POST: Returned config passes Validate
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
	}

	loadDotEnv(envFiles...)
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadDotEnv loads .env files without overriding variables already set.
func loadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.Warn("dotenv_load_failed", "file", f, "error", err.Error())
			}
			continue
		}
		slog.Debug("dotenv_loaded", "file", f)
	}
}

// ApplyEnv overrides fields from GYMDESK_* variables found by lookup.
// PRE: lookup behaves like os.LookupEnv
// POST: Unparseable numeric values are reported with the variable name
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("ENV", &c.Env)
	str("ADDR", &c.Server.Addr)
	str("CSRF_KEY", &c.Server.CSRFKey)
	num("RATE_LIMIT", &c.Server.RateLimitPerSecond)
	num("SLOW_REQUEST_MS", &c.Server.SlowRequestMs)
	str("STATIC_DIR", &c.Server.StaticDir)
	str("DB", &c.Database.Path)
	num("MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	num("SLOW_QUERY_MS", &c.Database.SlowQueryMs)
	str("GYM_NAME", &c.Gym.Name)
	str("RESEND_KEY", &c.Email.ResendAPIKey)
	str("RESEND_FROM", &c.Email.From)
	str("REPLY_TO", &c.Email.ReplyTo)
	str("NATS_URL", &c.NATS.URL)
	str("NATS_SUBJECT_PREFIX", &c.NATS.SubjectPrefix)
	str("OTLP_ENDPOINT", &c.Tracing.Endpoint)
	dur("OUTBOX_INTERVAL", &c.Outbox.Interval)

	if v, ok := lookup(EnvPrefix + "OTLP_INSECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sOTLP_INSECURE: %w", EnvPrefix, err))
		} else {
			c.Tracing.Insecure = b
		}
	}
	return errors.Join(errs...)
}

// Validate checks the configuration.
// PRE: none
// POST: Returns the first invalid setting, or nil
func (c Config) Validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return ErrInvalidEnv
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return ErrEmptyAddr
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return ErrEmptyDBPath
	}
	if c.Server.RateLimitPerSecond <= 0 {
		return ErrInvalidRate
	}
	if c.Outbox.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.Server.CSRFKey != "" {
		if _, err := c.CSRFKeyBytes(); err != nil {
			return err
		}
	} else if c.IsProduction() {
		return ErrMissingCSRFKey
	}
	for i := range c.Catalog.Taxes {
		if err := c.Catalog.Taxes[i].Validate(); err != nil {
			return fmt.Errorf("catalog tax %d: %w", i, err)
		}
	}
	return nil
}

// IsProduction reports whether the production environment is selected.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// CSRFKeyBytes decodes the configured CSRF key.
// PRE: none
// POST: Returns nil, nil when no key is configured
func (c Config) CSRFKeyBytes() ([]byte, error) {
	if c.Server.CSRFKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Server.CSRFKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidCSRFKey
	}
	return key, nil
}
