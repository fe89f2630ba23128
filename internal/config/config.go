package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Cheertaboi/coupon-form-service/pkg/db"
)

// Config captures the runtime settings of the coupon form service.
type Config struct {
	ListenAddress string            `yaml:"listen"`
	Env           string            `yaml:"env"`
	LogLevel      string            `yaml:"log_level"`
	Database      db.PostgresConfig `yaml:"database"`
	Catalog       CatalogConfig     `yaml:"catalog"`
	References    ReferencesConfig  `yaml:"references"`
	Sessions      SessionsConfig    `yaml:"sessions"`
	RateLimit     RateLimitConfig   `yaml:"rate_limit"`
}

// CatalogConfig points at the course catalog API used for seat lookups.
type CatalogConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Workers  int           `yaml:"workers"`
	Queue    int           `yaml:"queue"`
}

// ReferencesConfig locates the catalogs and enterprise customers file.
type ReferencesConfig struct {
	Path string `yaml:"path"`
}

type SessionsConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

func defaults() Config {
	return Config{
		ListenAddress: ":8080",
		Env:           "development",
		LogLevel:      "info",
		Catalog: CatalogConfig{
			Timeout:  10 * time.Second,
			CacheTTL: 5 * time.Minute,
			Workers:  4,
			Queue:    64,
		},
		Sessions:  SessionsConfig{TTL: 30 * time.Minute},
		RateLimit: RateLimitConfig{RequestsPerMinute: 600, Burst: 60},
	}
}

// Load reads a .env file when present, then the YAML file at path (optional),
// then environment overrides, and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	if v := os.Getenv("COUPON_FORM_LISTEN"); v != "" {
		cfg.ListenAddress = v
	}
	if v := os.Getenv("COUPON_FORM_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("COUPON_FORM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CATALOG_BASE_URL"); v != "" {
		cfg.Catalog.BaseURL = v
	}
	if v := os.Getenv("CATALOG_TOKEN"); v != "" {
		cfg.Catalog.Token = v
	}
	if err := cfg.Database.ApplyEnv(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func (cfg *Config) normalize() {
	d := defaults()
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = d.ListenAddress
	}
	cfg.Env = strings.TrimSpace(cfg.Env)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Database.Normalize()

	cfg.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Catalog.BaseURL), "/")
	cfg.Catalog.Token = strings.TrimSpace(cfg.Catalog.Token)
	if cfg.Catalog.Timeout <= 0 {
		cfg.Catalog.Timeout = d.Catalog.Timeout
	}
	if cfg.Catalog.Workers <= 0 {
		cfg.Catalog.Workers = d.Catalog.Workers
	}
	if cfg.Catalog.Queue <= 0 {
		cfg.Catalog.Queue = d.Catalog.Queue
	}

	cfg.References.Path = strings.TrimSpace(cfg.References.Path)
	if cfg.Sessions.TTL <= 0 {
		cfg.Sessions.TTL = d.Sessions.TTL
	}
}

func (cfg *Config) validate() error {
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if cfg.Catalog.BaseURL != "" &&
		!strings.HasPrefix(cfg.Catalog.BaseURL, "http://") &&
		!strings.HasPrefix(cfg.Catalog.BaseURL, "https://") {
		return fmt.Errorf("catalog: base_url must be an http(s) URL")
	}
	if cfg.Catalog.CacheTTL < 0 {
		return fmt.Errorf("catalog: cache_ttl must not be negative")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	return nil
}

// RateLimited reports whether the form API is throttled.
func (cfg Config) RateLimited() bool {
	return cfg.RateLimit.RequestsPerMinute > 0
}
