// Package config loads service configuration from an optional YAML file
// overlaid by IRIS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"iris-api/identity"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "IRIS_"

// StoreConfig selects and tunes the event store.
type StoreConfig struct {
	// Driver is "sqlite" or "mongo".
	Driver        string        `yaml:"driver" env:"DRIVER"`
	SQLiteDSN     string        `yaml:"sqlite_dsn" env:"SQLITE_DSN"`
	MongoURI      string        `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDatabase string        `yaml:"mongo_database" env:"MONGO_DATABASE"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries    int           `yaml:"max_retries" env:"MAX_RETRIES"`
}

// AuthConfig describes bearer token verification.
type AuthConfig struct {
	Issuer           string `yaml:"issuer" env:"ISSUER"`
	Audience         string `yaml:"audience" env:"AUDIENCE"`
	PublicKeyFile    string `yaml:"public_key_file" env:"PUBLIC_KEY_FILE"`
	HMACSecret       string `yaml:"hmac_secret" env:"HMAC_SECRET"`
	PermissionsClaim string `yaml:"permissions_claim" env:"PERMISSIONS_CLAIM"`
}

// DirectoryConfig points at the identity provider's management API.
type DirectoryConfig struct {
	Endpoint     string        `yaml:"endpoint" env:"ENDPOINT"`
	TokenURL     string        `yaml:"token_url" env:"TOKEN_URL"`
	ClientID     string        `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"CLIENT_SECRET"`
	Pages        int           `yaml:"pages" env:"PAGES"`
	PerPage      int           `yaml:"per_page" env:"PER_PAGE"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// SweepConfig schedules archiving. An empty schedule disables it.
type SweepConfig struct {
	Schedule         string `yaml:"schedule" env:"SCHEDULE"`
	ArchiveAfterDays int    `yaml:"archive_after_days" env:"ARCHIVE_AFTER_DAYS"`
}

// RateLimitConfig allows Requests per Window per client address.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" env:"REQUESTS"`
	Window   time.Duration `yaml:"window" env:"WINDOW"`
}

// Config is the top-level service configuration.
type Config struct {
	Listen   string `yaml:"listen" env:"LISTEN"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	// Timezone is the IANA zone event times are written in.
	Timezone string `yaml:"timezone" env:"TIMEZONE"`

	Store     StoreConfig      `yaml:"store" envPrefix:"STORE_"`
	Auth      AuthConfig       `yaml:"auth" envPrefix:"AUTH_"`
	Directory DirectoryConfig  `yaml:"directory" envPrefix:"DIRECTORY_"`
	MailURL   string           `yaml:"mail_url" env:"MAIL_URL"`
	Groups    []identity.Group `yaml:"groups"`
	Sweep     SweepConfig      `yaml:"sweep" envPrefix:"SWEEP_"`
	RateLimit RateLimitConfig  `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`

	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   ":8080",
		LogLevel: "info",
		Timezone: "Europe/Amsterdam",
		Store: StoreConfig{
			Driver:        "sqlite",
			SQLiteDSN:     "file:iris.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
			MongoDatabase: "iris",
			Timeout:       5 * time.Second,
			MaxRetries:    5,
		},
		Auth: AuthConfig{PermissionsClaim: identity.DefaultPermissionsClaim},
		Directory: DirectoryConfig{
			Pages:    2,
			PerPage:  100,
			CacheTTL: 5 * time.Minute,
			Timeout:  10 * time.Second,
		},
		Groups: identity.DefaultGroups(),
		Sweep: SweepConfig{
			Schedule:         "0 3 * * *",
			ArchiveAfterDays: 30,
		},
		RateLimit: RateLimitConfig{Requests: 120, Window: time.Minute},
	}
}

// Normalize fills zero values with defaults so partial files still work.
// The sweep schedule is left alone: empty means disabled.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = d.Store.Driver
	}
	if c.Store.SQLiteDSN == "" {
		c.Store.SQLiteDSN = d.Store.SQLiteDSN
	}
	if c.Store.MongoDatabase == "" {
		c.Store.MongoDatabase = d.Store.MongoDatabase
	}
	if c.Store.Timeout <= 0 {
		c.Store.Timeout = d.Store.Timeout
	}
	if c.Store.MaxRetries <= 0 {
		c.Store.MaxRetries = d.Store.MaxRetries
	}
	if c.Auth.PermissionsClaim == "" {
		c.Auth.PermissionsClaim = d.Auth.PermissionsClaim
	}
	if c.Directory.Pages <= 0 {
		c.Directory.Pages = d.Directory.Pages
	}
	if c.Directory.PerPage <= 0 {
		c.Directory.PerPage = d.Directory.PerPage
	}
	if c.Directory.CacheTTL <= 0 {
		c.Directory.CacheTTL = d.Directory.CacheTTL
	}
	if c.Directory.Timeout <= 0 {
		c.Directory.Timeout = d.Directory.Timeout
	}
	if len(c.Groups) == 0 {
		c.Groups = d.Groups
	}
	if c.Sweep.ArchiveAfterDays <= 0 {
		c.Sweep.ArchiveAfterDays = d.Sweep.ArchiveAfterDays
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = d.RateLimit.Window
	}
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
	case "mongo":
		if c.Store.MongoURI == "" {
			return errors.New("store.mongo_uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Auth.PublicKeyFile == "" && c.Auth.HMACSecret == "" {
		return errors.New("auth.public_key_file or auth.hmac_secret is required")
	}
	for _, g := range c.Groups {
		if g.Name == "" || g.ViewPermission == "" || g.SignupPermission == "" {
			return fmt.Errorf("group %q needs a name, view and signup permission", g.Name)
		}
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load builds the configuration: defaults, then the YAML file at path when
// it exists, then environment variables, then Normalize. An empty path skips
// the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}
