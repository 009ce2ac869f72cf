package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GoogleConfig holds the OAuth client used to turn stored refresh tokens into
// calendar API credentials.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	RedirectURL  string `yaml:"redirect_url" json:"redirect_url"`
}

// RedisConfig points at the document store. An empty Addr selects the
// in-memory store.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	// Prefix namespaces every key written by the store.
	Prefix string `yaml:"prefix" json:"prefix"`
}

// AuthConfig configures caller identity verification for /api/*.
type AuthConfig struct {
	// JWTSecret is the HS256 key bearer tokens must be signed with.
	JWTSecret string `yaml:"jwt_secret" json:"jwt_secret"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to label school template dates and
	// to compute warm-up windows (e.g. "America/New_York").
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheTTL bounds how long an aggregated window is served from memory.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// UpstreamTimeout bounds each upstream calendar HTTP request.
	UpstreamTimeout time.Duration `yaml:"upstream_timeout" json:"upstream_timeout"`

	// RefreshCron is a cron-style schedule string (e.g. "*/4 * * * *") for
	// warming the cache. "off" disables warming; empty selects the default.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// WarmDays is the length of the warmed window starting at the beginning
	// of the current week.
	WarmDays int `yaml:"warm_days" json:"warm_days"`

	// FamilyConfigDoc is the id of the familyConfig document.
	FamilyConfigDoc string `yaml:"family_config_doc" json:"family_config_doc"`

	Google GoogleConfig `yaml:"google" json:"google"`
	Redis  RedisConfig  `yaml:"redis" json:"redis"`
	Auth   AuthConfig   `yaml:"auth" json:"auth"`
}

const (
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "UTC"
	defaultLogLevel        = "INFO"
	defaultCacheTTL        = 5 * time.Minute
	defaultUpstreamTimeout = 15 * time.Second
	defaultRefreshCron     = "*/4 * * * *"
	defaultWarmDays        = 7
	defaultFamilyConfigDoc = "default"
	defaultRedisPrefix     = "familycal"

	// RefreshOff disables cache warming when used as RefreshCron.
	RefreshOff = "off"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Timezone:        defaultTimezone,
		LogLevel:        defaultLogLevel,
		CacheTTL:        defaultCacheTTL,
		UpstreamTimeout: defaultUpstreamTimeout,
		RefreshCron:     defaultRefreshCron,
		WarmDays:        defaultWarmDays,
		FamilyConfigDoc: defaultFamilyConfigDoc,
		Redis:           RedisConfig{Prefix: defaultRedisPrefix},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = defaultUpstreamTimeout
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.WarmDays <= 0 {
		c.WarmDays = defaultWarmDays
	}
	if c.FamilyConfigDoc == "" {
		c.FamilyConfigDoc = defaultFamilyConfigDoc
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = defaultRedisPrefix
	}
}

// WarmingEnabled reports whether RefreshCron schedules cache warming.
func (c *Config) WarmingEnabled() bool {
	return c.RefreshCron != "" && !strings.EqualFold(c.RefreshCron, RefreshOff)
}

// ApplyEnv overrides secrets and deployment-specific values from the
// environment. Unset variables leave the file values in place.
func (c *Config) ApplyEnv() {
	setFromEnv(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	setFromEnv(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setFromEnv(&c.Google.RedirectURL, "OAUTH_REDIRECT_URI")
	setFromEnv(&c.Redis.Addr, "REDIS_ADDR")
	setFromEnv(&c.Redis.Password, "REDIS_PASSWORD")
	setFromEnv(&c.FamilyConfigDoc, "FAMILY_CONFIG_DOC")
	setFromEnv(&c.Auth.JWTSecret, "FAMILYCAL_JWT_SECRET")
}

func setFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, err
	}
	return loc, nil
}

// Load reads the YAML file at path. A missing file is created with the
// defaults (mode 0600) so operators have something to edit. Environment
// overrides are applied last and are never written back.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := readFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	case err != nil:
		return nil, err
	}

	cfg.ApplyEnv()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save atomically replaces the file at path with cfg, normalized. The
// directory is created with mode 0700 if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	out := *cfg
	out.Normalize()
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, ".familycal-config-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(f.Name(), 0o600)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Rename(f.Name(), path)
}
