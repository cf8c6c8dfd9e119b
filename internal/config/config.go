package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr          string `yaml:"addr"`           // Listen address, e.g. ":8080".
	AllowedOrigin string `yaml:"allowed-origin"` // Origin allowed for LIFF browser calls.
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // PostgreSQL URL or SQLite path.
}

// JWTConfig holds admin session token settings.
type JWTConfig struct {
	Secret      string        `yaml:"secret"` // HMAC signing secret.
	ExpiryHours int           `yaml:"expiry-hours"`
}

// Expiry returns the configured token lifetime.
func (c JWTConfig) Expiry() time.Duration {
	hours := c.ExpiryHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// LineConfig holds LINE messaging platform credentials.
type LineConfig struct {
	ChannelID          string `yaml:"channel-id"`           // LIFF channel id used to verify ID tokens.
	ChannelSecret      string `yaml:"channel-secret"`       // Webhook signature secret. Unset means the webhook fails closed.
	ChannelAccessToken string `yaml:"channel-access-token"` // Reply token for webhook responses to unregistered users.
}

// JobsConfig holds scheduled-job trigger settings.
type JobsConfig struct {
	CronSecret string `yaml:"cron-secret"` // Bearer secret for job endpoints. Unset means jobs fail closed.
}

// LogConfig holds log output settings.
type LogConfig struct {
	File       string `yaml:"file"`        // Log file path; empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max-size-mb"` // Rotation threshold.
	MaxBackups int    `yaml:"max-backups"` // Rotated files kept.
	Level      string `yaml:"level"`       // logrus level name.
}

// Config is the validated startup configuration. Demo mode is an explicit
// flag; it is never inferred from missing credentials.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Line     LineConfig     `yaml:"line"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Log      LogConfig      `yaml:"log"`

	// Timezone is the fixed civil timezone all organizations operate in.
	// Daily report dates and scheduled dispatch use it; no DST adjustment.
	Timezone string `yaml:"timezone"`

	// Demo seeds an in-memory database and relaxes LINE credential checks.
	Demo bool `yaml:"demo"`
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	var cfg Config
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	if errParse := yaml.Unmarshal(data, &cfg); errParse != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, errParse)
	}
	cfg.applyDefaults()
	if errValidate := cfg.Validate(); errValidate != nil {
		return cfg, errValidate
	}
	return cfg, nil
}

// applyDefaults fills unset fields with safe defaults.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = ":8080"
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = "Asia/Tokyo"
	}
	if c.Demo && strings.TrimSpace(c.Database.DSN) == "" {
		c.Database.DSN = "file:demo?mode=memory&cache=shared"
	}
}

// Validate rejects configurations that would run in an insecure or broken
// state. Missing LINE or cron secrets are allowed here; the affected
// endpoints fail closed at request time instead.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	if _, errLoad := time.LoadLocation(c.Timezone); errLoad != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, errLoad)
	}
	if !c.Demo {
		if strings.TrimSpace(c.Line.ChannelID) == "" {
			return fmt.Errorf("config: line.channel-id is required outside demo mode")
		}
	}
	return nil
}

// Location returns the configured civil timezone.
func (c Config) Location() *time.Location {
	loc, errLoad := time.LoadLocation(c.Timezone)
	if errLoad != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}
