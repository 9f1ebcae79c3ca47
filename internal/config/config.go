// Package config loads the board service configuration. Values come from
// built-in defaults, an optional YAML file, and environment overrides, in
// that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/whisper/board/internal/presence"
)

// Default values.
const (
	DefaultListenAddr        = ":8080"
	DefaultMaxTTL            = 24 * time.Hour
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultPresenceGrace     = 10 * time.Second
	DefaultSweepInterval     = 30 * time.Second
)

// Config is the full service configuration.
type Config struct {
	ListenAddr string         `yaml:"listen_addr"`
	Entries    EntriesConfig  `yaml:"entries"`
	Presence   PresenceConfig `yaml:"presence"`
	Redis      RedisConfig    `yaml:"redis"`
	NATS       NATSConfig     `yaml:"nats"`
	Log        LogConfig      `yaml:"log"`
}

// EntriesConfig controls entry lifetime.
type EntriesConfig struct {
	// MaxTTL caps the TTL a caller may request; larger values are clamped.
	MaxTTL time.Duration `yaml:"max_ttl"`

	// Moderate screens posted text for links, phone numbers and floods.
	Moderate bool `yaml:"moderate"`

	// SweepInterval is how often the background sweep drains expired entries
	// and long-stale presence records. Zero disables the sweep.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// PresenceConfig controls the online window. The window is
// HeartbeatInterval + Grace and is fixed for the life of the process.
type PresenceConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	Grace             time.Duration `yaml:"grace"`
}

// Tracker converts the section to the presence package config.
func (p PresenceConfig) Tracker() presence.Config {
	return presence.Config{HeartbeatInterval: p.HeartbeatInterval, Grace: p.Grace}
}

// RedisConfig enables the Redis-backed rate limiter. Empty Addr disables it.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// NATSConfig enables event fan-out. Empty URL disables it.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		Entries: EntriesConfig{
			MaxTTL:        DefaultMaxTTL,
			SweepInterval: DefaultSweepInterval,
		},
		Presence: PresenceConfig{
			HeartbeatInterval: DefaultHeartbeatInterval,
			Grace:             DefaultPresenceGrace,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (when
// path is non-empty), then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Durations use
// time.ParseDuration syntax ("90s", "1h").
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("MODERATE_ENTRIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: MODERATE_ENTRIES: %w", err)
		}
		c.Entries.Moderate = b
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"MAX_TTL", &c.Entries.MaxTTL},
		{"SWEEP_INTERVAL", &c.Entries.SweepInterval},
		{"HEARTBEAT_INTERVAL", &c.Presence.HeartbeatInterval},
		{"PRESENCE_GRACE", &c.Presence.Grace},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", d.env, err)
		}
		*d.dst = parsed
	}
	return nil
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks structural constraints.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.Entries.MaxTTL < time.Second {
		return fmt.Errorf("entries.max_ttl %s must be at least 1s", c.Entries.MaxTTL)
	}
	if c.Entries.SweepInterval < 0 {
		return fmt.Errorf("entries.sweep_interval must not be negative")
	}
	if c.Presence.HeartbeatInterval <= 0 {
		return fmt.Errorf("presence.heartbeat_interval must be positive")
	}
	if c.Presence.Grace < 0 {
		return fmt.Errorf("presence.grace must not be negative")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", c.Log.Format)
	}
	return nil
}
