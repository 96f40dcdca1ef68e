package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds client configuration values.
type Config struct {
	ServerURL      string          `mapstructure:"server_url" yaml:"server_url"`
	Username       string          `mapstructure:"username" yaml:"username"`
	Token          string          `mapstructure:"token" yaml:"token"`
	LogLevel       string          `mapstructure:"log_level" yaml:"log_level"`
	LogFile        string          `mapstructure:"log_file" yaml:"log_file"`
	DBPath         string          `mapstructure:"db_path" yaml:"db_path"`
	StatusAddr     string          `mapstructure:"status_addr" yaml:"status_addr"`
	DefaultRoom    string          `mapstructure:"default_room" yaml:"default_room"`
	ConnectTimeout time.Duration   `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	WriteTimeout   time.Duration   `mapstructure:"write_timeout" yaml:"write_timeout"`
	Reconnect      ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
	Typing         TypingConfig    `mapstructure:"typing" yaml:"typing"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Protocol       ProtocolConfig  `mapstructure:"protocol" yaml:"protocol"`
}

// ReconnectConfig controls automatic reconnection after a dropped connection.
type ReconnectConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// TypingConfig controls typing indicators.
type TypingConfig struct {
	QuietPeriod  time.Duration `mapstructure:"quiet_period" yaml:"quiet_period"`
	StaleTimeout time.Duration `mapstructure:"stale_timeout" yaml:"stale_timeout"`
}

// RateLimitConfig controls the local send limit.
type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window" yaml:"window"`
}

// ProtocolConfig selects the wire dialect.
type ProtocolConfig struct {
	// LegacyNames sends underscore event names for servers that predate the dashed ones.
	LegacyNames bool `mapstructure:"legacy_names" yaml:"legacy_names"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:      "ws://localhost:8080/ws",
		LogLevel:       "info",
		LogFile:        "wirechat.log",
		DBPath:         "wirechat.db",
		DefaultRoom:    "gaming",
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   5 * time.Second,
		Reconnect: ReconnectConfig{
			MaxAttempts:  5,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
		},
		Typing: TypingConfig{
			QuietPeriod:  time.Second,
			StaleTimeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{Window: time.Second},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.Username != "" {
		c.Username = other.Username
	}
	if other.Token != "" {
		c.Token = other.Token
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
	if other.DBPath != "" {
		c.DBPath = other.DBPath
	}
	if other.StatusAddr != "" {
		c.StatusAddr = other.StatusAddr
	}
	if other.DefaultRoom != "" {
		c.DefaultRoom = other.DefaultRoom
	}
	if other.ConnectTimeout != 0 {
		c.ConnectTimeout = other.ConnectTimeout
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.Reconnect.MaxAttempts != 0 {
		c.Reconnect.MaxAttempts = other.Reconnect.MaxAttempts
	}
	if other.Reconnect.InitialDelay != 0 {
		c.Reconnect.InitialDelay = other.Reconnect.InitialDelay
	}
	if other.Reconnect.MaxDelay != 0 {
		c.Reconnect.MaxDelay = other.Reconnect.MaxDelay
	}
	if other.Typing.QuietPeriod != 0 {
		c.Typing.QuietPeriod = other.Typing.QuietPeriod
	}
	if other.Typing.StaleTimeout != 0 {
		c.Typing.StaleTimeout = other.Typing.StaleTimeout
	}
	if other.RateLimit.Window != 0 {
		c.RateLimit.Window = other.RateLimit.Window
	}
	if other.Protocol.LegacyNames {
		c.Protocol.LegacyNames = true
	}
}

// Validate reports settings the client cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server_url: scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("server_url: missing host")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect.max_attempts must not be negative")
	}
	if c.Reconnect.MaxDelay > 0 && c.Reconnect.InitialDelay > c.Reconnect.MaxDelay {
		return errors.New("reconnect.initial_delay must not exceed reconnect.max_delay")
	}
	return nil
}
