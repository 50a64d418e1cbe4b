// Package config provides Viper-based configuration loading for the
// relay server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the listener.
	Port int `mapstructure:"port"`
	// PublicWSURL is the externally reachable WebSocket base URL handed
	// out by the join endpoint, e.g. "ws://localhost:8090". Empty means
	// derive from the request host.
	PublicWSURL string `mapstructure:"public_ws_url"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig holds session capacity and liveness settings.
type SessionConfig struct {
	// MaxPlayers is the per-session capacity bound.
	MaxPlayers int `mapstructure:"max_players"`
	// AFKTimeout is the inactivity window before eviction.
	AFKTimeout time.Duration `mapstructure:"afk_timeout"`
	// AFKSweepInterval is how often the AFK sweep runs.
	AFKSweepInterval time.Duration `mapstructure:"afk_sweep_interval"`
	// HeartbeatInterval is how often the ping/pong sweep runs.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	// PongTimeout is how long an unanswered ping may stay outstanding
	// before the connection is treated as dead.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
}

// LimitsConfig holds per-frame-type rate budgets (per second).
type LimitsConfig struct {
	// PositionPerSecond caps position-update frames.
	PositionPerSecond int `mapstructure:"position_per_second"`
	// ChatPerSecond caps chat frames.
	ChatPerSecond int `mapstructure:"chat_per_second"`
	// ActionPerSecond caps action frames.
	ActionPerSecond int `mapstructure:"action_per_second"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// File is an optional log file path; empty logs to stderr.
	File string `mapstructure:"file"`
	// MaxSizeMB is the rotation size threshold for the log file.
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `mapstructure:"max_backups"`
	// MaxAgeDays is the retention age for rotated files.
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Session SessionConfig `mapstructure:"session"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error
// describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSession(c.Session); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLimits(c.Limits); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Host == "" {
		errs = append(errs, "server.host must not be empty")
	}
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSession(s SessionConfig) error {
	var errs []string
	if s.MaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("session.max_players must be >= 1, got %d", s.MaxPlayers))
	}
	if s.AFKTimeout <= 0 {
		errs = append(errs, "session.afk_timeout must be positive")
	}
	if s.AFKSweepInterval <= 0 {
		errs = append(errs, "session.afk_sweep_interval must be positive")
	}
	if s.HeartbeatInterval <= 0 {
		errs = append(errs, "session.heartbeat_interval must be positive")
	}
	if s.PongTimeout <= 0 {
		errs = append(errs, "session.pong_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLimits(l LimitsConfig) error {
	var errs []string
	if l.PositionPerSecond < 1 {
		errs = append(errs, fmt.Sprintf("limits.position_per_second must be >= 1, got %d", l.PositionPerSecond))
	}
	if l.ChatPerSecond < 1 {
		errs = append(errs, fmt.Sprintf("limits.chat_per_second must be >= 1, got %d", l.ChatPerSecond))
	}
	if l.ActionPerSecond < 1 {
		errs = append(errs, fmt.Sprintf("limits.action_per_second must be >= 1, got %d", l.ActionPerSecond))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	var errs []string
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", l.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", l.Format))
	}
	if l.File != "" {
		if l.MaxSizeMB < 1 {
			errs = append(errs, fmt.Sprintf("logging.max_size_mb must be >= 1 when logging.file is set, got %d", l.MaxSizeMB))
		}
		if l.MaxBackups < 0 {
			errs = append(errs, "logging.max_backups must not be negative")
		}
		if l.MaxAgeDays < 0 {
			errs = append(errs, "logging.max_age_days must not be negative")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies
// environment variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with RELAY_ prefix
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default returns the stock configuration used when no config file is
// given.
//
// Postcondition: Returns a Config that passes Validate.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshal over bare defaults cannot fail: the keys match the struct.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.public_ws_url", "")

	v.SetDefault("session.max_players", 20)
	v.SetDefault("session.afk_timeout", "10m")
	v.SetDefault("session.afk_sweep_interval", "60s")
	v.SetDefault("session.heartbeat_interval", "30s")
	v.SetDefault("session.pong_timeout", "5s")

	v.SetDefault("limits.position_per_second", 30)
	v.SetDefault("limits.chat_per_second", 5)
	v.SetDefault("limits.action_per_second", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 7)
}
