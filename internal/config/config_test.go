package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Session: SessionConfig{
			MaxPlayers:        20,
			AFKTimeout:        10 * time.Minute,
			AFKSweepInterval:  time.Minute,
			HeartbeatInterval: 30 * time.Second,
			PongTimeout:       5 * time.Second,
		},
		Limits: LimitsConfig{
			PositionPerSecond: 30,
			ChatPerSecond:     5,
			ActionPerSecond:   20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestServerAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:8090", cfg.Server.Addr())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Session.MaxPlayers)
	assert.Equal(t, 10*time.Minute, cfg.Session.AFKTimeout)
	assert.Equal(t, 30, cfg.Limits.PositionPerSecond)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9000
  public_ws_url: ws://relay.example.com
session:
  max_players: 8
  afk_timeout: 5m
  afk_sweep_interval: 30s
  heartbeat_interval: 15s
  pong_timeout: 3s
limits:
  position_per_second: 60
  chat_per_second: 2
  action_per_second: 10
logging:
  level: debug
  format: console
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "ws://relay.example.com", cfg.Server.PublicWSURL)
	assert.Equal(t, 8, cfg.Session.MaxPlayers)
	assert.Equal(t, 5*time.Minute, cfg.Session.AFKTimeout)
	assert.Equal(t, 60, cfg.Limits.PositionPerSecond)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.yaml")
	err := os.WriteFile(path, []byte(`
server:
  port: 9001
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 20, cfg.Session.MaxPlayers)
	assert.Equal(t, 5, cfg.Limits.ChatPerSecond)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestValidateServerHostEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Host = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateServerPort(t *testing.T) {
	for _, port := range []int{0, -1, 65536} {
		cfg := validConfig()
		cfg.Server.Port = port
		assert.Error(t, cfg.Validate(), "port %d should be invalid", port)
	}
}

func TestValidateMaxPlayers(t *testing.T) {
	cfg := validConfig()
	cfg.Session.MaxPlayers = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateSessionDurations(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Session.AFKTimeout = 0 },
		func(c *Config) { c.Session.AFKSweepInterval = -time.Second },
		func(c *Config) { c.Session.HeartbeatInterval = 0 },
		func(c *Config) { c.Session.PongTimeout = 0 },
	} {
		cfg := validConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate())
	}
}

func TestValidateLimits(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Limits.PositionPerSecond = 0 },
		func(c *Config) { c.Limits.ChatPerSecond = -1 },
		func(c *Config) { c.Limits.ActionPerSecond = 0 },
	} {
		cfg := validConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate())
	}
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFileRotation(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.File = "/var/log/relay.log"
	cfg.Logging.MaxSizeMB = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Logging.File = "/var/log/relay.log"
	cfg.Logging.MaxSizeMB = 10
	assert.NoError(t, cfg.Validate())
}

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			t.Fatalf("port %d should be valid: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if cfg.Validate() == nil {
			t.Fatalf("port %d should be invalid", port)
		}
	})
}

func TestPropertyPositiveLimitsValid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := validConfig()
		cfg.Limits.PositionPerSecond = rapid.IntRange(1, 1000).Draw(t, "position")
		cfg.Limits.ChatPerSecond = rapid.IntRange(1, 1000).Draw(t, "chat")
		cfg.Limits.ActionPerSecond = rapid.IntRange(1, 1000).Draw(t, "action")
		if err := cfg.Validate(); err != nil {
			t.Fatalf("positive limits should be valid: %v", err)
		}
	})
}
