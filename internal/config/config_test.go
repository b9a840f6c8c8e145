// internal/config/config_test.go

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ServerURL:     "wss://chat.example.com/ws",
		Room:          "general",
		Username:      "alice",
		Environment:   "development",
		MaxImageSize:  5 * 1024 * 1024,
		MaxVideoSize:  50 * 1024 * 1024,
		LocalStateDir: "./chatstate",
		TypingTimeout: time.Second,
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "ws://localhost:8080/ws", cfg.ServerURL)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxImageSize)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxVideoSize)
	assert.Equal(t, time.Second, cfg.TypingTimeout)
	assert.NotEmpty(t, cfg.CDNURL, "CDN URL defaults to the bucket endpoint")
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing server URL", func(c *Config) { c.ServerURL = "" }},
		{"non-websocket URL", func(c *Config) { c.ServerURL = "http://chat.example.com" }},
		{"missing room", func(c *Config) { c.Room = "" }},
		{"missing username", func(c *Config) { c.Username = "" }},
		{"production without token", func(c *Config) { c.Environment = "production" }},
		{"S3 without credentials", func(c *Config) { c.UseS3 = true }},
		{"zero image cap", func(c *Config) { c.MaxImageSize = 0 }},
		{"image cap above video cap", func(c *Config) { c.MaxImageSize = c.MaxVideoSize + 1 }},
		{"no state backend", func(c *Config) { c.LocalStateDir = "" }},
		{"typing timeout too small", func(c *Config) { c.TypingTimeout = time.Millisecond }},
		{"push without device token", func(c *Config) { c.EnablePushNotifications = true }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRedisURLSatisfiesStateBackend(t *testing.T) {
	cfg := validConfig()
	cfg.LocalStateDir = ""
	cfg.RedisURL = "redis://localhost:6379/0"
	assert.NoError(t, cfg.Validate())
}

func TestHTTPBaseURLDerivesOrigin(t *testing.T) {
	cfg := validConfig()

	cfg.ServerURL = "ws://chat.example.com:8080/ws"
	assert.Equal(t, "http://chat.example.com:8080", cfg.HTTPBaseURL())

	cfg.ServerURL = "wss://chat.example.com/ws"
	assert.Equal(t, "https://chat.example.com", cfg.HTTPBaseURL())
}
