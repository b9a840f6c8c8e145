// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Connection
	ServerURL   string // websocket endpoint of the chat server
	Room        string
	Username    string
	AuthToken   string
	Environment string

	// Debug / observability endpoint
	DebugAddr string

	// Media storage
	UseS3              bool
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3BucketName       string
	CDNURL             string
	MaxImageSize       int64
	MaxVideoSize       int64

	// Local state
	LocalStateDir string
	RedisURL      string // when set, state lives in Redis instead of on disk

	// GIF search
	GIFAPIKey    string
	GIFPageLimit int

	// Typing indicator
	TypingTimeout time.Duration

	// Push notifications
	EnablePushNotifications bool
	DeviceToken             string
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Connection
		ServerURL:   getEnv("CHAT_SERVER_URL", "ws://localhost:8080/ws"),
		Room:        getEnv("CHAT_ROOM", ""),
		Username:    getEnv("CHAT_USERNAME", ""),
		AuthToken:   getEnv("CHAT_AUTH_TOKEN", ""),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Debug endpoint
		DebugAddr: getEnv("DEBUG_ADDR", "127.0.0.1:6060"),

		// Media storage
		UseS3:              getEnvBool("USE_S3", false),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3BucketName:       getEnv("S3_BUCKET_NAME", "channel-chat-uploads"),
		CDNURL:             getEnv("CDN_URL", ""),
		MaxImageSize:       getEnvInt64("MAX_IMAGE_SIZE", 5*1024*1024),
		MaxVideoSize:       getEnvInt64("MAX_VIDEO_SIZE", 50*1024*1024),

		// Local state
		LocalStateDir: getEnv("LOCAL_STATE_DIR", "./chatstate"),
		RedisURL:      getEnv("REDIS_URL", ""),

		// GIF search
		GIFAPIKey:    getEnv("GIF_API_KEY", ""),
		GIFPageLimit: getEnvInt("GIF_PAGE_LIMIT", 20),

		// Typing indicator
		TypingTimeout: getEnvDuration("TYPING_TIMEOUT", "1000ms"),

		// Push notifications
		EnablePushNotifications: getEnvBool("ENABLE_PUSH_NOTIFICATIONS", false),
		DeviceToken:             getEnv("DEVICE_TOKEN", ""),
	}

	// Default the CDN URL to the bucket's public endpoint
	if cfg.CDNURL == "" && cfg.S3BucketName != "" {
		cfg.CDNURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3BucketName, cfg.AWSRegion)
	}

	return cfg
}

// HTTPBaseURL derives the chat server's HTTP origin from the websocket
// endpoint, for the REST surfaces that live next to the socket.
func (c *Config) HTTPBaseURL() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = ""
	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("chat server URL is required")
	}
	if !strings.HasPrefix(c.ServerURL, "ws://") && !strings.HasPrefix(c.ServerURL, "wss://") {
		return fmt.Errorf("chat server URL must use ws:// or wss://")
	}

	if c.Room == "" {
		return fmt.Errorf("chat room is required")
	}

	if c.Username == "" {
		return fmt.Errorf("username is required")
	}

	if c.Environment == "production" && c.AuthToken == "" {
		return fmt.Errorf("auth token is required for production")
	}

	// Storage validation
	if c.UseS3 {
		if c.AWSAccessKeyID == "" || c.AWSSecretAccessKey == "" || c.S3BucketName == "" {
			return fmt.Errorf("S3 configuration incomplete")
		}
	}

	if c.MaxImageSize < 1 || c.MaxVideoSize < 1 {
		return fmt.Errorf("media size limits must be positive")
	}
	if c.MaxImageSize > c.MaxVideoSize {
		return fmt.Errorf("image size limit cannot exceed video size limit")
	}

	// Local state validation
	if c.RedisURL == "" && c.LocalStateDir == "" {
		return fmt.Errorf("local state directory not specified")
	}

	if c.TypingTimeout < 100*time.Millisecond || c.TypingTimeout > 10*time.Second {
		return fmt.Errorf("typing timeout must be between 100ms and 10s")
	}

	if c.EnablePushNotifications && c.DeviceToken == "" {
		return fmt.Errorf("device token is required when push notifications are enabled")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment with a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 gets a 64-bit integer value from environment with a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		// If parsing fails, try to parse the default
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

// getEnvBool gets a boolean value from environment with a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
