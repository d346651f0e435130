// Package config loads application configuration from environment variables.
// All variables use the LEXI_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names accepted in LEXI_AI_PROVIDER.
const (
	ProviderGateway    = "gateway"
	ProviderOpenRouter = "openrouter"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	AI            AIConfig
	Speech        SpeechConfig
	Database      DatabaseConfig
	Cache         CacheConfig
	RateLimit     RateLimitConfig
	Log           LogConfig
	QuestionsPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AIConfig holds chat-completion provider settings.
type AIConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string // empty means the provider default
	PrimaryModel   string
	FallbackModel  string
	ImageModel     string // empty disables image generation
	TimeoutSeconds int
}

// Timeout returns the per-call bound.
func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// SpeechConfig holds text-to-speech provider settings.
type SpeechConfig struct {
	APIKey         string
	BaseURL        string
	VoiceID        string
	ModelID        string
	TimeoutSeconds int
}

// Timeout returns the per-call bound.
func (s SpeechConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL
// disables request event storage.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL
// disables rate limiting.
type CacheConfig struct {
	URL string
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	PerMinute int // 0 disables the limiter
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEXI_ prefix.
// Missing credentials are not an error here; they surface per request.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEXI_SERVER_PORT", 8080),
			Host: envStr("LEXI_SERVER_HOST", "0.0.0.0"),
		},
		AI: AIConfig{
			Provider:       strings.ToLower(envStr("LEXI_AI_PROVIDER", ProviderGateway)),
			APIKey:         envStr("LEXI_AI_API_KEY", ""),
			BaseURL:        envStr("LEXI_AI_BASE_URL", ""),
			PrimaryModel:   envStr("LEXI_AI_PRIMARY_MODEL", "google/gemini-2.5-flash"),
			FallbackModel:  envStr("LEXI_AI_FALLBACK_MODEL", "google/gemini-2.5-flash-lite"),
			ImageModel:     envStrAllowEmpty("LEXI_AI_IMAGE_MODEL", "google/gemini-2.5-flash-image-preview"),
			TimeoutSeconds: envInt("LEXI_AI_TIMEOUT_SECONDS", 60),
		},
		Speech: SpeechConfig{
			APIKey:         envStr("LEXI_SPEECH_API_KEY", ""),
			BaseURL:        envStr("LEXI_SPEECH_BASE_URL", "https://api.elevenlabs.io"),
			VoiceID:        envStr("LEXI_SPEECH_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
			ModelID:        envStr("LEXI_SPEECH_MODEL_ID", "eleven_multilingual_v2"),
			TimeoutSeconds: envInt("LEXI_SPEECH_TIMEOUT_SECONDS", 60),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEXI_DATABASE_URL", ""),
			MaxConns: envInt("LEXI_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("LEXI_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL: envStr("LEXI_CACHE_URL", ""),
		},
		RateLimit: RateLimitConfig{
			PerMinute: envInt("LEXI_RATE_LIMIT_PER_MINUTE", 20),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envStr("LEXI_LOG_LEVEL", "info")),
			Format: strings.ToLower(envStr("LEXI_LOG_FORMAT", "json")),
		},
		QuestionsPath: envStr("LEXI_QUESTIONS_PATH", ""),
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("LEXI_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.AI.Provider != ProviderGateway && c.AI.Provider != ProviderOpenRouter {
		return fmt.Errorf("LEXI_AI_PROVIDER must be %q or %q, got %q", ProviderGateway, ProviderOpenRouter, c.AI.Provider)
	}

	if c.AI.PrimaryModel == "" {
		return fmt.Errorf("LEXI_AI_PRIMARY_MODEL is required")
	}

	if c.AI.TimeoutSeconds <= 0 {
		return fmt.Errorf("LEXI_AI_TIMEOUT_SECONDS must be positive, got %d", c.AI.TimeoutSeconds)
	}

	if c.Speech.TimeoutSeconds <= 0 {
		return fmt.Errorf("LEXI_SPEECH_TIMEOUT_SECONDS must be positive, got %d", c.Speech.TimeoutSeconds)
	}

	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("LEXI_RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimit.PerMinute)
	}

	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("LEXI_DATABASE_MIN_CONNS (%d) exceeds LEXI_DATABASE_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LEXI_LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LEXI_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasAIKey reports whether a chat-completion credential is configured.
func (c *Config) HasAIKey() bool {
	return c.AI.APIKey != ""
}

// HasSpeechKey reports whether a text-to-speech credential is configured.
func (c *Config) HasSpeechKey() bool {
	return c.Speech.APIKey != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envStrAllowEmpty returns fallback only when key is unset, so an explicit
// empty value can switch a feature off.
func envStrAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
