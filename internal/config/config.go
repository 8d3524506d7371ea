// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	// ErrMissingOpenAIKey indicates transcription cannot be configured.
	ErrMissingOpenAIKey = errors.New("OPENAI_API_KEY is not set")

	// ErrMissingMeetingCredentials indicates the join-token credentials are
	// incomplete.
	ErrMissingMeetingCredentials = errors.New("MEETING_API_KEY and MEETING_API_SECRET must both be set")

	// ErrMissingBotBinary indicates no bot executable was configured.
	ErrMissingBotBinary = errors.New("BOT_BINARY is not set")
)

// Config is everything the daemon needs to run, read once at startup.
type Config struct {
	// OpenAIAPIKey authenticates Whisper transcription requests.
	OpenAIAPIKey string

	// WhisperLanguage optionally pins the transcription language (ISO 639-1).
	WhisperLanguage string

	// MeetingAPIKey and MeetingAPISecret sign the join tokens bots present.
	MeetingAPIKey    string
	MeetingAPISecret string

	// BotBinary is the external bot executable; BotArgs are prepended to the
	// per-bot arguments.
	BotBinary string
	BotArgs   []string

	// BotName is the display name bots join with.
	BotName string

	MaxConcurrentBots   int
	MaxRetries          int
	RetryDelay          time.Duration
	RateLimitWindow     time.Duration
	HealthCheckInterval time.Duration
	SessionTimeout      time.Duration
	CleanupInterval     time.Duration
	StaleThreshold      time.Duration
	AutoReconnect       bool

	// EventSinkURL, when set, enables the websocket event relay.
	EventSinkURL   string
	EventSinkToken string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads the optional .env file and the process environment. Durations
// accept Go syntax ("30s", "2h"). Validation is separate so a partially
// configured daemon can still report status.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		WhisperLanguage:  os.Getenv("WHISPER_LANGUAGE"),
		MeetingAPIKey:    os.Getenv("MEETING_API_KEY"),
		MeetingAPISecret: os.Getenv("MEETING_API_SECRET"),
		BotBinary:        os.Getenv("BOT_BINARY"),
		BotName:          getEnv("BOT_NAME", "meetbot"),
		EventSinkURL:     os.Getenv("EVENT_SINK_URL"),
		EventSinkToken:   os.Getenv("EVENT_SINK_TOKEN"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	// Quoting is not supported; complex invocations belong in a wrapper
	// script.
	if args := os.Getenv("BOT_ARGS"); args != "" {
		cfg.BotArgs = strings.Fields(args)
	}

	var err error
	if cfg.MaxConcurrentBots, err = getInt("MAX_CONCURRENT_BOTS", 10); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = getInt("MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = getDuration("RETRY_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HealthCheckInterval, err = getDuration("HEALTH_CHECK_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTimeout, err = getDuration("SESSION_TIMEOUT", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = getDuration("CLEANUP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.StaleThreshold, err = getDuration("STALE_THRESHOLD", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AutoReconnect, err = getBool("AUTO_RECONNECT", true); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return ErrMissingOpenAIKey
	}
	if c.MeetingAPIKey == "" || c.MeetingAPISecret == "" {
		return ErrMissingMeetingCredentials
	}
	if c.BotBinary == "" {
		return ErrMissingBotBinary
	}
	return nil
}

// IsConfigured reports whether all required settings are present.
func (c *Config) IsConfigured() bool {
	return c.Validate() == nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
