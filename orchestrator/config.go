package orchestrator

import (
	"time"

	"github.com/soundline/meetbot/audio"
)

// Defaults for the orchestrator knobs.
const (
	DefaultMaxConcurrentBots   = 10
	DefaultMaxRetries          = 3
	DefaultRetryDelay          = 5 * time.Second
	DefaultRateLimitWindow     = 10 * time.Second
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultSessionTimeout      = 2 * time.Hour
	DefaultCleanupInterval     = 60 * time.Second
	DefaultStaleThreshold      = 5 * time.Minute
	DefaultMaxBufferBytes      = 10 << 20
	DefaultBotName             = "meetbot"
)

// Config tunes the orchestrator. Zero values fall back to defaults;
// AutoReconnect defaults to off and must be enabled explicitly.
type Config struct {
	// MaxConcurrentBots caps the number of simultaneously active bots.
	MaxConcurrentBots int

	// MaxRetries is the reconnection attempt ceiling per bot.
	MaxRetries int

	// RetryDelay is the base backoff; attempt n waits RetryDelay * 2^(n-1).
	RetryDelay time.Duration

	// RateLimitWindow rejects repeat joins for the same meeting number.
	RateLimitWindow time.Duration

	// HealthCheckInterval is the monitor scan period. A bot is stale when
	// its last health signal is older than twice this interval.
	HealthCheckInterval time.Duration

	// SessionTimeout is the maximum bot uptime before it is unhealthy.
	SessionTimeout time.Duration

	// CleanupInterval is the janitor scan period.
	CleanupInterval time.Duration

	// StaleThreshold is how long a terminal bot lingers before purging.
	StaleThreshold time.Duration

	// JoinTimeout and StopGrace are forwarded to the process supervisor.
	JoinTimeout time.Duration
	StopGrace   time.Duration

	// FlushInterval, MinFlushBytes and TranscribeTimeout are forwarded to
	// the audio pipeline.
	FlushInterval     time.Duration
	MinFlushBytes     int
	TranscribeTimeout time.Duration

	// MaxBufferBytes caps one bot's audio buffer; oldest chunks are
	// dropped beyond it so a lagging transcription backend cannot grow
	// memory without bound.
	MaxBufferBytes int

	// AutoReconnect enables backoff restarts of failed bots.
	AutoReconnect bool

	// BotName is the display name bots join meetings with.
	BotName string

	// Format is the PCM format the bot processes capture.
	Format audio.Format
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrentBots <= 0 {
		c.MaxConcurrentBots = DefaultMaxConcurrentBots
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = DefaultRateLimitWindow
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = DefaultStaleThreshold
	}
	if c.MaxBufferBytes <= 0 {
		c.MaxBufferBytes = DefaultMaxBufferBytes
	}
	if c.BotName == "" {
		c.BotName = DefaultBotName
	}
	if c.Format.SampleRate == 0 {
		c.Format = audio.DefaultFormat
	}
}
