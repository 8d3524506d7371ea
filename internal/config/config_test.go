package config

import (
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MEETING_API_KEY", "key")
	t.Setenv("MEETING_API_SECRET", "secret")
	t.Setenv("BOT_BINARY", "/usr/local/bin/meetbot-agent")
}

func TestLoadDefaults(t *testing.T) {
	is := is.New(t)
	setRequired(t)

	cfg, err := Load()
	is.NoErr(err)
	is.NoErr(cfg.Validate())
	is.True(cfg.IsConfigured())

	is.Equal(cfg.BotName, "meetbot")
	is.Equal(cfg.MaxConcurrentBots, 10)
	is.Equal(cfg.MaxRetries, 3)
	is.Equal(cfg.RetryDelay, 5*time.Second)
	is.Equal(cfg.RateLimitWindow, 10*time.Second)
	is.Equal(cfg.HealthCheckInterval, 30*time.Second)
	is.Equal(cfg.SessionTimeout, 2*time.Hour)
	is.Equal(cfg.CleanupInterval, time.Minute)
	is.Equal(cfg.StaleThreshold, 5*time.Minute)
	is.True(cfg.AutoReconnect)
	is.Equal(cfg.LogLevel, "info")
}

func TestLoadOverrides(t *testing.T) {
	is := is.New(t)
	setRequired(t)
	t.Setenv("BOT_NAME", "scribe")
	t.Setenv("BOT_ARGS", "--headless  --profile default")
	t.Setenv("MAX_CONCURRENT_BOTS", "25")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("SESSION_TIMEOUT", "45m")
	t.Setenv("AUTO_RECONNECT", "false")
	t.Setenv("EVENT_SINK_URL", "wss://events.example.com/ingest")

	cfg, err := Load()
	is.NoErr(err)
	is.Equal(cfg.BotName, "scribe")
	is.Equal(cfg.BotArgs, []string{"--headless", "--profile", "default"})
	is.Equal(cfg.MaxConcurrentBots, 25)
	is.Equal(cfg.RetryDelay, 250*time.Millisecond)
	is.Equal(cfg.SessionTimeout, 45*time.Minute)
	is.True(!cfg.AutoReconnect)
	is.Equal(cfg.EventSinkURL, "wss://events.example.com/ingest")
}

func TestLoadRejectsBadValues(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_CONCURRENT_BOTS", "many")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric MAX_CONCURRENT_BOTS")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("RETRY_DELAY", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparsable RETRY_DELAY")
	}
}

func TestValidateMissingPieces(t *testing.T) {
	is := is.New(t)

	cfg := &Config{}
	is.True(errors.Is(cfg.Validate(), ErrMissingOpenAIKey))

	cfg.OpenAIAPIKey = "sk-test"
	is.True(errors.Is(cfg.Validate(), ErrMissingMeetingCredentials))

	cfg.MeetingAPIKey = "key"
	is.True(errors.Is(cfg.Validate(), ErrMissingMeetingCredentials))

	cfg.MeetingAPISecret = "secret"
	is.True(errors.Is(cfg.Validate(), ErrMissingBotBinary))

	cfg.BotBinary = "/bin/true"
	is.NoErr(cfg.Validate())
	is.True(cfg.IsConfigured())
}
