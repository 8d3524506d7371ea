package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundline/meetbot/bot"
	"github.com/soundline/meetbot/internal/config"
	"github.com/soundline/meetbot/internal/eventsink"
	"github.com/soundline/meetbot/internal/process"
	"github.com/soundline/meetbot/internal/token"
	"github.com/soundline/meetbot/internal/version"
	"github.com/soundline/meetbot/orchestrator"
	"github.com/soundline/meetbot/stt"
)

const shutdownTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:          "meetbot",
	Short:        "Meeting bot orchestrator",
	Long:         `meetbot manages a fleet of meeting bots: it joins them to meetings, supervises their processes, transcribes their audio, and publishes lifecycle events.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := setupLogger(cfg.LogLevel)
		logger.Info("starting orchestrator",
			slog.String("service", "meetbot"),
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.Int("max_bots", cfg.MaxConcurrentBots))

		minter, err := token.NewMinter(cfg.MeetingAPIKey, cfg.MeetingAPISecret)
		if err != nil {
			return err
		}

		transcriber := stt.NewWhisperTranscriber(cfg.OpenAIAPIKey)
		if cfg.WhisperLanguage != "" {
			transcriber = transcriber.WithLanguage(cfg.WhisperLanguage)
		}

		spawn := process.NewSpawner(process.SpawnerConfig{
			Binary: cfg.BotBinary,
			Args:   cfg.BotArgs,
			Logger: logger,
		})

		orch := orchestrator.New(orchestrator.Config{
			MaxConcurrentBots:   cfg.MaxConcurrentBots,
			MaxRetries:          cfg.MaxRetries,
			RetryDelay:          cfg.RetryDelay,
			RateLimitWindow:     cfg.RateLimitWindow,
			HealthCheckInterval: cfg.HealthCheckInterval,
			SessionTimeout:      cfg.SessionTimeout,
			CleanupInterval:     cfg.CleanupInterval,
			StaleThreshold:      cfg.StaleThreshold,
			AutoReconnect:       cfg.AutoReconnect,
			BotName:             cfg.BotName,
		}, orchestrator.Deps{
			Spawn:  spawn,
			STT:    transcriber,
			Tokens: minter,
			Logger: logger,
		})

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if cfg.EventSinkURL != "" {
			sink := eventsink.New(cfg.EventSinkURL, cfg.EventSinkToken, logger)
			defer sink.Close()
			go sink.Run(ctx)
			orch.Subscribe(func(ev orchestrator.Event) { sink.Publish(ev) })
		}

		meetingNumber, _ := cmd.Flags().GetString("meeting-number")
		if meetingNumber != "" {
			sessionID, _ := cmd.Flags().GetString("meeting-session")
			password, _ := cmd.Flags().GetString("meeting-password")
			if sessionID == "" {
				sessionID = meetingNumber
			}
			inst, err := orch.JoinMeeting(ctx, bot.JoinRequest{
				MeetingSessionID: sessionID,
				MeetingNumber:    meetingNumber,
				MeetingPassword:  password,
			})
			if err != nil {
				logger.Error("initial join failed", slog.String("error", err.Error()))
				return err
			}
			logger.Info("initial bot joined",
				slog.String("bot_id", inst.ID),
				slog.String("meeting_number", meetingNumber))
		}

		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := orch.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown incomplete", slog.String("error", err.Error()))
			return err
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func setupLogger(level string) *slog.Logger {
	opts := &slog.HandlerOptions{}

	switch level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func init() {
	runCmd.Flags().String("meeting-number", "", "meeting to join at startup")
	runCmd.Flags().String("meeting-session", "", "session identifier for the startup meeting (defaults to the meeting number)")
	runCmd.Flags().String("meeting-password", "", "password for the startup meeting")
	rootCmd.AddCommand(runCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
