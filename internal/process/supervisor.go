// Package process supervises the external bot processes: spawning them with
// structured startup parameters, routing their typed IPC envelopes, and
// enforcing the join-timeout and graceful-stop protocols.
package process

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soundline/meetbot/bot"
)

const (
	// DefaultJoinTimeout bounds how long a process may take to report a
	// connected status after spawn.
	DefaultJoinTimeout = 60 * time.Second

	// DefaultStopGrace is how long a process gets to exit on its own after
	// a leave command before it is forcibly terminated.
	DefaultStopGrace = 5 * time.Second
)

// Handler receives process messages and exit notifications. The orchestrator
// implements it; tests use a recording double.
type Handler interface {
	HandleMessage(inst *bot.Instance, msg bot.Message)
	HandleExit(inst *bot.Instance, status bot.ExitStatus)
}

// Config tunes supervisor timeouts.
type Config struct {
	JoinTimeout time.Duration
	StopGrace   time.Duration
}

func (c *Config) applyDefaults() {
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
	if c.StopGrace <= 0 {
		c.StopGrace = DefaultStopGrace
	}
}

// Supervisor spawns and monitors one external process per bot instance.
type Supervisor struct {
	cfg     Config
	spawn   bot.Spawner
	handler Handler
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewSupervisor creates a supervisor that launches processes with spawn and
// routes their traffic to handler.
func NewSupervisor(cfg Config, spawn bot.Spawner, handler Handler, logger *slog.Logger) *Supervisor {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{cfg: cfg, spawn: spawn, handler: handler, logger: logger}
}

// Start spawns the bot process, sends the join command, and blocks until the
// process reports connected or the join timeout elapses. On failure the
// instance is marked error and the process is terminated.
func (s *Supervisor) Start(ctx context.Context, inst *bot.Instance, params bot.StartParams) error {
	proc, err := s.spawn(ctx, params)
	if err != nil {
		inst.SetError(err.Error())
		return fmt.Errorf("%w: %v", bot.ErrSpawnFailed, err)
	}

	inst.SetProcess(proc)
	inst.SetStatus(bot.StatusJoining)
	s.logger.Info("bot process spawned",
		slog.String("bot_id", inst.ID),
		slog.String("meeting_number", params.MeetingNumber))

	connected := make(chan struct{})
	s.wg.Add(1)
	go s.pump(inst, proc, connected)

	join := bot.JoinCommand{
		MeetingNumber:   params.MeetingNumber,
		MeetingPassword: params.MeetingPassword,
		BotName:         params.BotName,
		Token:           params.Token,
		SampleRate:      params.SampleRate,
		Channels:        params.Channels,
	}
	if err := proc.Send(join); err != nil {
		proc.Kill()
		inst.SetError(err.Error())
		return fmt.Errorf("send join command: %w", err)
	}

	timer := time.NewTimer(s.cfg.JoinTimeout)
	defer timer.Stop()

	select {
	case <-connected:
		return nil
	case <-proc.Done():
		es := proc.ExitStatus()
		inst.SetError(fmt.Sprintf("process exited with code %d before connecting", es.Code))
		return fmt.Errorf("%w: process exited with code %d", bot.ErrSpawnFailed, es.Code)
	case <-timer.C:
		proc.Kill()
		inst.SetError("no connected status within join timeout")
		return fmt.Errorf("%w: after %v", bot.ErrConnectionTimeout, s.cfg.JoinTimeout)
	case <-ctx.Done():
		proc.Kill()
		inst.SetError(ctx.Err().Error())
		return ctx.Err()
	}
}

// Stop runs the graceful-stop protocol: send leave, wait up to the stop
// grace period, then forcibly terminate. Callers flush the audio pipeline
// before invoking Stop.
func (s *Supervisor) Stop(inst *bot.Instance) error {
	proc := inst.Process()
	if proc == nil {
		return nil
	}
	select {
	case <-proc.Done():
		return nil
	default:
	}

	if err := proc.Send(bot.LeaveCommand{Reason: "stop requested"}); err != nil {
		s.logger.Warn("failed to send leave command",
			slog.String("bot_id", inst.ID),
			slog.String("error", err.Error()))
	}

	timer := time.NewTimer(s.cfg.StopGrace)
	defer timer.Stop()

	select {
	case <-proc.Done():
		return nil
	case <-timer.C:
		s.logger.Warn("process did not exit within grace period, terminating",
			slog.String("bot_id", inst.ID),
			slog.Duration("grace", s.cfg.StopGrace))
		if err := proc.Kill(); err != nil {
			return fmt.Errorf("kill process: %w", err)
		}
		<-proc.Done()
		return nil
	}
}

// Wait blocks until every message pump has drained. Used during shutdown.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// pump forwards every inbound envelope to the handler, signals the first
// connected status, and reports the exit once the stream ends.
func (s *Supervisor) pump(inst *bot.Instance, proc bot.Process, connected chan struct{}) {
	defer s.wg.Done()

	signaled := false
	for msg := range proc.Messages() {
		if st, ok := msg.(bot.StatusMessage); ok && !signaled {
			if st.Status == bot.StatusConnected || st.Status == bot.StatusRecording {
				signaled = true
				close(connected)
			}
		}
		s.handler.HandleMessage(inst, msg)
	}

	<-proc.Done()
	// A replacement may already own the instance; only the current handle
	// reports its exit.
	if inst.Process() == proc {
		s.handler.HandleExit(inst, proc.ExitStatus())
	}
}
