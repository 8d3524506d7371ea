// Package orchestrator coordinates the lifecycle of meeting bots: joining
// with rate and capacity limits, supervising their processes, draining their
// audio into transcription, monitoring health, reconnecting with backoff,
// and cleaning up stale instances.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/soundline/meetbot/audio"
	"github.com/soundline/meetbot/bot"
	"github.com/soundline/meetbot/internal/process"
	"github.com/soundline/meetbot/stt"
)

// TokenMinter issues the short-lived credential a bot process joins with.
type TokenMinter interface {
	MeetingToken(meetingNumber, identity string) (string, error)
}

// Deps are the external collaborators injected into the orchestrator.
type Deps struct {
	Spawn  bot.Spawner
	STT    stt.Transcriber
	Tokens TokenMinter
	Logger *slog.Logger
}

// Orchestrator is the top-level entry point managing all bot instances.
type Orchestrator struct {
	cfg        Config
	logger     *slog.Logger
	tokens     TokenMinter
	configured bool

	registry *registry
	emitter  *Emitter
	sup      *process.Supervisor
	pipeline *audio.Pipeline

	mu          sync.Mutex
	lastJoin    map[string]time.Time // meeting number -> last accepted join
	retryTimers map[string]*time.Timer
	closed      bool

	stopCh chan struct{}
	bg     sync.WaitGroup
}

// New creates an orchestrator and starts its background monitors.
func New(cfg Config, deps Deps) *Orchestrator {
	cfg.applyDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		cfg:         cfg,
		logger:      logger,
		tokens:      deps.Tokens,
		configured:  deps.Spawn != nil && deps.STT != nil && deps.Tokens != nil,
		registry:    newRegistry(),
		emitter:     NewEmitter(logger),
		lastJoin:    make(map[string]time.Time),
		retryTimers: make(map[string]*time.Timer),
		stopCh:      make(chan struct{}),
	}

	o.sup = process.NewSupervisor(process.Config{
		JoinTimeout: cfg.JoinTimeout,
		StopGrace:   cfg.StopGrace,
	}, deps.Spawn, o, logger)

	o.pipeline = audio.NewPipeline(audio.PipelineConfig{
		FlushInterval:     cfg.FlushInterval,
		MinFlushBytes:     cfg.MinFlushBytes,
		TranscribeTimeout: cfg.TranscribeTimeout,
		Format:            cfg.Format,
	}, deps.STT, logger, o.onSegment)

	o.bg.Add(2)
	go o.healthLoop()
	go o.janitorLoop()

	return o
}

// IsConfigured reports whether all required collaborators are present.
func (o *Orchestrator) IsConfigured() bool {
	return o.configured
}

// Subscribe registers a callback for all domain events.
func (o *Orchestrator) Subscribe(fn func(Event)) {
	o.emitter.Subscribe(fn)
}

// JoinMeeting validates the request, applies rate and capacity limits,
// deduplicates per session, then spawns the bot process and starts its audio
// pipeline. It blocks until the bot reports connected or the join fails.
func (o *Orchestrator) JoinMeeting(ctx context.Context, req bot.JoinRequest) (*bot.Instance, error) {
	if !o.configured {
		return nil, fmt.Errorf("%w: missing credentials", ErrNotConfigured)
	}
	if req.MeetingSessionID == "" || req.MeetingNumber == "" {
		return nil, fmt.Errorf("%w: meeting session id and number are required", ErrInvalidRequest)
	}

	inst, created, err := o.admit(req)
	if err != nil {
		return nil, err
	}
	if !created {
		// Dedup hit: an active bot already covers this session.
		return inst, nil
	}

	token, err := o.tokens.MeetingToken(req.MeetingNumber, o.botName(req))
	if err != nil {
		inst.SetError(err.Error())
		o.emit(EventBotError, inst, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("%w: mint meeting token: %v", ErrNotConfigured, err)
	}
	o.pipeline.Watch(inst)

	if err := o.sup.Start(ctx, inst, o.startParams(inst, token)); err != nil {
		// The supervisor already marked the instance failed.
		o.emit(EventBotError, inst, map[string]any{"error": err.Error()})
		if o.cfg.AutoReconnect {
			o.scheduleReconnect(inst)
		}
		return nil, err
	}

	o.announce(inst)
	o.logger.Info("bot joined meeting",
		slog.String("bot_id", inst.ID),
		slog.String("meeting_session", inst.MeetingSessionID),
		slog.String("meeting_number", inst.MeetingNumber))
	return inst, nil
}

// admit runs the synchronous join gate: rate limit, capacity cap, session
// dedup, registration. On a dedup hit it returns the existing instance with
// created false.
func (o *Orchestrator) admit(req bot.JoinRequest) (*bot.Instance, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, false, ErrShuttingDown
	}
	if last, ok := o.lastJoin[req.MeetingNumber]; ok && time.Since(last) < o.cfg.RateLimitWindow {
		return nil, false, fmt.Errorf("%w: meeting %s joined %v ago", ErrRateLimited, req.MeetingNumber, time.Since(last).Round(time.Millisecond))
	}
	if o.registry.activeCount() >= o.cfg.MaxConcurrentBots {
		return nil, false, fmt.Errorf("%w: %d bots active", ErrCapacityExceeded, o.cfg.MaxConcurrentBots)
	}

	inst, inserted := o.registry.insert(bot.NewInstance(req))
	if !inserted {
		return inst, false, nil
	}
	o.lastJoin[req.MeetingNumber] = time.Now()
	return inst, true, nil
}

// StopBot is the cooperative cancellation path: it cancels any pending
// reconnection, runs the final audio flush, executes the graceful-stop
// protocol, and removes the instance from the registry.
func (o *Orchestrator) StopBot(ctx context.Context, id string) error {
	inst := o.registry.get(id)
	if inst == nil {
		return fmt.Errorf("%w: %s", ErrBotNotFound, id)
	}

	o.cancelRetry(id)
	inst.SetStatus(bot.StatusLeaving)

	o.pipeline.Flush(ctx, inst)
	o.pipeline.Unwatch(id)

	if err := o.sup.Stop(inst); err != nil {
		o.logger.Warn("stop protocol failed",
			slog.String("bot_id", id),
			slog.String("error", err.Error()))
	}

	inst.SetStatus(bot.StatusDisconnected)
	o.registry.remove(inst)
	o.emit(EventBotLeft, inst, nil)
	o.logger.Info("bot stopped", slog.String("bot_id", id))
	return nil
}

// GetBot returns the tracked instance by ID, or nil.
func (o *Orchestrator) GetBot(id string) *bot.Instance {
	return o.registry.get(id)
}

// GetBotByMeetingSession returns the tracked instance for the session, or nil.
func (o *Orchestrator) GetBotByMeetingSession(sessionID string) *bot.Instance {
	return o.registry.getBySession(sessionID)
}

// GetActiveBots returns all instances in an active state.
func (o *Orchestrator) GetActiveBots() []*bot.Instance {
	var out []*bot.Instance
	for _, inst := range o.registry.list() {
		if inst.Status().Active() {
			out = append(out, inst)
		}
	}
	return out
}

// GetTranscript returns the segments recorded so far for the bot.
func (o *Orchestrator) GetTranscript(id string) ([]bot.TranscriptSegment, error) {
	inst := o.registry.get(id)
	if inst == nil {
		return nil, fmt.Errorf("%w: %s", ErrBotNotFound, id)
	}
	return inst.Transcript(), nil
}

// GetFullTranscriptText returns the bot's transcript joined into one string.
func (o *Orchestrator) GetFullTranscriptText(id string) (string, error) {
	segments, err := o.GetTranscript(id)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, strings.TrimSpace(seg.Text))
	}
	return strings.Join(parts, " "), nil
}

// Shutdown cancels all background timers first, then stops every tracked
// bot concurrently and waits for all of them.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.stopCh)
	for id, timer := range o.retryTimers {
		timer.Stop()
		delete(o.retryTimers, id)
	}
	o.mu.Unlock()

	o.bg.Wait()
	o.pipeline.Close()

	instances := o.registry.list()
	o.logger.Info("shutting down", slog.Int("bots", len(instances)))

	var wg sync.WaitGroup
	for _, inst := range instances {
		wg.Add(1)
		go func(inst *bot.Instance) {
			defer wg.Done()
			if err := o.StopBot(ctx, inst.ID); err != nil {
				o.logger.Warn("shutdown stop failed",
					slog.String("bot_id", inst.ID),
					slog.String("error", err.Error()))
			}
		}(inst)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	o.sup.Wait()
	o.emitter.Close()
	return nil
}

// HandleMessage routes one typed envelope from a bot process. It runs on the
// bot's own pump goroutine, so per-bot mutations are naturally serialized.
func (o *Orchestrator) HandleMessage(inst *bot.Instance, msg bot.Message) {
	switch m := msg.(type) {
	case bot.StatusMessage:
		o.handleStatus(inst, m)
	case bot.AudioMessage:
		inst.AppendAudio(m.Data, m.Duration(), o.cfg.MaxBufferBytes)
		o.emit(EventAudioChunk, inst, map[string]any{
			"bytes":       len(m.Data),
			"duration_ms": m.DurationMs,
		})
	case bot.ParticipantMessage:
		inst.SetParticipantCount(m.Count)
		o.emit(EventParticipantChanged, inst, map[string]any{
			"count":  m.Count,
			"name":   m.Name,
			"action": m.Action,
		})
	case bot.SpeakerMessage:
		inst.SetSpeaker(bot.Speaker{Name: m.Name, ID: m.ID})
		o.emit(EventSpeakerChanged, inst, map[string]any{
			"name": m.Name,
			"id":   m.ID,
		})
	case bot.HealthMessage:
		inst.TouchHealth()
	case bot.ErrorMessage:
		inst.SetError(m.Message)
		o.emit(EventBotError, inst, map[string]any{"error": m.Message})
	default:
		o.logger.Warn("unhandled process message",
			slog.String("bot_id", inst.ID),
			slog.String("type", string(msg.MessageKind())))
	}
}

func (o *Orchestrator) handleStatus(inst *bot.Instance, m bot.StatusMessage) {
	switch m.Status {
	case bot.StatusConnected, bot.StatusRecording:
		prev := inst.Status()
		inst.SetStatus(m.Status)
		inst.TouchHealth()
		if prev != bot.StatusConnected && prev != bot.StatusRecording {
			if inst.NoteConnected() {
				o.emit(EventBotConnected, inst, nil)
			}
		}
	case bot.StatusJoining, bot.StatusLeaving, bot.StatusDisconnected:
		inst.SetStatus(m.Status)
	default:
		o.logger.Warn("unexpected status from process",
			slog.String("bot_id", inst.ID),
			slog.String("status", m.Status.String()))
	}
}

// HandleExit routes a process exit. Intentional stops are finalized by the
// stop path; anything else is an unexpected exit that may trigger
// reconnection.
func (o *Orchestrator) HandleExit(inst *bot.Instance, status bot.ExitStatus) {
	if status.Killed {
		// Deliberate termination by the stop path, a reconnect, or the
		// janitor. The initiator owns any follow-up.
		return
	}
	st := inst.Status()
	if st == bot.StatusLeaving || st == bot.StatusDisconnected || st == bot.StatusReconnecting {
		return
	}

	if status.Code == 0 {
		// A clean exit means the bot left on its own terms, usually because
		// the meeting ended. No reconnection.
		inst.SetStatus(bot.StatusDisconnected)
		o.logger.Info("bot process exited", slog.String("bot_id", inst.ID))
		return
	}

	inst.SetError(fmt.Sprintf("process exited with code %d", status.Code))
	o.emit(EventBotError, inst, map[string]any{"exit_code": status.Code})
	o.logger.Warn("bot process exited unexpectedly",
		slog.String("bot_id", inst.ID),
		slog.Int("exit_code", status.Code))

	if o.cfg.AutoReconnect {
		o.scheduleReconnect(inst)
	}
}

// announce publishes the joined event for a successfully started bot, plus
// any connect transition deferred by NoteConnected. Joined is enqueued
// before the announced flag flips, so a concurrent connect transition can
// never be published ahead of it.
func (o *Orchestrator) announce(inst *bot.Instance) {
	if inst.Announced() {
		return
	}
	o.emit(EventBotJoined, inst, nil)
	if inst.Announce() {
		o.emit(EventBotConnected, inst, nil)
	}
}

// onSegment fires after the pipeline appends a transcript segment.
func (o *Orchestrator) onSegment(inst *bot.Instance, seg bot.TranscriptSegment) {
	o.emit(EventTranscriptionSegment, inst, map[string]any{
		"text":       seg.Text,
		"confidence": seg.Confidence,
		"speaker":    seg.SpeakerName,
	})
}

func (o *Orchestrator) emit(t EventType, inst *bot.Instance, detail map[string]any) {
	o.emitter.Emit(Event{
		Type:             t,
		BotID:            inst.ID,
		MeetingSessionID: inst.MeetingSessionID,
		Detail:           detail,
	})
}

func (o *Orchestrator) startParams(inst *bot.Instance, token string) bot.StartParams {
	return bot.StartParams{
		BotID:           inst.ID,
		MeetingNumber:   inst.MeetingNumber,
		MeetingPassword: inst.MeetingPassword,
		BotName:         o.botNameFor(inst),
		Token:           token,
		SampleRate:      o.cfg.Format.SampleRate,
		Channels:        o.cfg.Format.Channels,
	}
}

func (o *Orchestrator) botName(req bot.JoinRequest) string {
	if req.BotName != "" {
		return req.BotName
	}
	return o.cfg.BotName
}

func (o *Orchestrator) botNameFor(inst *bot.Instance) string {
	if inst.BotName != "" {
		return inst.BotName
	}
	return o.cfg.BotName
}
