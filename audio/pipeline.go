package audio

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/soundline/meetbot/bot"
	"github.com/soundline/meetbot/stt"
)

const (
	// DefaultFlushInterval is how often each bot's buffer is drained.
	DefaultFlushInterval = 5 * time.Second

	// DefaultMinFlushBytes is the threshold below which a drained buffer is
	// discarded instead of wasting a transcription call.
	DefaultMinFlushBytes = 1000

	// DefaultTranscribeTimeout bounds one transcription network call.
	DefaultTranscribeTimeout = 30 * time.Second
)

// PipelineConfig tunes the flush behavior.
type PipelineConfig struct {
	FlushInterval     time.Duration
	MinFlushBytes     int
	TranscribeTimeout time.Duration
	Format            Format
}

func (c *PipelineConfig) applyDefaults() {
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MinFlushBytes <= 0 {
		c.MinFlushBytes = DefaultMinFlushBytes
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = DefaultTranscribeTimeout
	}
	if c.Format.SampleRate == 0 {
		c.Format = DefaultFormat
	}
}

// Pipeline drains bot audio buffers into transcription requests. Each
// watched bot owns its own flush ticker so a slow transcription call never
// blocks other bots.
type Pipeline struct {
	cfg       PipelineConfig
	stt       stt.Transcriber
	logger    *slog.Logger
	onSegment func(inst *bot.Instance, seg bot.TranscriptSegment)

	mu      sync.Mutex
	watches map[string]chan struct{}
	wg      sync.WaitGroup
}

// NewPipeline creates a pipeline. onSegment is invoked after a segment has
// been appended to the instance; it may be nil.
func NewPipeline(cfg PipelineConfig, transcriber stt.Transcriber, logger *slog.Logger, onSegment func(*bot.Instance, bot.TranscriptSegment)) *Pipeline {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		stt:       transcriber,
		logger:    logger,
		onSegment: onSegment,
		watches:   make(map[string]chan struct{}),
	}
}

// Watch starts the periodic flush timer for the given instance. Watching an
// already-watched bot is a no-op.
func (p *Pipeline) Watch(inst *bot.Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.watches[inst.ID]; ok {
		return
	}
	stop := make(chan struct{})
	p.watches[inst.ID] = stop

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Flush(context.Background(), inst)
			case <-stop:
				return
			}
		}
	}()
}

// Unwatch cancels the flush timer for the given bot ID.
func (p *Pipeline) Unwatch(botID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stop, ok := p.watches[botID]; ok {
		close(stop)
		delete(p.watches, botID)
	}
}

// Close cancels every flush timer and waits for in-flight flushes.
func (p *Pipeline) Close() {
	p.mu.Lock()
	for id, stop := range p.watches {
		close(stop)
		delete(p.watches, id)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Flush drains the instance buffer once. The buffer is emptied synchronously
// before any network call, so a failed transcription never replays audio.
// Transcription failures are logged and counted, never propagated.
func (p *Pipeline) Flush(ctx context.Context, inst *bot.Instance) {
	pcm := inst.DrainAudio()
	if len(pcm) < p.cfg.MinFlushBytes {
		return
	}

	duration := p.cfg.Format.Duration(len(pcm))
	wavData := EncodeWAV(pcm, p.cfg.Format)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
	defer cancel()

	result, err := p.stt.Transcribe(callCtx, wavData)
	if err != nil {
		inst.RecordError()
		p.logger.Error("transcription failed",
			slog.String("bot_id", inst.ID),
			slog.Int("bytes", len(pcm)),
			slog.String("error", err.Error()))
		return
	}
	if result.Text == "" {
		return
	}

	now := time.Now()
	speaker := inst.Speaker()
	seg := bot.TranscriptSegment{
		Text:        result.Text,
		StartTime:   now.Add(-duration),
		EndTime:     now,
		SpeakerName: speaker.Name,
		SpeakerID:   speaker.ID,
	}
	if result.HasLogprob {
		seg.Confidence = math.Exp(result.AvgLogprob)
	}

	inst.AppendSegment(seg)
	p.logger.Debug("transcript segment appended",
		slog.String("bot_id", inst.ID),
		slog.Duration("audio", duration),
		slog.Int("chars", len(result.Text)))

	if p.onSegment != nil {
		p.onSegment(inst, seg)
	}
}
