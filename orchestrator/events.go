package orchestrator

import (
	"log/slog"
	"sync"
	"time"
)

// EventType names one domain event published by the orchestrator.
type EventType string

const (
	EventBotJoined            EventType = "bot.joined"
	EventBotConnected         EventType = "bot.connected"
	EventBotLeft              EventType = "bot.left"
	EventBotError             EventType = "bot.error"
	EventBotUnhealthy         EventType = "bot.unhealthy"
	EventAudioChunk           EventType = "audio.chunk"
	EventTranscriptionSegment EventType = "transcription.segment"
	EventParticipantChanged   EventType = "participant.changed"
	EventSpeakerChanged       EventType = "speaker.changed"
)

// Event is one fire-and-forget domain event.
type Event struct {
	Type             EventType      `json:"type"`
	BotID            string         `json:"bot_id"`
	MeetingSessionID string         `json:"meeting_session_id,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	Detail           map[string]any `json:"detail,omitempty"`
}

// emitterQueueSize bounds pending events; beyond it events are dropped.
const emitterQueueSize = 256

// Emitter publishes events to subscribers with at-most-once, best-effort
// delivery. A single dispatch goroutine preserves emission order; a slow or
// panicking subscriber never blocks or rolls back orchestrator state.
type Emitter struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs []func(Event)

	queue chan Event
	once  sync.Once
	done  chan struct{}
}

// NewEmitter creates an emitter and starts its dispatch loop.
func NewEmitter(logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Emitter{
		logger: logger,
		queue:  make(chan Event, emitterQueueSize),
		done:   make(chan struct{}),
	}
	go e.dispatch()
	return e
}

// Subscribe registers a callback for every subsequent event.
func (e *Emitter) Subscribe(fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, fn)
}

// Emit queues an event for delivery. Never blocks; when the queue is full
// the event is dropped.
func (e *Emitter) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case e.queue <- ev:
	default:
		e.logger.Warn("event queue full, dropping event", slog.String("type", string(ev.Type)))
	}
}

// Close stops the dispatch loop after draining queued events.
func (e *Emitter) Close() {
	e.once.Do(func() {
		close(e.queue)
		<-e.done
	})
}

func (e *Emitter) dispatch() {
	defer close(e.done)
	for ev := range e.queue {
		e.mu.RLock()
		subs := make([]func(Event), len(e.subs))
		copy(subs, e.subs)
		e.mu.RUnlock()

		for _, fn := range subs {
			e.deliver(fn, ev)
		}
	}
}

func (e *Emitter) deliver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event subscriber panicked",
				slog.String("type", string(ev.Type)),
				slog.Any("panic", r))
		}
	}()
	fn(ev)
}
