package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestEmitterPreservesOrder(t *testing.T) {
	is := is.New(t)
	e := NewEmitter(testLogger())
	defer e.Close()

	var mu sync.Mutex
	var got []EventType
	e.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
	})

	want := []EventType{EventBotJoined, EventBotConnected, EventAudioChunk, EventBotLeft}
	for _, tp := range want {
		e.Emit(Event{Type: tp, BotID: "bot_1"})
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	}, "all events delivered")

	mu.Lock()
	defer mu.Unlock()
	is.Equal(got, want)
}

func TestEmitterStampsTimestamp(t *testing.T) {
	is := is.New(t)
	e := NewEmitter(testLogger())
	defer e.Close()

	var mu sync.Mutex
	var got Event
	e.Subscribe(func(ev Event) {
		mu.Lock()
		got = ev
		mu.Unlock()
	})

	before := time.Now()
	e.Emit(Event{Type: EventBotJoined, BotID: "bot_1"})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got.Type == EventBotJoined
	}, "event delivered")

	mu.Lock()
	defer mu.Unlock()
	is.True(!got.Timestamp.Before(before))
}

func TestEmitterSurvivesPanickingSubscriber(t *testing.T) {
	is := is.New(t)
	e := NewEmitter(testLogger())
	defer e.Close()

	var mu sync.Mutex
	delivered := 0
	e.Subscribe(func(Event) { panic("bad subscriber") })
	e.Subscribe(func(Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	e.Emit(Event{Type: EventBotJoined})
	e.Emit(Event{Type: EventBotLeft})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 2
	}, "delivery past panics")
	is.Equal(delivered, 2)
}

func TestEmitterCloseIsIdempotent(t *testing.T) {
	e := NewEmitter(testLogger())
	e.Close()
	e.Close()
}
