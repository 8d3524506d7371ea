package eventsink

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// wsServer records JSON text frames and auth headers from sink connections.
type wsServer struct {
	*httptest.Server

	mu       sync.Mutex
	frames   []map[string]any
	auth     []string
	dialed   int
	dropNext bool
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.dialed++
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		drop := s.dropNext
		s.dropNext = false
		s.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if drop {
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame map[string]any
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			s.mu.Lock()
			s.frames = append(s.frames, frame)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

func (s *wsServer) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestSinkDeliversEvents(t *testing.T) {
	is := is.New(t)
	server := newWSServer(t)

	sink := New(server.url(), "tok-abc", testLogger())
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	sink.Publish(map[string]any{"type": "bot.joined", "bot_id": "bot_1"})
	sink.Publish(map[string]any{"type": "bot.connected", "bot_id": "bot_1"})

	waitFor(t, func() bool { return server.frameCount() == 2 }, "frames delivered")

	server.mu.Lock()
	defer server.mu.Unlock()
	is.Equal(server.frames[0]["type"], "bot.joined")
	is.Equal(server.frames[1]["type"], "bot.connected")
	is.Equal(server.auth[0], "Bearer tok-abc")
}

func TestSinkReconnectsAfterDrop(t *testing.T) {
	is := is.New(t)
	server := newWSServer(t)
	server.mu.Lock()
	server.dropNext = true
	server.mu.Unlock()

	sink := New(server.url(), "", testLogger())
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	// The first connection is dropped by the server; the write fails and the
	// sink dials again.
	waitFor(t, func() bool {
		sink.Publish(map[string]any{"type": "bot.joined"})
		return server.frameCount() >= 1
	}, "delivery after reconnect")

	server.mu.Lock()
	defer server.mu.Unlock()
	is.True(server.dialed >= 2)
	is.Equal(server.auth[0], "")
}

func TestSinkPublishNeverBlocks(t *testing.T) {
	// No Run loop: the queue fills and further publishes are dropped.
	sink := New("ws://127.0.0.1:1/nowhere", "", testLogger())
	defer sink.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueSize+100; i++ {
			sink.Publish(map[string]any{"n": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full queue")
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	is := is.New(t)
	is.Equal(backoffDelay(1), time.Second)
	is.Equal(backoffDelay(2), 2*time.Second)
	is.Equal(backoffDelay(3), 4*time.Second)
	is.Equal(backoffDelay(10), maxBackoff)
	is.Equal(backoffDelay(63), maxBackoff)
}
