// Package eventsink relays domain events to an external websocket endpoint.
// Delivery is best effort: a slow, down, or flapping endpoint never blocks
// the caller, and events emitted while disconnected are dropped once the
// local queue fills.
package eventsink

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	queueSize        = 512
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
	maxBackoff       = 30 * time.Second
)

// Sink forwards published values as JSON text frames to one websocket URL.
type Sink struct {
	url    string
	token  string
	logger *slog.Logger

	queue chan any
	once  sync.Once
	done  chan struct{}
}

// New creates a sink targeting url. token, when non-empty, is sent as a
// bearer Authorization header during the handshake.
func New(url, token string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		url:    url,
		token:  token,
		logger: logger,
		queue:  make(chan any, queueSize),
		done:   make(chan struct{}),
	}
}

// Publish queues one value for delivery. Never blocks; when the queue is
// full the value is dropped.
func (s *Sink) Publish(v any) {
	select {
	case s.queue <- v:
	default:
		s.logger.Warn("event sink queue full, dropping event")
	}
}

// Close stops the relay. Queued events that were not yet written are lost.
func (s *Sink) Close() {
	s.once.Do(func() { close(s.done) })
}

// Run connects and forwards events until ctx is canceled or Close is called.
// Connection failures trigger exponential backoff reconnects.
func (s *Sink) Run(ctx context.Context) {
	attempt := 0
	for {
		conn, err := s.dial(ctx)
		if err != nil {
			attempt++
			delay := backoffDelay(attempt)
			s.logger.Warn("event sink connect failed",
				slog.String("url", s.url),
				slog.Int("attempt", attempt),
				slog.Duration("retry_in", delay),
				slog.String("error", err.Error()))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}

		attempt = 0
		s.logger.Info("event sink connected", slog.String("url", s.url))
		if stop := s.writeLoop(ctx, conn); stop {
			return
		}
	}
}

func (s *Sink) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	var header http.Header
	if s.token != "" {
		header = http.Header{"Authorization": {"Bearer " + s.token}}
	}
	conn, resp, err := dialer.DialContext(ctx, s.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// writeLoop drains the queue onto conn until a write fails or shutdown is
// requested. Returns true when the sink should stop instead of reconnecting.
func (s *Sink) writeLoop(ctx context.Context, conn *websocket.Conn) bool {
	defer conn.Close()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case v := <-s.queue:
			data, err := json.Marshal(v)
			if err != nil {
				s.logger.Warn("event sink marshal failed", slog.String("error", err.Error()))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("event sink write failed, reconnecting",
					slog.String("error", err.Error()))
				return false
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Warn("event sink ping failed, reconnecting",
					slog.String("error", err.Error()))
				return false
			}
		case <-ctx.Done():
			return true
		case <-s.done:
			return true
		}
	}
}

// backoffDelay doubles per attempt starting at one second, capped at
// maxBackoff.
func backoffDelay(attempt int) time.Duration {
	delay := time.Second * time.Duration(1<<(attempt-1))
	if delay > maxBackoff || delay <= 0 {
		return maxBackoff
	}
	return delay
}
