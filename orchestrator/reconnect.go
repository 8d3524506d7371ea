package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundline/meetbot/bot"
)

// scheduleReconnect arms a backoff timer for the instance. Attempt n waits
// RetryDelay * 2^(n-1). Once the retry ceiling is hit the bot is marked
// permanently failed and left for the janitor.
func (o *Orchestrator) scheduleReconnect(inst *bot.Instance) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	if st := inst.Status(); st == bot.StatusLeaving || st == bot.StatusDisconnected {
		return
	}
	if _, pending := o.retryTimers[inst.ID]; pending {
		return
	}

	if inst.RetryCount() >= o.cfg.MaxRetries {
		inst.SetError("reconnection attempts exhausted")
		o.emit(EventBotError, inst, map[string]any{
			"error":   "reconnection attempts exhausted",
			"retries": inst.RetryCount(),
		})
		o.logger.Warn("giving up on bot",
			slog.String("bot_id", inst.ID),
			slog.Int("retries", inst.RetryCount()))
		return
	}

	attempt := inst.BumpRetry()
	delay := o.cfg.RetryDelay * (1 << (attempt - 1))
	o.logger.Info("scheduling reconnect",
		slog.String("bot_id", inst.ID),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))

	o.retryTimers[inst.ID] = time.AfterFunc(delay, func() {
		o.retryBot(inst)
	})
}

// retryBot fires from a reconnect timer and restarts the bot process.
func (o *Orchestrator) retryBot(inst *bot.Instance) {
	o.mu.Lock()
	delete(o.retryTimers, inst.ID)
	closed := o.closed
	o.mu.Unlock()

	if closed {
		return
	}
	if st := inst.Status(); st == bot.StatusLeaving || st == bot.StatusDisconnected {
		return
	}

	// A health-triggered reconnect can find the previous process still
	// running. Terminate it before the replacement takes ownership.
	if proc := inst.Process(); proc != nil {
		select {
		case <-proc.Done():
		default:
			if err := proc.Kill(); err != nil {
				o.logger.Warn("failed to terminate stale process",
					slog.String("bot_id", inst.ID),
					slog.String("error", err.Error()))
			}
		}
	}

	token, err := o.tokens.MeetingToken(inst.MeetingNumber, o.botNameFor(inst))
	if err != nil {
		inst.SetError(err.Error())
		o.emit(EventBotError, inst, map[string]any{"error": err.Error()})
		o.scheduleReconnect(inst)
		return
	}

	if err := o.sup.Start(context.Background(), inst, o.startParams(inst, token)); err != nil {
		o.emit(EventBotError, inst, map[string]any{"error": err.Error()})
		o.scheduleReconnect(inst)
		return
	}

	// Bots whose initial join failed get their joined event on the first
	// successful start.
	o.announce(inst)
	o.logger.Info("bot reconnected",
		slog.String("bot_id", inst.ID),
		slog.Int("attempt", inst.RetryCount()))
}

// cancelRetry stops any pending reconnect timer for the bot.
func (o *Orchestrator) cancelRetry(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if timer, ok := o.retryTimers[id]; ok {
		timer.Stop()
		delete(o.retryTimers, id)
	}
}
