package orchestrator

import (
	"log/slog"
	"time"
)

// janitorLoop periodically purges terminal bots that nobody stopped
// explicitly, so registry entries and buffers do not accumulate forever.
func (o *Orchestrator) janitorLoop() {
	defer o.bg.Done()
	ticker := time.NewTicker(o.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.cleanup()
		case <-o.stopCh:
			return
		}
	}
}

// cleanup removes terminal instances whose last activity is older than the
// stale threshold, killing any process still lingering behind them.
func (o *Orchestrator) cleanup() {
	now := time.Now()
	for _, inst := range o.registry.list() {
		if !inst.Status().Terminal() {
			continue
		}
		if now.Sub(inst.LastHealthCheck()) < o.cfg.StaleThreshold {
			continue
		}

		o.cancelRetry(inst.ID)
		o.pipeline.Unwatch(inst.ID)

		if proc := inst.Process(); proc != nil {
			select {
			case <-proc.Done():
			default:
				if err := proc.Kill(); err != nil {
					o.logger.Warn("janitor kill failed",
						slog.String("bot_id", inst.ID),
						slog.String("error", err.Error()))
				}
			}
		}

		o.registry.remove(inst)
		o.logger.Info("purged stale bot",
			slog.String("bot_id", inst.ID),
			slog.String("status", inst.Status().String()),
			slog.Duration("idle", now.Sub(inst.LastHealthCheck())))
	}
}
