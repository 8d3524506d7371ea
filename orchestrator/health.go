package orchestrator

import (
	"log/slog"
	"time"

	"github.com/soundline/meetbot/bot"
)

// HealthStatus is one bot's entry in a health report.
type HealthStatus struct {
	BotID            string        `json:"bot_id"`
	MeetingSessionID string        `json:"meeting_session_id"`
	Status           bot.Status    `json:"status"`
	Healthy          bool          `json:"healthy"`
	Uptime           time.Duration `json:"uptime"`
	LastHealthCheck  time.Time     `json:"last_health_check"`
	Stats            bot.Stats     `json:"stats"`
}

// healthLoop scans all tracked bots on the configured interval.
func (o *Orchestrator) healthLoop() {
	defer o.bg.Done()
	ticker := time.NewTicker(o.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.checkHealth()
		case <-o.stopCh:
			return
		}
	}
}

// checkHealth flags bots that failed, stopped signaling, or outlived their
// session and hands them to the reconnect path when enabled. Error-status
// bots stay in scope until their retries run out; after that the janitor
// owns them.
func (o *Orchestrator) checkHealth() {
	now := time.Now()
	for _, inst := range o.registry.list() {
		st := inst.Status()
		if st == bot.StatusLeaving || st == bot.StatusDisconnected {
			continue
		}
		if st == bot.StatusError && inst.RetryCount() >= o.cfg.MaxRetries {
			continue
		}
		if o.healthy(inst, now) {
			continue
		}

		o.logger.Warn("bot unhealthy",
			slog.String("bot_id", inst.ID),
			slog.String("status", st.String()),
			slog.Duration("since_health", now.Sub(inst.LastHealthCheck())),
			slog.Duration("uptime", now.Sub(inst.StartTime())))
		o.emit(EventBotUnhealthy, inst, map[string]any{
			"status":       st.String(),
			"since_health": now.Sub(inst.LastHealthCheck()).String(),
		})

		if o.cfg.AutoReconnect {
			o.scheduleReconnect(inst)
		}
	}
}

// healthy reports whether the instance still counts as alive: it is not in
// an error state, signaled within twice the check interval, and has not
// outlived the session timeout.
func (o *Orchestrator) healthy(inst *bot.Instance, now time.Time) bool {
	if inst.Status() == bot.StatusError {
		return false
	}
	if now.Sub(inst.LastHealthCheck()) > 2*o.cfg.HealthCheckInterval {
		return false
	}
	if now.Sub(inst.StartTime()) > o.cfg.SessionTimeout {
		return false
	}
	return true
}

// GetHealthStatus reports the health of every tracked bot.
func (o *Orchestrator) GetHealthStatus() []HealthStatus {
	now := time.Now()
	instances := o.registry.list()
	out := make([]HealthStatus, 0, len(instances))
	for _, inst := range instances {
		out = append(out, HealthStatus{
			BotID:            inst.ID,
			MeetingSessionID: inst.MeetingSessionID,
			Status:           inst.Status(),
			Healthy:          o.healthy(inst, now),
			Uptime:           now.Sub(inst.StartTime()),
			LastHealthCheck:  inst.LastHealthCheck(),
			Stats:            inst.StatsSnapshot(),
		})
	}
	return out
}
