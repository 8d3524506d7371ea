package bot

// Status represents the lifecycle state of a bot instance.
type Status string

const (
	// StatusInitializing is the state of a freshly allocated instance
	// before its process has been spawned.
	StatusInitializing Status = "initializing"

	// StatusJoining means the process spawn was accepted and the bot is
	// connecting to the meeting.
	StatusJoining Status = "joining"

	// StatusConnected means the bot is in the meeting and audio flows.
	StatusConnected Status = "connected"

	// StatusRecording is a refinement of connected; both count as active.
	StatusRecording Status = "recording"

	// StatusLeaving means an explicit stop was requested.
	StatusLeaving Status = "leaving"

	// StatusDisconnected means the process exited gracefully.
	StatusDisconnected Status = "disconnected"

	// StatusError means the process failed or reported a fatal error.
	StatusError Status = "error"

	// StatusReconnecting means a backoff retry is pending or in flight.
	StatusReconnecting Status = "reconnecting"
)

// Active reports whether the status counts toward the at-most-one-active-bot
// invariant per meeting session.
func (s Status) Active() bool {
	switch s {
	case StatusJoining, StatusConnected, StatusRecording, StatusReconnecting:
		return true
	}
	return false
}

// Terminal reports whether the status is eligible for janitor cleanup.
func (s Status) Terminal() bool {
	return s == StatusDisconnected || s == StatusError
}

func (s Status) String() string {
	return string(s)
}
