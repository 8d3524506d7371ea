package orchestrator

import "errors"

var (
	// ErrNotConfigured indicates required credentials or configuration are
	// missing; no state is created.
	ErrNotConfigured = errors.New("orchestrator not configured")

	// ErrInvalidRequest indicates a join request is missing required fields.
	ErrInvalidRequest = errors.New("invalid join request")

	// ErrRateLimited indicates a join for the same meeting number happened
	// within the rate-limit window.
	ErrRateLimited = errors.New("join rate limited")

	// ErrCapacityExceeded indicates the active-bot count has reached the
	// configured concurrency cap.
	ErrCapacityExceeded = errors.New("bot capacity exceeded")

	// ErrBotNotFound indicates no tracked bot matches the given ID.
	ErrBotNotFound = errors.New("bot not found")

	// ErrShuttingDown indicates the orchestrator no longer accepts joins.
	ErrShuttingDown = errors.New("orchestrator shutting down")
)
