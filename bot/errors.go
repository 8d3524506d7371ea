package bot

import "errors"

var (
	// ErrSpawnFailed indicates the bot process could not be launched or
	// died before reporting a connection.
	ErrSpawnFailed = errors.New("bot process spawn failed")

	// ErrConnectionTimeout indicates the process did not report a
	// connected status within the join timeout.
	ErrConnectionTimeout = errors.New("bot connection timeout")

	// ErrProcessClosed indicates a command was sent to a process that has
	// already exited.
	ErrProcessClosed = errors.New("bot process closed")
)
