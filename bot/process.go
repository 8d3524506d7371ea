package bot

import (
	"context"
	"encoding/json"
	"fmt"
)

// CommandType identifies one kind of envelope sent to the bot process.
type CommandType string

const (
	CommandJoin  CommandType = "join"
	CommandLeave CommandType = "leave"
)

// Command is one typed envelope sent to the bot process.
type Command interface {
	CommandKind() CommandType
}

// JoinCommand instructs the process to join a meeting.
type JoinCommand struct {
	MeetingNumber   string `json:"meeting_number"`
	MeetingPassword string `json:"meeting_password,omitempty"`
	BotName         string `json:"bot_name,omitempty"`
	Token           string `json:"token"`
	SampleRate      int    `json:"sample_rate"`
	Channels        int    `json:"channels"`
}

func (JoinCommand) CommandKind() CommandType { return CommandJoin }

// LeaveCommand instructs the process to leave the meeting and exit.
type LeaveCommand struct {
	Reason string `json:"reason,omitempty"`
}

func (LeaveCommand) CommandKind() CommandType { return CommandLeave }

type commandEnvelope struct {
	Type    CommandType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeCommand serializes a command into its wire envelope.
func EncodeCommand(c Command) ([]byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", c.CommandKind(), err)
	}
	return json.Marshal(commandEnvelope{Type: c.CommandKind(), Payload: payload})
}

// DecodeCommand parses one command envelope. Used by process doubles and
// tests; the real bot binary does its own parsing.
func DecodeCommand(data []byte) (Command, error) {
	var env commandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode command envelope: %w", err)
	}
	switch env.Type {
	case CommandJoin:
		var c JoinCommand
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case CommandLeave:
		var c LeaveCommand
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown command type %q", env.Type)
}

// ExitStatus describes how a bot process ended.
type ExitStatus struct {
	// Code is the process exit code; -1 if it was killed.
	Code int

	// Killed is true if the supervisor forcibly terminated the process.
	Killed bool
}

// Process is the capability surface for one external bot process. The real
// implementation wraps an OS process speaking JSON lines over stdio; tests
// use a deterministic double.
type Process interface {
	// Send writes a command to the process.
	Send(cmd Command) error

	// Messages returns the inbound envelope stream. The channel is closed
	// when the process stops producing output.
	Messages() <-chan Message

	// Done is closed once the process has exited.
	Done() <-chan struct{}

	// ExitStatus is valid only after Done is closed.
	ExitStatus() ExitStatus

	// Kill forcibly terminates the process.
	Kill() error
}

// StartParams carries everything needed to launch one bot process.
type StartParams struct {
	BotID           string
	MeetingNumber   string
	MeetingPassword string
	BotName         string
	Token           string
	SampleRate      int
	Channels        int
}

// Spawner launches a bot process. The production spawner execs the platform
// SDK binary; tests substitute a fake.
type Spawner func(ctx context.Context, params StartParams) (Process, error)
