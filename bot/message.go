package bot

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies one kind of envelope on the supervisor IPC channel.
type MessageType string

const (
	MessageStatus      MessageType = "status"
	MessageAudio       MessageType = "audio"
	MessageParticipant MessageType = "participant"
	MessageSpeaker     MessageType = "speaker"
	MessageHealth      MessageType = "health"
	MessageError       MessageType = "error"
)

// Message is one typed envelope received from the bot process. It is a
// sealed sum type: StatusMessage, AudioMessage, ParticipantMessage,
// SpeakerMessage, HealthMessage or ErrorMessage.
type Message interface {
	MessageKind() MessageType
}

// StatusMessage reports a lifecycle transition observed by the process.
type StatusMessage struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (StatusMessage) MessageKind() MessageType { return MessageStatus }

// AudioMessage carries one chunk of raw PCM captured from the meeting.
// Data is base64 on the wire; encoding/json handles the conversion.
type AudioMessage struct {
	Data        []byte `json:"data"`
	TimestampMs int64  `json:"timestamp_ms"`
	DurationMs  int64  `json:"duration_ms"`
	SampleRate  int    `json:"sample_rate"`
	Channels    int    `json:"channels"`
}

func (AudioMessage) MessageKind() MessageType { return MessageAudio }

// Duration returns the chunk duration reported by the process.
func (m AudioMessage) Duration() time.Duration {
	return time.Duration(m.DurationMs) * time.Millisecond
}

// ParticipantMessage reports a change in meeting attendance.
type ParticipantMessage struct {
	Count  int    `json:"count"`
	Name   string `json:"name,omitempty"`
	Action string `json:"action,omitempty"` // "joined" or "left"
}

func (ParticipantMessage) MessageKind() MessageType { return MessageParticipant }

// SpeakerMessage reports the currently active speaker.
type SpeakerMessage struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

func (SpeakerMessage) MessageKind() MessageType { return MessageSpeaker }

// HealthMessage is a periodic liveness heartbeat from the process.
type HealthMessage struct {
	TimestampMs int64 `json:"timestamp_ms"`
}

func (HealthMessage) MessageKind() MessageType { return MessageHealth }

// ErrorMessage reports an operational failure inside the process.
type ErrorMessage struct {
	Message string `json:"message"`
	Fatal   bool   `json:"fatal,omitempty"`
}

func (ErrorMessage) MessageKind() MessageType { return MessageError }

type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeMessage parses one wire envelope into its concrete message type.
func DecodeMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg Message
	switch env.Type {
	case MessageStatus:
		msg = &StatusMessage{}
	case MessageAudio:
		msg = &AudioMessage{}
	case MessageParticipant:
		msg = &ParticipantMessage{}
	case MessageSpeaker:
		msg = &SpeakerMessage{}
	case MessageHealth:
		msg = &HealthMessage{}
	case MessageError:
		msg = &ErrorMessage{}
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}

	if err := json.Unmarshal(env.Payload, msg); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return deref(msg), nil
}

// EncodeMessage serializes a message into its wire envelope.
func EncodeMessage(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", m.MessageKind(), err)
	}
	return json.Marshal(envelope{Type: m.MessageKind(), Payload: payload})
}

// deref unwraps the pointer used for unmarshaling so callers can type-switch
// on value types.
func deref(m Message) Message {
	switch v := m.(type) {
	case *StatusMessage:
		return *v
	case *AudioMessage:
		return *v
	case *ParticipantMessage:
		return *v
	case *SpeakerMessage:
		return *v
	case *HealthMessage:
		return *v
	case *ErrorMessage:
		return *v
	}
	return m
}
