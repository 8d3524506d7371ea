package bot

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"status", StatusMessage{Status: StatusConnected, Detail: "in meeting"}},
		{"audio", AudioMessage{Data: []byte{1, 2, 3}, TimestampMs: 42, DurationMs: 100, SampleRate: 16000, Channels: 1}},
		{"participant", ParticipantMessage{Count: 3, Name: "ada", Action: "joined"}},
		{"speaker", SpeakerMessage{Name: "ada", ID: "p-1"}},
		{"health", HealthMessage{TimestampMs: 99}},
		{"error", ErrorMessage{Message: "capture failed", Fatal: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)

			data, err := EncodeMessage(tt.msg)
			is.NoErr(err)

			decoded, err := DecodeMessage(data)
			is.NoErr(err)
			is.Equal(decoded, tt.msg) // envelope must round-trip losslessly
		})
	}
}

func TestDecodeMessageUnknownType(t *testing.T) {
	is := is.New(t)

	_, err := DecodeMessage([]byte(`{"type":"bogus","payload":{}}`))
	is.True(err != nil) // unknown envelope types must be rejected
}

func TestDecodeMessageBadJSON(t *testing.T) {
	is := is.New(t)

	_, err := DecodeMessage([]byte(`{not json`))
	is.True(err != nil)
}

func TestAudioMessageDuration(t *testing.T) {
	is := is.New(t)

	m := AudioMessage{DurationMs: 250}
	is.Equal(m.Duration(), 250*time.Millisecond)
}

func TestCommandRoundTrip(t *testing.T) {
	is := is.New(t)

	join := JoinCommand{
		MeetingNumber: "123456",
		BotName:       "scribe",
		Token:         "jwt",
		SampleRate:    16000,
		Channels:      1,
	}

	data, err := EncodeCommand(join)
	is.NoErr(err)

	decoded, err := DecodeCommand(data)
	is.NoErr(err)
	is.Equal(decoded, join)

	data, err = EncodeCommand(LeaveCommand{Reason: "stop requested"})
	is.NoErr(err)

	decoded, err = DecodeCommand(data)
	is.NoErr(err)
	is.Equal(decoded, LeaveCommand{Reason: "stop requested"})
}
