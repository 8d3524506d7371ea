package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/matryer/is"
)

func TestNewMinterRequiresCredentials(t *testing.T) {
	is := is.New(t)

	_, err := NewMinter("", "secret")
	is.True(errors.Is(err, ErrMissingCredentials))

	_, err = NewMinter("key", "")
	is.True(errors.Is(err, ErrMissingCredentials))

	m, err := NewMinter("key", "secretsecretsecretsecretsecret12")
	is.NoErr(err)
	is.True(m != nil)
}

func TestMeetingTokenGrants(t *testing.T) {
	is := is.New(t)

	const (
		apiKey    = "APIxyz"
		apiSecret = "secretsecretsecretsecretsecret12"
	)
	m, err := NewMinter(apiKey, apiSecret)
	is.NoErr(err)

	jwt, err := m.MeetingToken("123456", "meetbot")
	is.NoErr(err)
	is.Equal(strings.Count(jwt, "."), 2)

	v, err := auth.ParseAPIToken(jwt)
	is.NoErr(err)
	is.Equal(v.APIKey(), apiKey)

	claims, err := v.Verify(apiSecret)
	is.NoErr(err)
	is.Equal(claims.Identity, "meetbot")
	is.True(claims.Video.RoomJoin)
	is.Equal(claims.Video.Room, "123456")
}

func TestMeetingTokenTTL(t *testing.T) {
	is := is.New(t)

	m, err := NewMinter("APIxyz", "secretsecretsecretsecretsecret12")
	is.NoErr(err)
	m.WithTTL(30 * time.Minute)

	jwt, err := m.MeetingToken("123456", "meetbot")
	is.NoErr(err)

	parts := strings.Split(jwt, ".")
	is.Equal(len(parts), 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	is.NoErr(err)

	var claims struct {
		Exp int64 `json:"exp"`
	}
	is.NoErr(json.Unmarshal(payload, &claims))

	expires := time.Unix(claims.Exp, 0)
	want := time.Now().Add(30 * time.Minute)
	diff := expires.Sub(want)
	if diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expiry %v not within a minute of %v", expires, want)
	}
}
