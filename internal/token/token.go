// Package token mints the short-lived credentials bot processes present when
// joining a meeting.
package token

import (
	"errors"
	"time"

	"github.com/livekit/protocol/auth"
)

// DefaultTTL bounds a join credential's lifetime. It comfortably covers the
// orchestrator's session timeout.
const DefaultTTL = 2 * time.Hour

// ErrMissingCredentials indicates the signing key pair is not set.
var ErrMissingCredentials = errors.New("meeting api key and secret are required")

// Minter signs join tokens for bot identities.
type Minter struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

// NewMinter creates a minter signing with the given key pair.
func NewMinter(apiKey, apiSecret string) (*Minter, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, ErrMissingCredentials
	}
	return &Minter{apiKey: apiKey, apiSecret: apiSecret, ttl: DefaultTTL}, nil
}

// WithTTL overrides the credential lifetime.
func (m *Minter) WithTTL(ttl time.Duration) *Minter {
	m.ttl = ttl
	return m
}

// MeetingToken mints a join-only credential scoped to one meeting for one
// bot identity.
func (m *Minter) MeetingToken(meetingNumber, identity string) (string, error) {
	at := auth.NewAccessToken(m.apiKey, m.apiSecret)

	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     meetingNumber,
	}

	at.AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(m.ttl)

	return at.ToJWT()
}
