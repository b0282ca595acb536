package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/FreedomSnow/sinoname/internal/cookie"
	"github.com/FreedomSnow/sinoname/internal/crypto"
	"github.com/FreedomSnow/sinoname/internal/idp"
	"github.com/fxamacker/cbor/v2"
)

// ErrInvalidSession is returned for cookies that fail decoding or
// authentication. Callers should treat it as "not logged in" rather
// than an internal error.
var ErrInvalidSession = errors.New("invalid session")

// User is the identity subset stored in the session and returned to the
// browser. The access token deliberately lives outside this struct so it
// can never leak through a JSON response.
type User struct {
	ID     string `json:"id" cbor:"1,keyasint"`
	Name   string `json:"name" cbor:"2,keyasint"`
	Email  string `json:"email" cbor:"3,keyasint"`
	Avatar string `json:"avatar,omitempty" cbor:"4,keyasint,omitempty"`
}

// Record is the full server-side session state carried in the sealed
// cookie. AccessToken is excluded from JSON so handlers can embed a
// Record without risking token exposure.
type Record struct {
	User        User   `json:"user" cbor:"1,keyasint"`
	AccessToken string `json:"-" cbor:"2,keyasint"`
	// ExpiresAt is unix milliseconds.
	ExpiresAt int64 `json:"expiresAt" cbor:"3,keyasint"`
}

// NewRecord builds a session record from a provider identity and token
// lifetime. The expiry mirrors the provider-reported token lifetime so the
// session dies with the access token.
func NewRecord(identity *idp.Identity, accessToken string, expiry time.Time) Record {
	return Record{
		User: User{
			ID:     identity.Subject,
			Name:   identity.Name,
			Email:  identity.Email,
			Avatar: identity.Picture,
		},
		AccessToken: accessToken,
		ExpiresAt:   expiry.UnixMilli(),
	}
}

// IsExpired reports whether the record is expired at now.
// A record expiring exactly at now is expired.
func (r Record) IsExpired(now time.Time) bool {
	return r.ExpiresAt <= now.UnixMilli()
}

// TTL returns the remaining lifetime at now, or zero if expired.
func (r Record) TTL(now time.Time) time.Duration {
	remaining := time.Duration(r.ExpiresAt-now.UnixMilli()) * time.Millisecond
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Codec seals session records into cookie values and back. The sealed
// value is bound to the session cookie name as AAD so a value lifted from
// another sealed context cannot be replayed as a session.
type Codec struct {
	sealer *crypto.Sealer
}

// NewCodec creates a session codec around the given sealer.
func NewCodec(sealer *crypto.Sealer) *Codec {
	return &Codec{sealer: sealer}
}

func sessionAAD() []byte {
	return []byte(cookie.SessionCookie)
}

// Encode serializes and seals a record into a cookie-safe string.
func (c *Codec) Encode(record Record) (string, error) {
	payload, err := cbor.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	sealed, err := c.sealer.Seal(payload, sessionAAD())
	if err != nil {
		return "", fmt.Errorf("failed to seal session: %w", err)
	}
	return sealed, nil
}

// Decode opens and deserializes a cookie value. Any structural or
// authentication failure maps to ErrInvalidSession.
func (c *Codec) Decode(value string) (*Record, error) {
	payload, err := c.sealer.Open(value, sessionAAD())
	if err != nil {
		return nil, ErrInvalidSession
	}
	var record Record
	if err := cbor.Unmarshal(payload, &record); err != nil {
		return nil, ErrInvalidSession
	}
	return &record, nil
}
