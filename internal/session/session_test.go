package session

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/FreedomSnow/sinoname/internal/crypto"
	"github.com/FreedomSnow/sinoname/internal/idp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	sealer, err := crypto.NewSealer("v1", map[string][]byte{
		"v1": bytes.Repeat([]byte("k"), crypto.KeySize),
	})
	require.NoError(t, err)
	return NewCodec(sealer)
}

func testRecord(expiresAt time.Time) Record {
	return Record{
		User: User{
			ID:     "subject-123",
			Name:   "Test User",
			Email:  "user@example.com",
			Avatar: "https://example.com/photo.jpg",
		},
		AccessToken: "ya29.secret-access-token",
		ExpiresAt:   expiresAt.UnixMilli(),
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	record := testRecord(time.Now().Add(time.Hour))

	value, err := codec.Encode(record)
	require.NoError(t, err)

	decoded, err := codec.Decode(value)
	require.NoError(t, err)
	assert.Equal(t, record, *decoded)
}

func TestCodecRejectsTamperedValue(t *testing.T) {
	codec := newTestCodec(t)

	value, err := codec.Encode(testRecord(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	tampered := value[:len(value)-2] + "xx"
	_, err = codec.Decode(tampered)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec := newTestCodec(t)

	for _, value := range []string{"", "not-a-session", "v1.", "v1.!!!", strings.Repeat("a", 10000)} {
		_, err := codec.Decode(value)
		assert.ErrorIs(t, err, ErrInvalidSession, "value %q", value)
	}
}

func TestCodecValueIsOpaque(t *testing.T) {
	codec := newTestCodec(t)
	record := testRecord(time.Now().Add(time.Hour))

	value, err := codec.Encode(record)
	require.NoError(t, err)

	// Neither identity nor token material appears in the cookie value.
	assert.NotContains(t, value, record.User.Email)
	assert.NotContains(t, value, record.AccessToken)
}

func TestNewRecord(t *testing.T) {
	identity := &idp.Identity{
		Subject: "subject-123",
		Name:    "Test User",
		Email:   "user@example.com",
		Picture: "https://example.com/photo.jpg",
	}
	expiry := time.Now().Add(time.Hour)

	record := NewRecord(identity, "access-token", expiry)

	assert.Equal(t, "subject-123", record.User.ID)
	assert.Equal(t, "Test User", record.User.Name)
	assert.Equal(t, "user@example.com", record.User.Email)
	assert.Equal(t, "https://example.com/photo.jpg", record.User.Avatar)
	assert.Equal(t, "access-token", record.AccessToken)
	assert.Equal(t, expiry.UnixMilli(), record.ExpiresAt)
}

func TestIsExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		expiresAt time.Time
		expired   bool
	}{
		{"future_expiry", now.Add(time.Hour), false},
		{"one_millisecond_left", now.Add(time.Millisecond), false},
		{"exactly_now_is_expired", now, true},
		{"past_expiry", now.Add(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := testRecord(tt.expiresAt)
			assert.Equal(t, tt.expired, record.IsExpired(now))
		})
	}
}

func TestTTL(t *testing.T) {
	now := time.Now()

	record := testRecord(now.Add(time.Hour))
	assert.Equal(t, time.Hour, record.TTL(now))

	expired := testRecord(now.Add(-time.Minute))
	assert.Equal(t, time.Duration(0), expired.TTL(now))
}

func TestAccessTokenNeverInJSON(t *testing.T) {
	record := testRecord(time.Now().Add(time.Hour))

	data, err := json.Marshal(record)
	require.NoError(t, err)

	assert.NotContains(t, string(data), record.AccessToken)
	assert.Contains(t, string(data), record.User.Email)
}
