package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) map[string][]byte {
	t.Helper()
	return map[string][]byte{
		"k1": []byte(strings.Repeat("a", KeySize)),
		"k2": []byte(strings.Repeat("b", KeySize)),
	}
}

func TestNewSealer(t *testing.T) {
	t.Run("valid_keys", func(t *testing.T) {
		sealer, err := NewSealer("k1", testKeys(t))
		require.NoError(t, err)
		assert.NotNil(t, sealer)
	})

	t.Run("missing_key_id", func(t *testing.T) {
		_, err := NewSealer("nope", testKeys(t))
		assert.Error(t, err)
	})

	t.Run("wrong_key_length", func(t *testing.T) {
		_, err := NewSealer("k1", map[string][]byte{"k1": []byte("short")})
		assert.Error(t, err)
	})

	t.Run("empty_key_set", func(t *testing.T) {
		_, err := NewSealer("k1", nil)
		assert.Error(t, err)
	})
}

func TestSealerRoundTrip(t *testing.T) {
	sealer, err := NewSealer("k1", testKeys(t))
	require.NoError(t, err)

	aad := []byte("user_session:/")
	sealed, err := sealer.Seal([]byte(`{"email":"a@b.com"}`), aad)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "k1."))

	opened, err := sealer.Open(sealed, aad)
	require.NoError(t, err)
	assert.Equal(t, `{"email":"a@b.com"}`, string(opened))
}

func TestSealerRejectsTampering(t *testing.T) {
	sealer, err := NewSealer("k1", testKeys(t))
	require.NoError(t, err)

	aad := []byte("user_session:/")
	sealed, err := sealer.Seal([]byte("payload"), aad)
	require.NoError(t, err)

	t.Run("flipped_ciphertext", func(t *testing.T) {
		tampered := sealed[:len(sealed)-2] + "zz"
		_, err := sealer.Open(tampered, aad)
		assert.Error(t, err)
	})

	t.Run("wrong_aad", func(t *testing.T) {
		_, err := sealer.Open(sealed, []byte("other:/"))
		assert.ErrorIs(t, err, ErrSealedInvalid)
	})

	t.Run("unknown_key_id", func(t *testing.T) {
		_, idx, _ := strings.Cut(sealed, ".")
		_, err := sealer.Open("unknown."+idx, aad)
		assert.ErrorIs(t, err, ErrSealedInvalid)
	})

	t.Run("garbage_value", func(t *testing.T) {
		_, err := sealer.Open("not-a-sealed-value", aad)
		assert.ErrorIs(t, err, ErrSealedFormat)
	})

	t.Run("oversized_value", func(t *testing.T) {
		_, err := sealer.Open("k1."+strings.Repeat("A", maxSealedLen), aad)
		assert.ErrorIs(t, err, ErrSealedFormat)
	})
}

func TestSealerKeyRotation(t *testing.T) {
	keys := testKeys(t)

	oldSealer, err := NewSealer("k1", keys)
	require.NoError(t, err)
	sealed, err := oldSealer.Seal([]byte("payload"), nil)
	require.NoError(t, err)

	// A sealer now sealing with k2 still opens values sealed under k1
	newSealer, err := NewSealer("k2", keys)
	require.NoError(t, err)
	opened, err := newSealer.Open(sealed, nil)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(opened))
}

func TestSealerNonceUniqueness(t *testing.T) {
	sealer, err := NewSealer("k1", testKeys(t))
	require.NoError(t, err)

	a, err := sealer.Seal([]byte("same"), nil)
	require.NoError(t, err)
	b, err := sealer.Seal([]byte("same"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
