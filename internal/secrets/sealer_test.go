package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestSealer(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	t.Run("seal and open", func(t *testing.T) {
		sealed, err := s.Seal("user-1", "You are terse.")
		require.NoError(t, err)
		assert.NotContains(t, sealed, "terse")

		opened, err := s.Open("user-1", sealed)
		require.NoError(t, err)
		assert.Equal(t, "You are terse.", opened)
	})

	t.Run("random nonce", func(t *testing.T) {
		a, _ := s.Seal("user-1", "same")
		b, _ := s.Seal("user-1", "same")
		assert.NotEqual(t, a, b)
	})

	t.Run("bound to owner", func(t *testing.T) {
		sealed, err := s.Seal("user-1", "mine")
		require.NoError(t, err)
		_, err = s.Open("user-2", sealed)
		assert.Error(t, err)
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := s.Open("user-1", "plain text prompt")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := s.Open("user-1", "abcd")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("tampered", func(t *testing.T) {
		sealed, _ := s.Seal("user-1", "test")
		suffix := "00"
		if sealed[len(sealed)-2:] == suffix {
			suffix = "ff"
		}
		_, err := s.Open("user-1", sealed[:len(sealed)-2]+suffix)
		assert.Error(t, err)
	})
}

func TestNewSealer_BadKey(t *testing.T) {
	_, err := NewSealer("short")
	assert.Error(t, err)

	_, err = NewSealer("zz23456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	assert.Error(t, err)
}
