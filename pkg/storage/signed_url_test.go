package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("media/photo-1.jpg")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	key, _, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "media/photo-1.jpg", key)
}

func TestSignedURLExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", -time.Minute)

	token, _, err := signer.Generate("media/photo-1.jpg")
	require.NoError(t, err)

	_, _, err = signer.Parse(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSignedURLTampered(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, _, err := signer.Generate("media/photo-1.jpg")
	require.NoError(t, err)

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, _, err = other.Parse(token)
	require.Error(t, err)
}

func TestSignedURLRequiresKey(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	_, _, err := signer.Generate("")
	require.Error(t, err)
}
