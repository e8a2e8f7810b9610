package nep413

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// sha256(tag || borsh{"test", [0;32], "example.near", None})
	zeroNonceDigestHex = "f7269f7a6eb537db0cc7cf44b15c212789aa92c41468a9891061c3c340533f6c"
)

func TestTagBytes(t *testing.T) {
	assert.Equal(t, []byte{0x9d, 0x01, 0x00, 0x80}, TagBytes())
	assert.Equal(t, uint32(1<<31+413), MessageTag)
}

func TestHashPayloadFixture(t *testing.T) {
	payload := NewSignedPayload("test", make([]byte, NonceLength), "example.near")

	digest, err := HashPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, zeroNonceDigestHex, hex.EncodeToString(digest[:]))

	digestHex, err := HashPayloadHex(payload)
	require.NoError(t, err)
	assert.Equal(t, zeroNonceDigestHex, digestHex)
}

func TestHashPayloadFrozenVector(t *testing.T) {
	payload := NewSignedPayload(vectorMessage, bytes.Repeat([]byte{0x07}, NonceLength), vectorRecipient)

	digestHex, err := HashPayloadHex(payload)
	require.NoError(t, err)
	assert.Equal(t, vectorDigestHex, digestHex)
}

func TestHashPayloadStable(t *testing.T) {
	payload := NewSignedPayload("test", make([]byte, NonceLength), "example.near")

	first, err := HashPayload(payload)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := HashPayload(payload)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestHashPayloadFieldSensitivity(t *testing.T) {
	base := NewSignedPayload("test", make([]byte, NonceLength), "example.near")
	baseDigest, err := HashPayload(base)
	require.NoError(t, err)

	swapped := NewSignedPayload("example.near", make([]byte, NonceLength), "test")
	swappedDigest, err := HashPayload(swapped)
	require.NoError(t, err)
	assert.NotEqual(t, baseDigest, swappedDigest)

	callback := ""
	withCallback := NewSignedPayload("test", make([]byte, NonceLength), "example.near")
	withCallback.CallbackURL = &callback
	callbackDigest, err := HashPayload(withCallback)
	require.NoError(t, err)
	assert.NotEqual(t, baseDigest, callbackDigest)
}

func TestHashPayloadInvalidNonce(t *testing.T) {
	_, err := HashPayload(NewSignedPayload("test", make([]byte, 31), "example.near"))
	assert.ErrorIs(t, err, ErrInvalidNonceLength)

	_, err = HashPayloadHex(NewSignedPayload("test", make([]byte, 33), "example.near"))
	assert.ErrorIs(t, err, ErrInvalidNonceLength)
}
