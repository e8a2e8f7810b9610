package nep413

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Frozen vector: seed 00..1f, nonce 0x07 * 32. Computed independently of this
// package with an RFC 8032 reference implementation.
const (
	vectorMessage   = "Identify myself for test-contract.near at https://example.org"
	vectorRecipient = "test-contract.near"
	vectorNonce     = "BwcHBwcHBwcHBwcHBwcHBwcHBwcHBwcHBwcHBwcHBwc="
	vectorPublicKey = "ed25519:FAe4sisG95oZ42w7buUn5qEE4TAnfTTFPiguZUHmhiF"
	vectorDigestHex = "5ecc706833a6ff308ba62bf9d381008f166a8745dc052df5064378de47d957cb"
	vectorSignature = "ay3LFhcjD5cVnL35fD/gSkE1F3//KDBuGRiFNhp+vsQXcIiqN9Iyh/1c0Vva/KZFR+It/OClX3n5JZFlpcwQAA=="
)

func vectorSeed() []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func signFixture(t *testing.T, priv ed25519.PrivateKey, message string, nonce []byte, recipient string) string {
	t.Helper()
	sig, err := SignPayload(priv, NewSignedPayload(message, nonce, recipient))
	require.NoError(t, err)
	return sig
}

func TestVerifyFrozenVector(t *testing.T) {
	outcome := Verify(vectorMessage, vectorSignature, vectorPublicKey, vectorNonce, vectorRecipient)
	assert.True(t, outcome.Valid)
	assert.Empty(t, outcome.Error)
	assert.Equal(t, ReasonValid, outcome.Reason)

	// ed25519 signatures are deterministic, so signing must reproduce the vector
	priv := ed25519.NewKeyFromSeed(vectorSeed())
	sig := signFixture(t, priv, vectorMessage, bytes.Repeat([]byte{0x07}, NonceLength), vectorRecipient)
	assert.Equal(t, vectorSignature, sig)
}

func TestVerifySoundness(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	nonce, err := GenerateNonce(nil)
	require.NoError(t, err)

	sig := signFixture(t, priv, "hello", nonce, "app.near")
	outcome := Verify("hello", sig, FormatPublicKey(pub), EncodeNonce(nonce), "app.near")

	assert.True(t, outcome.Valid)
	assert.Nil(t, outcome.Cause)
}

func TestVerifyRecipientBinding(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	nonce, err := GenerateNonce(nil)
	require.NoError(t, err)
	nonceB64 := EncodeNonce(nonce)
	pk := FormatPublicKey(pub)

	sig := signFixture(t, priv, vectorMessage, nonce, "test-contract.near")

	outcome := Verify(vectorMessage, sig, pk, nonceB64, "test-contract.near")
	require.True(t, outcome.Valid)

	outcome = Verify(vectorMessage, sig, pk, nonceB64, "other-contract.near")
	assert.False(t, outcome.Valid)
	assert.True(t, outcome.IsMismatch())
	assert.Equal(t, InvalidSignatureMessage, outcome.Error)
	assert.ErrorIs(t, outcome.Cause, ErrSignatureMismatch)
}

func TestVerifyRejectsTampering(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(vectorSeed())
	nonce := bytes.Repeat([]byte{0x07}, NonceLength)

	t.Run("Message bit flips", func(t *testing.T) {
		msg := []byte(vectorMessage)
		for i := 0; i < len(msg)*8; i++ {
			tampered := append([]byte{}, msg...)
			tampered[i/8] ^= 1 << (i % 8)

			outcome := Verify(string(tampered), vectorSignature, vectorPublicKey, vectorNonce, vectorRecipient)
			require.False(t, outcome.Valid, "bit %d", i)
			require.True(t, outcome.IsMismatch(), "bit %d", i)
		}
	})

	t.Run("Nonce bit flips", func(t *testing.T) {
		for i := 0; i < NonceLength*8; i++ {
			tampered := append([]byte{}, nonce...)
			tampered[i/8] ^= 1 << (i % 8)

			outcome := Verify(vectorMessage, vectorSignature, vectorPublicKey, EncodeNonce(tampered), vectorRecipient)
			require.False(t, outcome.Valid, "bit %d", i)
			require.True(t, outcome.IsMismatch(), "bit %d", i)
		}
	})

	t.Run("Recipient bit flips", func(t *testing.T) {
		rec := []byte(vectorRecipient)
		for i := 0; i < len(rec)*8; i++ {
			tampered := append([]byte{}, rec...)
			tampered[i/8] ^= 1 << (i % 8)

			outcome := Verify(vectorMessage, vectorSignature, vectorPublicKey, vectorNonce, string(tampered))
			require.False(t, outcome.Valid, "bit %d", i)
		}
	})

	t.Run("Signature from another key", func(t *testing.T) {
		_, other, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		sig := signFixture(t, other, vectorMessage, nonce, vectorRecipient)

		outcome := Verify(vectorMessage, sig, FormatPublicKey(priv.Public().(ed25519.PublicKey)), vectorNonce, vectorRecipient)
		assert.False(t, outcome.Valid)
		assert.True(t, outcome.IsMismatch())
	})
}

func TestVerifyMalformedInput(t *testing.T) {
	validSig := vectorSignature

	tests := []struct {
		name      string
		signature string
		publicKey string
		nonce     string
		cause     error
	}{
		{
			name:      "short nonce",
			signature: validSig,
			publicKey: vectorPublicKey,
			nonce:     base64.StdEncoding.EncodeToString(make([]byte, 31)),
			cause:     ErrInvalidNonceLength,
		},
		{
			name:      "long nonce",
			signature: validSig,
			publicKey: vectorPublicKey,
			nonce:     base64.StdEncoding.EncodeToString(make([]byte, 33)),
			cause:     ErrInvalidNonceLength,
		},
		{
			name:      "nonce not base64",
			signature: validSig,
			publicKey: vectorPublicKey,
			nonce:     "***",
			cause:     ErrInvalidEncoding,
		},
		{
			name:      "public key without prefix",
			signature: validSig,
			publicKey: "FAe4sisG95oZ42w7buUn5qEE4TAnfTTFPiguZUHmhiF",
			nonce:     vectorNonce,
			cause:     ErrUnsupportedKeyType,
		},
		{
			name:      "public key wrong length",
			signature: validSig,
			publicKey: "ed25519:3yZe7d",
			nonce:     vectorNonce,
			cause:     ErrInvalidPublicKey,
		},
		{
			name:      "signature wrong length",
			signature: base64.StdEncoding.EncodeToString(make([]byte, 32)),
			publicKey: vectorPublicKey,
			nonce:     vectorNonce,
			cause:     ErrInvalidSignature,
		},
		{
			name:      "signature not base64",
			signature: "@@@",
			publicKey: vectorPublicKey,
			nonce:     vectorNonce,
			cause:     ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Verify(vectorMessage, tt.signature, tt.publicKey, tt.nonce, vectorRecipient)

			assert.False(t, outcome.Valid)
			assert.True(t, outcome.IsMalformed())
			assert.NotEmpty(t, outcome.Error)
			assert.NotEqual(t, InvalidSignatureMessage, outcome.Error)
			assert.ErrorIs(t, outcome.Cause, tt.cause)
		})
	}
}

func TestVerifyConcurrent(t *testing.T) {
	done := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		go func() {
			outcome := Verify(vectorMessage, vectorSignature, vectorPublicKey, vectorNonce, vectorRecipient)
			done <- outcome.Valid
		}()
	}
	for i := 0; i < 16; i++ {
		assert.True(t, <-done)
	}
}

func TestSignPayloadInvalidKey(t *testing.T) {
	_, err := SignPayload(ed25519.PrivateKey(make([]byte, 10)), NewSignedPayload("m", make([]byte, NonceLength), "r"))
	assert.Error(t, err)
}

func TestGenerateNonce(t *testing.T) {
	a, err := GenerateNonce(nil)
	require.NoError(t, err)
	b, err := GenerateNonce(nil)
	require.NoError(t, err)

	assert.Len(t, a, NonceLength)
	assert.NotEqual(t, a, b)

	fixed, err := GenerateNonce(bytes.NewReader(bytes.Repeat([]byte{0x07}, NonceLength)))
	require.NoError(t, err)
	assert.Equal(t, vectorNonce, EncodeNonce(fixed))

	_, err = GenerateNonce(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
}
