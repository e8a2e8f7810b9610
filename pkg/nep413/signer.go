package nep413

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// SignPayload signs the NEP-413 digest of payload the way a wallet does and
// returns the base64 signature. Useful for tests and client tooling.
func SignPayload(privateKey ed25519.PrivateKey, payload *SignedPayload) (string, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(privateKey))
	}

	digest, err := HashPayload(payload)
	if err != nil {
		return "", err
	}

	sig := ed25519.Sign(privateKey, digest[:])
	return base64.StdEncoding.EncodeToString(sig), nil
}

// GenerateNonce reads NonceLength bytes from r, or crypto/rand when r is nil
func GenerateNonce(r io.Reader) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	nonce := make([]byte, NonceLength)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// EncodeNonce returns the base64 wire form of a nonce
func EncodeNonce(nonce []byte) string {
	return base64.StdEncoding.EncodeToString(nonce)
}
