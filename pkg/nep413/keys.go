package nep413

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ParsePublicKey decodes a NEAR public key string of the form
// "ed25519:<base58>" into a raw ed25519 key.
func ParsePublicKey(publicKey string) (ed25519.PublicKey, error) {
	keyType, encoded, found := strings.Cut(publicKey, ":")
	if !found {
		return nil, fmt.Errorf("%w: missing key type prefix", ErrUnsupportedKeyType)
	}
	if keyType != KeyTypeEd25519 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, keyType)
	}
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty key data", ErrInvalidPublicKey)
	}

	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != PublicKeyLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeyLength, len(raw))
	}

	return ed25519.PublicKey(raw), nil
}

// FormatPublicKey renders a raw ed25519 key in NEAR string form
func FormatPublicKey(pub ed25519.PublicKey) string {
	return KeyTypeEd25519 + ":" + base58.Encode(pub)
}

// DecodeSignature decodes a base64 signature and checks its length
func DecodeSignature(signature string) ([]byte, error) {
	raw, err := decodeBase64(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(raw) != SignatureLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(raw))
	}
	return raw, nil
}

// DecodeNonce decodes a base64 nonce and checks its length
func DecodeNonce(nonce string) ([]byte, error) {
	raw, err := decodeBase64(nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	if len(raw) != NonceLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidNonceLength, len(raw))
	}
	return raw, nil
}

// decodeBase64 accepts padded and unpadded, standard and URL-safe alphabets.
// Wallets are not consistent about which one they emit.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidEncoding)
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		if raw, err := enc.DecodeString(s); err == nil {
			return raw, nil
		}
	}
	return nil, ErrInvalidEncoding
}
