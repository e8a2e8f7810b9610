// Package nep413 implements NEP-413 off-chain message signing as used by NEAR
// wallets to prove control of an account key.
package nep413

import "errors"

/*
NEP-413 Signed Message Protocol

A wallet proves that the holder of an account key authorized a specific
message for a specific recipient. The wallet never signs the display text
directly, it signs a SHA-256 digest over a tagged Borsh encoding of the
payload.

Payload (Borsh, fixed field order):
  message:     u32 LE length || UTF-8 bytes
  nonce:       [32]u8, no length prefix
  recipient:   u32 LE length || UTF-8 bytes
  callbackUrl: Option<string>; 0x00 when absent, 0x01 || string when present

Digest:
  tag    = u32 LE(2^31 + 413) = 9d 01 00 80
  digest = sha256(tag || borsh(payload))

Wire material supplied by the wallet:
  signature: base64(64-byte ed25519 signature over digest)
  publicKey: "ed25519:" || base58(32-byte ed25519 public key)

Binding:
  - recipient scopes the signature; changing it changes the digest
  - nonce is chosen by the caller; replay defense is the caller's concern
  - freshness (timestamp) is the caller's concern

Only ed25519 keys are accepted. There is no algorithm negotiation.
*/

const (
	// MessageTag is the u32 prefix that marks a NEP-413 signed message (2^31 + 413)
	MessageTag uint32 = 2147484061

	// NonceLength is the exact size of the payload nonce in bytes
	NonceLength = 32

	// PublicKeyLength is the size of a raw ed25519 public key
	PublicKeyLength = 32

	// SignatureLength is the size of a raw ed25519 signature
	SignatureLength = 64

	// DigestLength is the size of the SHA-256 digest that wallets sign
	DigestLength = 32

	// KeyTypeEd25519 is the only key type prefix supported
	KeyTypeEd25519 = "ed25519"
)

var (
	ErrInvalidNonceLength = errors.New("nonce must be exactly 32 bytes")
	ErrUnsupportedKeyType = errors.New("unsupported public key type")
	ErrInvalidPublicKey   = errors.New("invalid public key")
	ErrInvalidSignature   = errors.New("invalid signature encoding")
	ErrInvalidEncoding    = errors.New("invalid base64 encoding")
)
