package testutil

import (
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/nearid/nep413-verifier/pkg/nep413"
	"github.com/nearid/nep413-verifier/pkg/types"
)

// Frozen signing vector, cross-checked against an independent Ed25519 implementation
const (
	VectorMessage   = "Identify myself for test-contract.near at https://example.org"
	VectorRecipient = "test-contract.near"
	VectorOrigin    = "https://example.org"
	VectorNonce     = "BwcHBwcHBwcHBwcHBwcHBwcHBwcHBwcHBwcHBwcHBwc="
	VectorPublicKey = "ed25519:FAe4sisG95oZ42w7buUn5qEE4TAnfTTFPiguZUHmhiF"
	VectorSignature = "ay3LFhcjD5cVnL35fD/gSkE1F3//KDBuGRiFNhp+vsQXcIiqN9Iyh/1c0Vva/KZFR+It/OClX3n5JZFlpcwQAA=="
	VectorDigestHex = "5ecc706833a6ff308ba62bf9d381008f166a8745dc052df5064378de47d957cb"
)

// TestWallet is a deterministic Ed25519 account for signing test messages
type TestWallet struct {
	AccountID  string
	PrivateKey ed25519.PrivateKey
	PublicKey  string
}

// NewTestWallet derives a wallet whose seed is 32 consecutive bytes starting at seedStart.
// seedStart 0 yields the frozen vector key.
func NewTestWallet(accountID string, seedStart byte) *TestWallet {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedStart + byte(i)
	}
	priv := ed25519.NewKeyFromSeed(seed)

	return &TestWallet{
		AccountID:  accountID,
		PrivateKey: priv,
		PublicKey:  nep413.FormatPublicKey(priv.Public().(ed25519.PublicKey)),
	}
}

// Sign returns the base64 signature over (message, nonce, recipient)
func (w *TestWallet) Sign(t *testing.T, message string, nonce []byte, recipient string) string {
	t.Helper()

	sig, err := nep413.SignPayload(w.PrivateKey, nep413.NewSignedPayload(message, nonce, recipient))
	if err != nil {
		t.Fatalf("Failed to sign test payload: %v", err)
	}
	return sig
}

// SignedContext signs message for recipient with a fresh random nonce, stamped at signedAt
func (w *TestWallet) SignedContext(t *testing.T, message, recipient string, signedAt time.Time) *types.SignatureContext {
	t.Helper()

	nonce, err := nep413.GenerateNonce(nil)
	if err != nil {
		t.Fatalf("Failed to generate nonce: %v", err)
	}

	return &types.SignatureContext{
		AccountID: w.AccountID,
		Signature: w.Sign(t, message, nonce, recipient),
		PublicKey: w.PublicKey,
		Nonce:     nep413.EncodeNonce(nonce),
		Timestamp: signedAt.UnixMilli(),
	}
}

// SignedRequest wraps SignedContext in a verify request
func (w *TestWallet) SignedRequest(t *testing.T, message, recipient string, signedAt time.Time) *types.VerifyRequest {
	t.Helper()
	return &types.VerifyRequest{SignatureContext: *w.SignedContext(t, message, recipient, signedAt)}
}

// FakeClock is a settable time source safe for concurrent use
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock starts the clock at now
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
