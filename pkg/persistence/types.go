package persistence

import (
	"errors"
	"time"
)

// ErrClosed is returned by every operation after Close
var ErrClosed = errors.New("persistence layer is closed")

// NonceRecord is stored for every accepted signed message
type NonceRecord struct {
	// Nonce is the canonical (padded standard) base64 form of the 32-byte nonce.
	// It is the primary key.
	Nonce string `json:"nonce"`

	// AccountID is the account the signature was accepted for
	AccountID string `json:"accountId"`

	// Recipient is the identifier the signature was scoped to
	Recipient string `json:"recipient"`

	// PublicKey is the "ed25519:<base58>" key that produced the signature
	PublicKey string `json:"publicKey"`

	// ConsumedAt is the unix millisecond time the nonce was accepted
	ConsumedAt int64 `json:"consumedAt"`

	// ExpiresAt is the unix millisecond time after which the record may be dropped
	ExpiresAt int64 `json:"expiresAt"`
}

// TTL returns how long the record must be retained, measured from now.
// Non-positive when the record has already expired.
func (r *NonceRecord) TTL(now time.Time) time.Duration {
	return time.UnixMilli(r.ExpiresAt).Sub(now)
}

// IsExpired reports whether the record is past its retention time
func (r *NonceRecord) IsExpired(now time.Time) bool {
	return r.TTL(now) <= 0
}
