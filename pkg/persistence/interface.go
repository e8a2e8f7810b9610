package persistence

//go:generate mockgen -source=interface.go -destination=mocks/mock_nonce_store.go -package=mocks

// INonceStore records which signed-message nonces have already been accepted.
// A nonce is only single-use within its validity window; after ExpiresAt the
// record may be discarded, at which point the signature's timestamp is already
// outside the freshness window and would be rejected anyway.
//
// All implementations must be safe for concurrent use.
type INonceStore interface {
	// ConsumeNonce atomically marks record.Nonce as used until record.ExpiresAt.
	// Returns true if this call consumed the nonce, false if it had already
	// been consumed and has not expired (a replay).
	// Returns error only on storage failure.
	ConsumeNonce(record *NonceRecord) (bool, error)

	// LoadNonce returns the record for a consumed nonce.
	// Returns nil if the nonce is unknown or expired, error only on storage failure.
	LoadNonce(nonce string) (*NonceRecord, error)

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return errors.
	Close() error

	// HealthCheck verifies the store is operational.
	// Should be called during startup to fail fast.
	HealthCheck() error
}
