package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/nearid/nep413-verifier/pkg/persistence"
)

// MemoryPersistence is an in-memory implementation of INonceStore.
// Consumed nonces live only as long as the process, so a restart re-opens
// every nonce that is still inside the freshness window. Use it for tests and
// single-instance development only.
//
// Thread-safe using sync.RWMutex for concurrent access.
// Records are copied on the way in and out to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Consumed nonces: canonical nonce -> record
	nonces map[string]*persistence.NonceRecord

	// now is swappable for tests
	now func() time.Time

	// Closed flag
	closed bool
}

// NewMemoryPersistence creates a new in-memory nonce store.
// Prints a loud warning since this should only be used for testing.
func NewMemoryPersistence() *MemoryPersistence {
	fmt.Println("⚠️  WARNING: Using in-memory persistence - CONSUMED NONCES ARE LOST ON RESTART")
	fmt.Println("⚠️  This should ONLY be used for testing. Set NEP413_PERSISTENCE_TYPE=redis or badger for production")

	return newMemoryPersistence(time.Now)
}

func newMemoryPersistence(now func() time.Time) *MemoryPersistence {
	return &MemoryPersistence{
		nonces: make(map[string]*persistence.NonceRecord),
		now:    now,
	}
}

// ConsumeNonce marks the nonce as used if it is not already held by an unexpired record.
func (m *MemoryPersistence) ConsumeNonce(record *persistence.NonceRecord) (bool, error) {
	now := m.now()
	if _, err := persistence.RetentionTTL(record, now); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, persistence.ErrClosed
	}

	if existing, ok := m.nonces[record.Nonce]; ok && !existing.IsExpired(now) {
		return false, nil
	}

	m.sweepLocked(now)

	copied := *record
	m.nonces[record.Nonce] = &copied
	return true, nil
}

// LoadNonce returns a copy of the stored record, or nil when unknown or expired.
func (m *MemoryPersistence) LoadNonce(nonce string) (*persistence.NonceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	record, ok := m.nonces[nonce]
	if !ok || record.IsExpired(m.now()) {
		return nil, nil
	}

	copied := *record
	return &copied, nil
}

// Len returns the number of records held, expired ones included
func (m *MemoryPersistence) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nonces)
}

// sweepLocked drops expired records. Caller must hold the write lock.
func (m *MemoryPersistence) sweepLocked(now time.Time) {
	for nonce, record := range m.nonces {
		if record.IsExpired(now) {
			delete(m.nonces, nonce)
		}
	}
}

// Close marks the persistence layer as closed.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.nonces = make(map[string]*persistence.NonceRecord)
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}

	return nil
}
