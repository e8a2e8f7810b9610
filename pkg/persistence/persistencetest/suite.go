// Package persistencetest holds behaviour checks shared by every INonceStore
// implementation.
package persistencetest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nearid/nep413-verifier/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory returns a fresh, empty store. The suite closes it.
type StoreFactory func(t *testing.T) persistence.INonceStore

// NewRecord builds a record that expires ttl from now
func NewRecord(nonce string, ttl time.Duration) *persistence.NonceRecord {
	now := time.Now()
	return &persistence.NonceRecord{
		Nonce:      nonce,
		AccountID:  "alice.near",
		Recipient:  "verify.near",
		PublicKey:  "ed25519:FAe4sisG95oZ42w7buUn5qEE4TAnfTTFPiguZUHmhiF",
		ConsumedAt: now.UnixMilli(),
		ExpiresAt:  now.Add(ttl).UnixMilli(),
	}
}

// uniqueNonce avoids collisions between runs against a shared backend
func uniqueNonce(t *testing.T, label string) string {
	return fmt.Sprintf("%s-%s-%d", t.Name(), label, time.Now().UnixNano())
}

// RunNonceStoreSuite exercises the INonceStore contract
func RunNonceStoreSuite(t *testing.T, newStore StoreFactory) {
	t.Run("ConsumeOnce", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := NewRecord(uniqueNonce(t, "a"), time.Minute)

		consumed, err := store.ConsumeNonce(record)
		require.NoError(t, err)
		assert.True(t, consumed)

		consumed, err = store.ConsumeNonce(record)
		require.NoError(t, err)
		assert.False(t, consumed, "second consume must be reported as replay")
	})

	t.Run("LoadNonce", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := NewRecord(uniqueNonce(t, "b"), time.Minute)
		_, err := store.ConsumeNonce(record)
		require.NoError(t, err)

		loaded, err := store.LoadNonce(record.Nonce)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, record.AccountID, loaded.AccountID)
		assert.Equal(t, record.ExpiresAt, loaded.ExpiresAt)
	})

	t.Run("LoadNonce_NotFound", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadNonce(uniqueNonce(t, "missing"))
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("DistinctNonces", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		for i := 0; i < 5; i++ {
			consumed, err := store.ConsumeNonce(NewRecord(uniqueNonce(t, fmt.Sprintf("n%d", i)), time.Minute))
			require.NoError(t, err)
			assert.True(t, consumed)
		}
	})

	t.Run("ExpiredRecordCanBeReused", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := NewRecord(uniqueNonce(t, "c"), 1100*time.Millisecond)
		consumed, err := store.ConsumeNonce(record)
		require.NoError(t, err)
		require.True(t, consumed)

		time.Sleep(2100 * time.Millisecond)

		loaded, err := store.LoadNonce(record.Nonce)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		consumed, err = store.ConsumeNonce(NewRecord(record.Nonce, time.Minute))
		require.NoError(t, err)
		assert.True(t, consumed)
	})

	t.Run("RejectsInvalidRecords", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		_, err := store.ConsumeNonce(nil)
		assert.Error(t, err)

		_, err = store.ConsumeNonce(&persistence.NonceRecord{Nonce: "x"})
		assert.Error(t, err)

		_, err = store.ConsumeNonce(NewRecord(uniqueNonce(t, "past"), -time.Minute))
		assert.Error(t, err)
	})

	t.Run("ConcurrentConsumeSingleWinner", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := NewRecord(uniqueNonce(t, "race"), time.Minute)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				consumed, err := store.ConsumeNonce(record)
				if err == nil && consumed {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("HealthCheck", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		assert.NoError(t, store.HealthCheck())
	})

	t.Run("Close", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Close())
		require.NoError(t, store.Close(), "close must be idempotent")

		_, err := store.ConsumeNonce(NewRecord(uniqueNonce(t, "closed"), time.Minute))
		assert.Error(t, err)

		_, err = store.LoadNonce("anything")
		assert.Error(t, err)

		assert.Error(t, store.HealthCheck())
	})
}
