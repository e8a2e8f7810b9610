package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/nearid/nep413-verifier/pkg/persistence"
	"github.com/nearid/nep413-verifier/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPersistence_Suite(t *testing.T) {
	persistencetest.RunNonceStoreSuite(t, func(t *testing.T) persistence.INonceStore {
		return NewMemoryPersistence()
	})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func recordAt(nonce string, now time.Time, ttl time.Duration) *persistence.NonceRecord {
	return &persistence.NonceRecord{
		Nonce:      nonce,
		AccountID:  "alice.near",
		ConsumedAt: now.UnixMilli(),
		ExpiresAt:  now.Add(ttl).UnixMilli(),
	}
}

func TestMemoryPersistence_ExpiryWithFakeClock(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_760_000_000_000)}
	mp := newMemoryPersistence(clock.Now)
	defer func() { _ = mp.Close() }()

	consumed, err := mp.ConsumeNonce(recordAt("n1", clock.Now(), 5*time.Minute))
	require.NoError(t, err)
	require.True(t, consumed)

	clock.Advance(4 * time.Minute)
	consumed, err = mp.ConsumeNonce(recordAt("n1", clock.Now(), 5*time.Minute))
	require.NoError(t, err)
	assert.False(t, consumed, "nonce still inside its window")

	clock.Advance(2 * time.Minute)
	loaded, err := mp.LoadNonce("n1")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	consumed, err = mp.ConsumeNonce(recordAt("n1", clock.Now(), 5*time.Minute))
	require.NoError(t, err)
	assert.True(t, consumed)
}

func TestMemoryPersistence_SweepsExpiredRecords(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_760_000_000_000)}
	mp := newMemoryPersistence(clock.Now)
	defer func() { _ = mp.Close() }()

	for _, nonce := range []string{"a", "b", "c"} {
		_, err := mp.ConsumeNonce(recordAt(nonce, clock.Now(), time.Minute))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, mp.Len())

	clock.Advance(2 * time.Minute)
	_, err := mp.ConsumeNonce(recordAt("d", clock.Now(), time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, mp.Len())
}

func TestMemoryPersistence_ReturnsCopies(t *testing.T) {
	mp := newMemoryPersistence(time.Now)
	defer func() { _ = mp.Close() }()

	record := recordAt("copy", time.Now(), time.Minute)
	_, err := mp.ConsumeNonce(record)
	require.NoError(t, err)

	record.AccountID = "mallory.near"

	loaded, err := mp.LoadNonce("copy")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "alice.near", loaded.AccountID)

	loaded.AccountID = "eve.near"
	again, err := mp.LoadNonce("copy")
	require.NoError(t, err)
	assert.Equal(t, "alice.near", again.AccountID)
}

func TestMemoryPersistence_ClosedErrors(t *testing.T) {
	mp := newMemoryPersistence(time.Now)
	require.NoError(t, mp.Close())

	_, err := mp.ConsumeNonce(recordAt("x", time.Now(), time.Minute))
	assert.ErrorIs(t, err, persistence.ErrClosed)
	assert.ErrorIs(t, mp.HealthCheck(), persistence.ErrClosed)
}
