package main

import (
	"testing"

	"github.com/nearid/nep413-verifier/pkg/config"
	"github.com/nearid/nep413-verifier/pkg/logger"
	"github.com/nearid/nep413-verifier/pkg/persistence/badger"
	"github.com/nearid/nep413-verifier/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNonceStore(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	store, err := newNonceStore(&config.PersistenceConfig{Type: config.PersistenceTypeMemory}, l)
	require.NoError(t, err)
	assert.IsType(t, &memory.MemoryPersistence{}, store)
	require.NoError(t, store.Close())

	store, err = newNonceStore(&config.PersistenceConfig{Type: config.PersistenceTypeBadger, BadgerPath: t.TempDir()}, l)
	require.NoError(t, err)
	assert.IsType(t, &badger.BadgerPersistence{}, store)
	require.NoError(t, store.HealthCheck())
	require.NoError(t, store.Close())

	_, err = newNonceStore(&config.PersistenceConfig{Type: "etcd"}, l)
	assert.Error(t, err)
}
