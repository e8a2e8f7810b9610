package main

import (
	"fmt"

	"github.com/nearid/nep413-verifier/pkg/config"
	"github.com/nearid/nep413-verifier/pkg/persistence"
	"github.com/nearid/nep413-verifier/pkg/persistence/badger"
	"github.com/nearid/nep413-verifier/pkg/persistence/memory"
	"github.com/nearid/nep413-verifier/pkg/persistence/redis"
	"go.uber.org/zap"
)

// newNonceStore opens the configured nonce store
func newNonceStore(cfg *config.PersistenceConfig, l *zap.Logger) (persistence.INonceStore, error) {
	switch cfg.Type {
	case config.PersistenceTypeMemory:
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceTypeRedis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, l)
	case config.PersistenceTypeBadger:
		return badger.NewBadgerPersistence(cfg.BadgerPath, l)
	default:
		return nil, fmt.Errorf("unsupported persistence type %q (supported: %s)", cfg.Type, config.GetSupportedPersistenceTypesString())
	}
}
