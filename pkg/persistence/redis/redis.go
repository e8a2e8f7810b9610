package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nearid/nep413-verifier/pkg/persistence"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixNonce       = "nep413:nonce:"
	keySchemaVersion     = "nep413:metadata:schema_version"
	currentSchemaVersion = "v1"

	operationTimeout = 5 * time.Second
)

// RedisPersistence is a nonce store backed by Redis.
// Replay protection holds across every verifier instance sharing the same
// Redis database, and records expire through Redis key TTLs.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant setups).
	// If set, this prefix is prepended to all keys, e.g., "myapp:" would result in
	// keys like "myapp:nep413:nonce:<nonce>".
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed nonce store.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.KeyPrefix != "" {
		logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	} else {
		logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB)
	}

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) nonceKey(nonce string) string {
	return r.prefixKey(keyPrefixNonce + nonce)
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// ConsumeNonce stores the record with SET NX so exactly one caller wins per nonce
func (r *RedisPersistence) ConsumeNonce(record *persistence.NonceRecord) (bool, error) {
	ttl, err := persistence.RetentionTTL(record, time.Now())
	if err != nil {
		return false, err
	}

	data, err := persistence.MarshalNonceRecord(record)
	if err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	consumed, err := r.client.SetNX(ctx, r.nonceKey(record.Nonce), data, ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed to consume nonce %s", record.Nonce)
	}

	if !consumed {
		r.logger.Sugar().Debugw("Nonce already consumed", "nonce", record.Nonce, "account_id", record.AccountID)
	}
	return consumed, nil
}

// LoadNonce returns the stored record, or nil once Redis has expired it
func (r *RedisPersistence) LoadNonce(nonce string) (*persistence.NonceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.nonceKey(nonce)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load nonce %s", nonce)
	}

	return persistence.UnmarshalNonceRecord(data)
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil // Already closed, idempotent
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
