package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/nearid/nep413-verifier/pkg/persistence"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixNonce       = "nonce:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"

	gcInterval     = 5 * time.Minute
	gcDiscardRatio = 0.5
)

// BadgerPersistence is a disk-backed nonce store for single-instance deployments.
// Consumed nonces survive restarts and are expired through Badger entry TTLs.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence opens (or creates) the nonce database at dataPath.
// Writes are synced so an accepted nonce is never forgotten after a crash.
// A background goroutine is started for value log garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger.Sugar().With("component", "badger")}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background.
// Expired nonce entries are only reclaimed from disk by value log GC.
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(gcDiscardRatio)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func nonceKey(nonce string) []byte {
	return []byte(keyPrefixNonce + nonce)
}

// readRecord loads the record under key inside txn. Returns nil when absent.
func readRecord(txn *badgerdb.Txn, key []byte) (*persistence.NonceRecord, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record *persistence.NonceRecord
	err = item.Value(func(val []byte) error {
		var uerr error
		record, uerr = persistence.UnmarshalNonceRecord(val)
		return uerr
	})
	return record, err
}

// ConsumeNonce inserts the record unless an unexpired one already exists.
// Two transactions racing on the same nonce conflict at commit; the loser
// is reported as a replay.
func (b *BadgerPersistence) ConsumeNonce(record *persistence.NonceRecord) (bool, error) {
	now := time.Now()
	ttl, err := persistence.RetentionTTL(record, now)
	if err != nil {
		return false, err
	}

	data, err := persistence.MarshalNonceRecord(record)
	if err != nil {
		return false, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, persistence.ErrClosed
	}

	key := nonceKey(record.Nonce)
	consumed := false
	err = b.db.Update(func(txn *badgerdb.Txn) error {
		existing, err := readRecord(txn, key)
		if err != nil {
			return err
		}
		if existing != nil && !existing.IsExpired(now) {
			return nil
		}

		if err := txn.SetEntry(badgerdb.NewEntry(key, data).WithTTL(ttl)); err != nil {
			return err
		}
		consumed = true
		return nil
	})
	if errors.Is(err, badgerdb.ErrConflict) {
		b.logger.Sugar().Debugw("Concurrent consume lost the race", "nonce", record.Nonce)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce %s: %w", record.Nonce, err)
	}

	return consumed, nil
}

// LoadNonce returns the stored record, or nil when unknown or expired
func (b *BadgerPersistence) LoadNonce(nonce string) (*persistence.NonceRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var record *persistence.NonceRecord
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		record, err = readRecord(txn, nonceKey(nonce))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load nonce %s: %w", nonce, err)
	}

	if record != nil && record.IsExpired(time.Now()) {
		return nil, nil
	}
	return record, nil
}

// Close shuts down the persistence layer
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil // Already closed, idempotent
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
