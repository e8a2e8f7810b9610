package badger

import (
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// badgerLoggerAdapter routes Badger's printf-style logging into zap.
// Badger's info output (compactions, table flushes) is demoted to debug.
type badgerLoggerAdapter struct {
	logger *zap.SugaredLogger
}

var _ badgerdb.Logger = (*badgerLoggerAdapter)(nil)

func (b *badgerLoggerAdapter) Errorf(format string, args ...interface{}) {
	b.logger.Errorf(format, args...)
}

func (b *badgerLoggerAdapter) Warningf(format string, args ...interface{}) {
	b.logger.Warnf(format, args...)
}

func (b *badgerLoggerAdapter) Infof(format string, args ...interface{}) {
	b.logger.Debugf(format, args...)
}

func (b *badgerLoggerAdapter) Debugf(format string, args ...interface{}) {
	b.logger.Debugf(format, args...)
}
