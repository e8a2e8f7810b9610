package verification_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/nearid/nep413-verifier/pkg/extractor"
	"github.com/nearid/nep413-verifier/pkg/logger"
	"github.com/nearid/nep413-verifier/pkg/persistence"
	"github.com/nearid/nep413-verifier/pkg/testutil"
	"github.com/nearid/nep413-verifier/pkg/verification"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newServiceWithStore builds a service without receipts around store
func newServiceWithStore(t *testing.T, store persistence.INonceStore) *verification.Service {
	t.Helper()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	return newServiceWithLogger(t, store, testLogger)
}

// newServiceWithLogger builds a service without receipts that logs to l
func newServiceWithLogger(t *testing.T, store persistence.INonceStore, l *zap.Logger) *verification.Service {
	t.Helper()

	ext, err := extractor.NewHeuristicExtractor()
	require.NoError(t, err)

	svc, err := verification.NewService(&verification.Config{
		Recipient:       testutil.VectorRecipient,
		Origin:          testutil.VectorOrigin,
		TimestampWindow: 5 * time.Minute,
		FutureSkew:      30 * time.Second,
	}, store, ext, nil, nil, l)
	require.NoError(t, err)
	return svc
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func base64RawURL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
