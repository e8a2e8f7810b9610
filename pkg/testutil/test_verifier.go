package testutil

import (
	"testing"
	"time"

	"github.com/nearid/nep413-verifier/pkg/extractor"
	"github.com/nearid/nep413-verifier/pkg/logger"
	"github.com/nearid/nep413-verifier/pkg/metrics"
	"github.com/nearid/nep413-verifier/pkg/persistence/memory"
	"github.com/nearid/nep413-verifier/pkg/receipt"
	"github.com/nearid/nep413-verifier/pkg/verification"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// TestReceiptSecret is the receipt secret used by NewTestVerifier
const TestReceiptSecret = "nep413-verifier-test-secret-0123456789"

// TestVerifier bundles a verification service with in-memory dependencies
type TestVerifier struct {
	Service   *verification.Service
	Store     *memory.MemoryPersistence
	Extractor *extractor.HeuristicExtractor
	Receipts  *receipt.Issuer
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Clock     *FakeClock
	Config    verification.Config
	Logger    *zap.Logger
}

// NewTestVerifier builds a service for VectorRecipient and VectorOrigin with a
// five minute window. The clock starts at the current time.
func NewTestVerifier(t *testing.T) *TestVerifier {
	t.Helper()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	clock := NewFakeClock(time.Now())

	store := memory.NewMemoryPersistence()
	t.Cleanup(func() { _ = store.Close() })

	ext, err := extractor.NewHeuristicExtractor()
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	receipts, err := receipt.NewIssuerFromSecret("nep413-verifier-test", 15*time.Minute, []byte(TestReceiptSecret))
	if err != nil {
		t.Fatalf("Failed to create receipt issuer: %v", err)
	}
	receipts.WithClock(clock.Now)

	registry := prometheus.NewRegistry()
	m, err := metrics.NewMetrics(registry)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	cfg := verification.Config{
		Recipient:       VectorRecipient,
		Origin:          VectorOrigin,
		TimestampWindow: 5 * time.Minute,
		FutureSkew:      30 * time.Second,
	}

	svc, err := verification.NewService(&cfg, store, ext, receipts, m, testLogger)
	if err != nil {
		t.Fatalf("Failed to create verification service: %v", err)
	}
	svc.WithClock(clock.Now)

	return &TestVerifier{
		Service:   svc,
		Store:     store,
		Extractor: ext,
		Receipts:  receipts,
		Metrics:   m,
		Registry:  registry,
		Clock:     clock,
		Config:    cfg,
		Logger:    testLogger,
	}
}
