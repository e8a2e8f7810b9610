package verification_test

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nearid/nep413-verifier/pkg/extractor"
	"github.com/nearid/nep413-verifier/pkg/logger"
	"github.com/nearid/nep413-verifier/pkg/nep413"
	"github.com/nearid/nep413-verifier/pkg/persistence"
	"github.com/nearid/nep413-verifier/pkg/persistence/mocks"
	"github.com/nearid/nep413-verifier/pkg/testutil"
	"github.com/nearid/nep413-verifier/pkg/types"
	"github.com/nearid/nep413-verifier/pkg/verification"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestVerify_Valid(t *testing.T) {
	tv := testutil.NewTestVerifier(t)
	wallet := testutil.NewTestWallet("alice.near", 0)

	req := wallet.SignedRequest(t, tv.Service.ExpectedMessage(), testutil.VectorRecipient, tv.Clock.Now())
	resp := tv.Service.Verify(req)

	require.True(t, resp.Valid, resp.Error)
	assert.Equal(t, types.ReasonValid, resp.Reason)
	assert.Equal(t, "alice.near", resp.AccountID)
	require.NotEmpty(t, resp.Receipt)

	claims, err := tv.Receipts.Verify(resp.Receipt, testutil.VectorRecipient)
	require.NoError(t, err)
	assert.Equal(t, "alice.near", claims.AccountID)
	assert.Equal(t, wallet.PublicKey, claims.PublicKey)
	assert.Equal(t, req.Nonce, claims.Nonce)
	assert.Equal(t, 1, tv.Store.Len())
}

func TestVerify_FrozenVector(t *testing.T) {
	tv := testutil.NewTestVerifier(t)

	req := &types.VerifyRequest{
		SignatureContext: types.SignatureContext{
			AccountID: "test.near",
			Signature: testutil.VectorSignature,
			PublicKey: testutil.VectorPublicKey,
			Nonce:     testutil.VectorNonce,
			Timestamp: tv.Clock.Now().UnixMilli(),
		},
		Message:   testutil.VectorMessage,
		Recipient: testutil.VectorRecipient,
	}

	resp := tv.Service.Verify(req)
	assert.True(t, resp.Valid, resp.Error)
	assert.Equal(t, testutil.VectorMessage, tv.Service.ExpectedMessage())
}

func TestVerify_Rejections(t *testing.T) {
	wallet := testutil.NewTestWallet("alice.near", 0)
	stranger := testutil.NewTestWallet("mallory.near", 100)

	tests := []struct {
		name   string
		mutate func(tv *testutil.TestVerifier, req *types.VerifyRequest)
		reason types.VerificationReason
	}{
		{
			name:   "missing account",
			mutate: func(_ *testutil.TestVerifier, req *types.VerifyRequest) { req.AccountID = "" },
			reason: types.ReasonMalformed,
		},
		{
			name:   "missing signature",
			mutate: func(_ *testutil.TestVerifier, req *types.VerifyRequest) { req.Signature = "" },
			reason: types.ReasonMalformed,
		},
		{
			name:   "missing nonce",
			mutate: func(_ *testutil.TestVerifier, req *types.VerifyRequest) { req.Nonce = "" },
			reason: types.ReasonMalformed,
		},
		{
			name:   "missing timestamp",
			mutate: func(_ *testutil.TestVerifier, req *types.VerifyRequest) { req.Timestamp = 0 },
			reason: types.ReasonMalformed,
		},
		{
			name:   "garbage signature",
			mutate: func(_ *testutil.TestVerifier, req *types.VerifyRequest) { req.Signature = "!!!" },
			reason: types.ReasonMalformed,
		},
		{
			name:   "short nonce",
			mutate: func(_ *testutil.TestVerifier, req *types.VerifyRequest) { req.Nonce = "AAAA" },
			reason: types.ReasonMalformed,
		},
		{
			name:   "unsupported key type",
			mutate: func(_ *testutil.TestVerifier, req *types.VerifyRequest) { req.PublicKey = "secp256k1:abc" },
			reason: types.ReasonMalformed,
		},
		{
			name:   "other key",
			mutate: func(_ *testutil.TestVerifier, req *types.VerifyRequest) { req.PublicKey = stranger.PublicKey },
			reason: types.ReasonMismatch,
		},
		{
			name:   "wrong recipient",
			mutate: func(_ *testutil.TestVerifier, req *types.VerifyRequest) { req.Recipient = "evil.near" },
			reason: types.ReasonWrongRecipient,
		},
		{
			name:   "different message",
			mutate: func(_ *testutil.TestVerifier, req *types.VerifyRequest) { req.Message = "Send all my tokens" },
			reason: types.ReasonMismatch,
		},
		{
			name:   "older than window",
			mutate: func(tv *testutil.TestVerifier, _ *types.VerifyRequest) { tv.Clock.Advance(5*time.Minute + time.Second) },
			reason: types.ReasonExpired,
		},
		{
			name: "too far in the future",
			mutate: func(tv *testutil.TestVerifier, req *types.VerifyRequest) {
				req.Timestamp = tv.Clock.Now().Add(time.Minute).UnixMilli()
			},
			reason: types.ReasonExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tv := testutil.NewTestVerifier(t)
			req := wallet.SignedRequest(t, tv.Service.ExpectedMessage(), testutil.VectorRecipient, tv.Clock.Now())
			tt.mutate(tv, req)

			resp := tv.Service.Verify(req)
			assert.False(t, resp.Valid)
			assert.Equal(t, tt.reason, resp.Reason)
			assert.NotEmpty(t, resp.Error)
			assert.Empty(t, resp.Receipt)
			assert.Equal(t, 0, tv.Store.Len(), "rejected requests must not consume nonces")
		})
	}
}

func TestVerify_InsideWindowEdges(t *testing.T) {
	tv := testutil.NewTestVerifier(t)
	wallet := testutil.NewTestWallet("alice.near", 0)
	now := tv.Clock.Now()

	old := wallet.SignedRequest(t, tv.Service.ExpectedMessage(), testutil.VectorRecipient, now.Add(-5*time.Minute))
	assert.True(t, tv.Service.Verify(old).Valid)

	skewed := wallet.SignedRequest(t, tv.Service.ExpectedMessage(), testutil.VectorRecipient, now.Add(30*time.Second))
	assert.True(t, tv.Service.Verify(skewed).Valid)
}

func TestVerify_ReplayRejected(t *testing.T) {
	tv := testutil.NewTestVerifier(t)
	wallet := testutil.NewTestWallet("alice.near", 0)

	req := wallet.SignedRequest(t, tv.Service.ExpectedMessage(), testutil.VectorRecipient, tv.Clock.Now())

	first := tv.Service.Verify(req)
	require.True(t, first.Valid, first.Error)

	second := tv.Service.Verify(req)
	assert.False(t, second.Valid)
	assert.Equal(t, types.ReasonReplayed, second.Reason)
}

func TestVerify_ReplayWithAlternateNonceEncoding(t *testing.T) {
	tv := testutil.NewTestVerifier(t)
	wallet := testutil.NewTestWallet("alice.near", 0)

	req := wallet.SignedRequest(t, tv.Service.ExpectedMessage(), testutil.VectorRecipient, tv.Clock.Now())
	require.True(t, tv.Service.Verify(req).Valid)

	raw, err := nep413.DecodeNonce(req.Nonce)
	require.NoError(t, err)

	replay := *req
	replay.Nonce = base64RawURL(raw)
	require.NotEqual(t, req.Nonce, replay.Nonce)

	resp := tv.Service.Verify(&replay)
	assert.False(t, resp.Valid)
	assert.Equal(t, types.ReasonReplayed, resp.Reason)
}

func TestVerify_ConcurrentReplaySingleWinner(t *testing.T) {
	tv := testutil.NewTestVerifier(t)
	wallet := testutil.NewTestWallet("alice.near", 0)
	req := wallet.SignedRequest(t, tv.Service.ExpectedMessage(), testutil.VectorRecipient, tv.Clock.Now())

	var valid atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			copied := *req
			if tv.Service.Verify(&copied).Valid {
				valid.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), valid.Load())
}

func TestVerify_StoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockINonceStore(ctrl)
	store.EXPECT().
		ConsumeNonce(gomock.Any()).
		Return(false, errors.New("connection refused"))

	svc := newServiceWithStore(t, store)
	wallet := testutil.NewTestWallet("alice.near", 0)

	resp := svc.Verify(wallet.SignedRequest(t, svc.ExpectedMessage(), testutil.VectorRecipient, time.Now()))
	assert.False(t, resp.Valid)
	assert.Equal(t, types.ReasonUnavailable, resp.Reason)
}

func TestVerify_ConsumedRecordContents(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockINonceStore(ctrl)

	wallet := testutil.NewTestWallet("alice.near", 0)
	signedAt := time.Now()

	var captured *persistence.NonceRecord
	store.EXPECT().
		ConsumeNonce(gomock.Any()).
		DoAndReturn(func(record *persistence.NonceRecord) (bool, error) {
			captured = record
			return true, nil
		})

	svc := newServiceWithStore(t, store)
	req := wallet.SignedRequest(t, svc.ExpectedMessage(), testutil.VectorRecipient, signedAt)
	resp := svc.Verify(req)
	require.True(t, resp.Valid, resp.Error)

	require.NotNil(t, captured)
	assert.Equal(t, req.Nonce, captured.Nonce)
	assert.Equal(t, "alice.near", captured.AccountID)
	assert.Equal(t, testutil.VectorRecipient, captured.Recipient)
	assert.Equal(t, wallet.PublicKey, captured.PublicKey)
	assert.Equal(t, signedAt.Add(5*time.Minute+time.Second).UnixMilli(), captured.ExpiresAt)
}

func TestVerify_InvalidSignatureDoesNotTouchStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockINonceStore(ctrl)
	// no EXPECT: any call fails the test

	svc := newServiceWithStore(t, store)
	wallet := testutil.NewTestWallet("alice.near", 0)
	req := wallet.SignedRequest(t, "something else", testutil.VectorRecipient, time.Now())

	resp := svc.Verify(req)
	assert.Equal(t, types.ReasonMismatch, resp.Reason)
}

func TestVerifyBlob(t *testing.T) {
	tv := testutil.NewTestVerifier(t)
	wallet := testutil.NewTestWallet("alice.near", 0)

	sigCtx := wallet.SignedContext(t, tv.Service.ExpectedMessage(), testutil.VectorRecipient, tv.Clock.Now())
	blob := []byte("provider-header\x00\x00" + mustJSON(t, sigCtx) + "\x00trailer")

	resp := tv.Service.VerifyBlob(blob)
	require.True(t, resp.Valid, resp.Error)
	assert.Equal(t, "alice.near", resp.AccountID)

	again := tv.Service.VerifyBlob(blob)
	assert.Equal(t, types.ReasonReplayed, again.Reason)

	expected := `
# HELP nep413_verifier_extractions_total No of blob extraction attempts partitioned by result
# TYPE nep413_verifier_extractions_total counter
nep413_verifier_extractions_total{result="found"} 2
`
	require.NoError(t, promtestutil.GatherAndCompare(tv.Registry, strings.NewReader(expected), "nep413_verifier_extractions_total"))
}

func TestVerifyBlob_Unextractable(t *testing.T) {
	tv := testutil.NewTestVerifier(t)

	for _, blob := range [][]byte{nil, []byte("no json here"), []byte(`{"accountId": 1}`)} {
		resp := tv.Service.VerifyBlob(blob)
		assert.False(t, resp.Valid)
		assert.Equal(t, types.ReasonUnextractable, resp.Reason)
	}
}

func TestVerify_Metrics(t *testing.T) {
	tv := testutil.NewTestVerifier(t)
	wallet := testutil.NewTestWallet("alice.near", 0)

	req := wallet.SignedRequest(t, tv.Service.ExpectedMessage(), testutil.VectorRecipient, tv.Clock.Now())
	tv.Service.Verify(req)
	tv.Service.Verify(req)

	count, err := promtestutil.GatherAndCount(tv.Registry, "nep413_verifier_verifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series each for valid and replayed")
}

func TestNewService_InvalidConfig(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ext, err := extractor.NewHeuristicExtractor()
	require.NoError(t, err)
	store := mocks.NewMockINonceStore(gomock.NewController(t))

	_, err = verification.NewService(nil, store, ext, nil, nil, testLogger)
	assert.Error(t, err)

	_, err = verification.NewService(&verification.Config{TimestampWindow: time.Minute}, store, ext, nil, nil, testLogger)
	assert.Error(t, err)

	_, err = verification.NewService(&verification.Config{Recipient: "r"}, store, ext, nil, nil, testLogger)
	assert.Error(t, err)

	_, err = verification.NewService(&verification.Config{Recipient: "r", TimestampWindow: time.Minute}, nil, ext, nil, nil, testLogger)
	assert.Error(t, err)
}
