// Package verification turns a wallet's signed message into an authentication
// decision: signature validity, freshness, single use, and an optional receipt.
package verification

import (
	"fmt"
	"time"

	"github.com/nearid/nep413-verifier/pkg/challenge"
	"github.com/nearid/nep413-verifier/pkg/extractor"
	"github.com/nearid/nep413-verifier/pkg/metrics"
	"github.com/nearid/nep413-verifier/pkg/nep413"
	"github.com/nearid/nep413-verifier/pkg/persistence"
	"github.com/nearid/nep413-verifier/pkg/receipt"
	"github.com/nearid/nep413-verifier/pkg/types"
	"go.uber.org/zap"
)

// retentionMargin keeps a nonce slightly past the moment its timestamp leaves
// the freshness window
const retentionMargin = time.Second

// Config scopes a Service to one relying party
type Config struct {
	Recipient       string
	Origin          string
	TimestampWindow time.Duration
	FutureSkew      time.Duration
}

// Service verifies signed messages against a nonce store
type Service struct {
	config    Config
	store     persistence.INonceStore
	extractor extractor.Extractor
	receipts  *receipt.Issuer
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the verification pipeline. receipts and m may be nil.
func NewService(
	cfg *Config,
	store persistence.INonceStore,
	ext extractor.Extractor,
	receipts *receipt.Issuer,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("verification config cannot be nil")
	}
	if cfg.Recipient == "" {
		return nil, fmt.Errorf("recipient cannot be empty")
	}
	if cfg.TimestampWindow <= 0 {
		return nil, fmt.Errorf("timestamp window must be positive")
	}
	if store == nil {
		return nil, fmt.Errorf("nonce store cannot be nil")
	}
	if ext == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config:    *cfg,
		store:     store,
		extractor: ext,
		receipts:  receipts,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ExpectedMessage is the message a wallet signs when the caller does not supply one
func (s *Service) ExpectedMessage() string {
	return challenge.BuildMessage(s.config.Recipient, s.config.Origin)
}

// Verify runs the full check for one signed message. Every outcome, including
// storage failure, is reported in the response rather than as an error.
func (s *Service) Verify(req *types.VerifyRequest) *types.VerifyResponse {
	start := s.now()
	resp := s.verify(req, start)
	s.record(req, resp, start)
	return resp
}

// VerifyBlob extracts a signed message from an opaque provider blob and verifies it
func (s *Service) VerifyBlob(blob []byte) *types.VerifyResponse {
	start := s.now()

	sigCtx := s.extractor.TryExtractSignedPayload(blob)
	s.metrics.ObserveExtraction(sigCtx != nil)
	if sigCtx == nil {
		resp := reject(types.ReasonUnextractable, "no signed message found in blob")
		s.record(nil, resp, start)
		return resp
	}

	req := &types.VerifyRequest{SignatureContext: *sigCtx}
	resp := s.verify(req, start)
	s.record(req, resp, start)
	return resp
}

func (s *Service) verify(req *types.VerifyRequest, now time.Time) *types.VerifyResponse {
	if err := validateRequest(req); err != nil {
		return reject(types.ReasonMalformed, err.Error())
	}

	recipient := s.config.Recipient
	if req.Recipient != "" && req.Recipient != recipient {
		return reject(types.ReasonWrongRecipient, fmt.Sprintf("signature is scoped to %q, expected %q", req.Recipient, recipient))
	}

	message := s.ExpectedMessage()
	if req.Message != "" && req.Message != message {
		return reject(types.ReasonMismatch, "message does not match the issued challenge")
	}

	// Timestamps carry millisecond precision, so the window is compared in milliseconds
	ageMs := now.UnixMilli() - req.Timestamp
	if ageMs > s.config.TimestampWindow.Milliseconds() {
		return reject(types.ReasonExpired, fmt.Sprintf("signature is %s old, window is %s", time.Duration(ageMs)*time.Millisecond, s.config.TimestampWindow))
	} else if -ageMs > s.config.FutureSkew.Milliseconds() {
		return reject(types.ReasonExpired, "signature timestamp is in the future")
	}

	outcome := nep413.Verify(message, req.Signature, req.PublicKey, req.Nonce, recipient)
	if !outcome.Valid {
		return reject(types.VerificationReason(outcome.Reason), outcome.Error)
	}

	// Canonical form so padded and unpadded encodings share one store key
	rawNonce, err := nep413.DecodeNonce(req.Nonce)
	if err != nil {
		return reject(types.ReasonMalformed, err.Error())
	}
	nonce := nep413.EncodeNonce(rawNonce)

	consumed, err := s.store.ConsumeNonce(&persistence.NonceRecord{
		Nonce:      nonce,
		AccountID:  req.AccountID,
		Recipient:  recipient,
		PublicKey:  req.PublicKey,
		ConsumedAt: now.UnixMilli(),
		ExpiresAt:  req.Timestamp + (s.config.TimestampWindow + retentionMargin).Milliseconds(),
	})
	if err != nil {
		s.logger.Sugar().Errorw("Failed to consume nonce", "nonce", nonce, "error", err)
		return reject(types.ReasonUnavailable, "nonce store unavailable")
	}
	if !consumed {
		return reject(types.ReasonReplayed, "nonce has already been used")
	}

	resp := &types.VerifyResponse{
		Valid:     true,
		Reason:    types.ReasonValid,
		AccountID: req.AccountID,
	}

	if s.receipts != nil {
		token, err := s.receipts.Issue(&receipt.Claims{
			AccountID: req.AccountID,
			Audience:  recipient,
			PublicKey: req.PublicKey,
			Nonce:     nonce,
		})
		if err != nil {
			s.logger.Sugar().Errorw("Failed to issue receipt", "account_id", req.AccountID, "error", err)
		} else {
			resp.Receipt = token
		}
	}

	return resp
}

func (s *Service) record(req *types.VerifyRequest, resp *types.VerifyResponse, start time.Time) {
	s.metrics.ObserveVerification(string(resp.Reason), s.now().Sub(start))

	accountID := ""
	if req != nil {
		accountID = req.AccountID
	}
	sugar := s.logger.Sugar()
	switch resp.Reason {
	case types.ReasonValid:
		sugar.Infow("Signed message verified", "account_id", accountID)
	case types.ReasonMismatch:
		sugar.Infow("Signature mismatch", "account_id", accountID, "reason", string(resp.Reason), "error", resp.Error)
	case types.ReasonUnavailable:
		sugar.Errorw("Signed message not verified", "account_id", accountID, "reason", string(resp.Reason), "error", resp.Error)
	default:
		// malformed, unextractable, expired, replayed and wrong recipient
		sugar.Warnw("Signed message rejected", "account_id", accountID, "reason", string(resp.Reason), "error", resp.Error)
	}
}

func validateRequest(req *types.VerifyRequest) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}
	switch {
	case req.AccountID == "":
		return fmt.Errorf("accountId is required")
	case req.Signature == "":
		return fmt.Errorf("signature is required")
	case req.PublicKey == "":
		return fmt.Errorf("publicKey is required")
	case req.Nonce == "":
		return fmt.Errorf("nonce is required")
	case req.Timestamp <= 0:
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

func reject(reason types.VerificationReason, msg string) *types.VerifyResponse {
	return &types.VerifyResponse{Valid: false, Reason: reason, Error: msg}
}
