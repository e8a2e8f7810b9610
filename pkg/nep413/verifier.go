package nep413

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// InvalidSignatureMessage is the error text for a well-formed signature that
// does not match the payload
const InvalidSignatureMessage = "Invalid signature"

// Reason classifies a verification outcome
type Reason string

const (
	ReasonValid     Reason = "valid"
	ReasonMalformed Reason = "malformed"
	ReasonMismatch  Reason = "mismatch"
)

// ErrSignatureMismatch is carried by mismatch outcomes so callers can use errors.Is
var ErrSignatureMismatch = errors.New(InvalidSignatureMessage)

// VerificationOutcome is returned for every verification attempt. A mismatch
// is an expected negative result and is never reported as a Go error.
type VerificationOutcome struct {
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
	Reason Reason `json:"reason"`

	// Cause is the underlying error for malformed or mismatched input
	Cause error `json:"-"`
}

// IsMalformed reports whether the input could not be decoded
func (o *VerificationOutcome) IsMalformed() bool {
	return o.Reason == ReasonMalformed
}

// IsMismatch reports whether the input decoded but the signature did not match
func (o *VerificationOutcome) IsMismatch() bool {
	return o.Reason == ReasonMismatch
}

func validOutcome() *VerificationOutcome {
	return &VerificationOutcome{Valid: true, Reason: ReasonValid}
}

func mismatchOutcome() *VerificationOutcome {
	return &VerificationOutcome{
		Valid:  false,
		Error:  InvalidSignatureMessage,
		Reason: ReasonMismatch,
		Cause:  ErrSignatureMismatch,
	}
}

func malformedOutcome(err error) *VerificationOutcome {
	return &VerificationOutcome{
		Valid:  false,
		Error:  err.Error(),
		Reason: ReasonMalformed,
		Cause:  err,
	}
}

// Verify checks a wallet signature over the NEP-413 digest of
// (message, nonce, recipient). The nonce and signature are base64 and the
// public key is "ed25519:<base58>".
func Verify(message, signatureBase64, publicKey, nonceBase64, recipient string) *VerificationOutcome {
	nonce, err := DecodeNonce(nonceBase64)
	if err != nil {
		return malformedOutcome(fmt.Errorf("invalid nonce: %w", err))
	}

	return VerifyPayload(NewSignedPayload(message, nonce, recipient), signatureBase64, publicKey)
}

// VerifyPayload verifies a signature against an already decoded payload
func VerifyPayload(payload *SignedPayload, signatureBase64, publicKey string) *VerificationOutcome {
	digest, err := HashPayload(payload)
	if err != nil {
		return malformedOutcome(err)
	}

	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return malformedOutcome(err)
	}

	sig, err := DecodeSignature(signatureBase64)
	if err != nil {
		return malformedOutcome(err)
	}

	if !ed25519.Verify(pub, digest[:], sig) {
		return mismatchOutcome()
	}
	return validOutcome()
}
