package types

// ReceiptJWTAudience is used when no recipient is configured for a receipt
const ReceiptJWTAudience = "NEP-413 Verifier"

// SignatureContext is the signed-message record a wallet hands back after a
// signing ceremony. It typically arrives embedded in a verification provider
// callback and is recovered by the extractor.
type SignatureContext struct {
	AccountID string `json:"accountId"`
	Signature string `json:"signature"` // base64 ed25519 signature
	PublicKey string `json:"publicKey"` // "ed25519:<base58>"
	Nonce     string `json:"nonce"`     // base64, 32 bytes once decoded
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Challenge is what a client asks the wallet to sign
type Challenge struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
	Nonce     string `json:"nonce"`
	IssuedAt  int64  `json:"issuedAt"` // unix milliseconds

	// AccountID echoes the account the challenge was requested for, if any
	AccountID string `json:"accountId,omitempty"`
}

// VerificationReason classifies a service-level verification result. The
// first three mirror nep413.Reason, the rest are produced by the service.
type VerificationReason string

const (
	ReasonValid          VerificationReason = "valid"
	ReasonMalformed      VerificationReason = "malformed"
	ReasonMismatch       VerificationReason = "mismatch"
	ReasonExpired        VerificationReason = "expired"
	ReasonReplayed       VerificationReason = "replayed"
	ReasonUnextractable  VerificationReason = "unextractable"
	ReasonUnavailable    VerificationReason = "unavailable"
	ReasonWrongRecipient VerificationReason = "wrong_recipient"
)
