package types

// VerifyRequest is the body of POST /verify
type VerifyRequest struct {
	SignatureContext

	// Message and Recipient are optional. When empty the service uses its
	// configured recipient and the message it would have issued.
	Message   string `json:"message,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

// VerifyResponse is returned by POST /verify and POST /verify/blob
type VerifyResponse struct {
	Valid     bool               `json:"valid"`
	Error     string             `json:"error,omitempty"`
	Reason    VerificationReason `json:"reason"`
	AccountID string             `json:"accountId,omitempty"`
	Receipt   string             `json:"receipt,omitempty"`
}

// VerifyBlobRequest is the body of POST /verify/blob
type VerifyBlobRequest struct {
	Blob string `json:"blob"`
}

// ChallengeRequest is the optional body of POST /challenge
type ChallengeRequest struct {
	AccountID string `json:"accountId,omitempty"`
}

// HashRequest is the body of POST /hash
type HashRequest struct {
	Message   string `json:"message"`
	Nonce     string `json:"nonce"`
	Recipient string `json:"recipient"`
}

// HashResponse carries the hex digest for debugging wallet integrations
type HashResponse struct {
	Hash string `json:"hash"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status      string `json:"status"`
	Persistence string `json:"persistence"`
}

// ReceiptKeyResponse is returned by GET /receipt/pubkey
type ReceiptKeyResponse struct {
	Issuer    string `json:"issuer"`
	PublicKey string `json:"publicKey"`
}
