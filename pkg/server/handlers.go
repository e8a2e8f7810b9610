package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nearid/nep413-verifier/pkg/nep413"
	"github.com/nearid/nep413-verifier/pkg/types"
)

// errorResponse is the body of every non-verdict error
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody reads a JSON body into dst. An empty body is allowed when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// verdictStatus maps a verification result to an HTTP status. Every verdict
// is a 200; only an unreachable nonce store is a server-side failure.
func verdictStatus(resp *types.VerifyResponse) int {
	if resp.Reason == types.ReasonUnavailable {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// handleChallenge issues a fresh message for the wallet to sign
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req types.ChallengeRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	c, err := s.deps.Challenges.NewChallenge(req.AccountID)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to issue challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.logger.Sugar().Debugw("Issued challenge", "challenge_id", c.ID, "account_id", req.AccountID)
	writeJSON(w, http.StatusOK, c)
}

// handleVerify verifies a signed message record
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req types.VerifyRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	resp := s.deps.Verifier.Verify(&req)
	writeJSON(w, verdictStatus(resp), resp)
}

// handleVerifyBlob extracts and verifies a signed message record from an opaque blob
func (s *Server) handleVerifyBlob(w http.ResponseWriter, r *http.Request) {
	var req types.VerifyBlobRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.Blob == "" {
		writeError(w, http.StatusBadRequest, "blob is required")
		return
	}

	resp := s.deps.Verifier.VerifyBlob([]byte(req.Blob))
	writeJSON(w, verdictStatus(resp), resp)
}

// handleHash returns the digest a wallet should have signed, for debugging integrations
func (s *Server) handleHash(w http.ResponseWriter, r *http.Request) {
	var req types.HashRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	nonce, err := nep413.DecodeNonce(req.Nonce)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid nonce: %v", err))
		return
	}

	hash, err := nep413.HashPayloadHex(nep413.NewSignedPayload(req.Message, nonce, req.Recipient))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, types.HashResponse{Hash: hash})
}

// handleReceiptPublicKey publishes the receipt verification key
func (s *Server) handleReceiptPublicKey(w http.ResponseWriter, r *http.Request) {
	if s.deps.Receipts == nil {
		writeError(w, http.StatusNotFound, "receipts are not enabled")
		return
	}

	writeJSON(w, http.StatusOK, types.ReceiptKeyResponse{
		Issuer:    s.deps.Receipts.Name(),
		PublicKey: s.deps.Receipts.PublicKey(),
	})
}

// handleReceiptKeySet publishes the receipt verification key as a JWK set
func (s *Server) handleReceiptKeySet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Receipts == nil {
		writeError(w, http.StatusNotFound, "receipts are not enabled")
		return
	}

	set, err := s.deps.Receipts.KeySet()
	if err != nil {
		s.logger.Sugar().Errorw("Failed to build receipt key set", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	w.Header().Set("Content-Type", "application/jwk-set+json")
	_ = json.NewEncoder(w).Encode(set)
}

// handleHealth reports whether the nonce store is reachable
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{Status: "ok", Persistence: s.config.PersistenceType}

	if err := s.deps.Store.HealthCheck(); err != nil {
		s.logger.Sugar().Warnw("Health check failed", "error", err)
		resp.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
