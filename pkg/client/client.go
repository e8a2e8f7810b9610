package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nearid/nep413-verifier/pkg/types"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// ClientConfig holds the configuration for the verifier client
type ClientConfig struct {
	ServerURL  string
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// Client talks to a running verifier server
type Client struct {
	serverURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

// StatusError is returned when the server answers with an unexpected status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("verifier returned status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a new verifier client
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.ServerURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		serverURL:  strings.TrimRight(config.ServerURL, "/"),
		httpClient: httpClient,
		logger:     config.Logger,
	}, nil
}

// RequestChallenge asks the server for a fresh message to sign
func (c *Client) RequestChallenge(ctx context.Context, accountID string) (*types.Challenge, error) {
	var challenge types.Challenge
	if err := c.do(ctx, http.MethodPost, "/challenge", types.ChallengeRequest{AccountID: accountID}, &challenge, http.StatusOK); err != nil {
		return nil, fmt.Errorf("failed to request challenge: %w", err)
	}

	c.logger.Sugar().Debugw("Received challenge", "challenge_id", challenge.ID, "recipient", challenge.Recipient)
	return &challenge, nil
}

// Verify submits a signed message record. A rejected signature is a normal
// response with Valid=false, not an error.
func (c *Client) Verify(ctx context.Context, req *types.VerifyRequest) (*types.VerifyResponse, error) {
	var resp types.VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/verify", req, &resp, http.StatusOK, http.StatusServiceUnavailable); err != nil {
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}

	c.logger.Sugar().Infow("Verification result", "account_id", resp.AccountID, "valid", resp.Valid, "reason", resp.Reason)
	return &resp, nil
}

// VerifyBlob submits an opaque provider blob containing a signed message record
func (c *Client) VerifyBlob(ctx context.Context, blob string) (*types.VerifyResponse, error) {
	var resp types.VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/verify/blob", types.VerifyBlobRequest{Blob: blob}, &resp, http.StatusOK, http.StatusServiceUnavailable); err != nil {
		return nil, fmt.Errorf("failed to verify blob: %w", err)
	}

	c.logger.Sugar().Infow("Blob verification result", "account_id", resp.AccountID, "valid", resp.Valid, "reason", resp.Reason)
	return &resp, nil
}

// Hash asks the server for the digest of (message, nonce, recipient)
func (c *Client) Hash(ctx context.Context, req *types.HashRequest) (string, error) {
	var resp types.HashResponse
	if err := c.do(ctx, http.MethodPost, "/hash", req, &resp, http.StatusOK); err != nil {
		return "", fmt.Errorf("failed to hash payload: %w", err)
	}
	return resp.Hash, nil
}

// ReceiptKey fetches the key receipts are signed with
func (c *Client) ReceiptKey(ctx context.Context) (*types.ReceiptKeyResponse, error) {
	var resp types.ReceiptKeyResponse
	if err := c.do(ctx, http.MethodGet, "/receipt/pubkey", nil, &resp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("failed to fetch receipt key: %w", err)
	}
	return &resp, nil
}

// Health reports the server's health. A 503 is returned as a response with Status "unavailable".
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, error) {
	var resp types.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp, http.StatusOK, http.StatusServiceUnavailable); err != nil {
		return nil, fmt.Errorf("failed to check health: %w", err)
	}
	return &resp, nil
}

// do sends body as JSON and decodes the response into out when the status is one of accepted
func (c *Client) do(ctx context.Context, method, path string, body, out any, accepted ...int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	ok := false
	for _, code := range accepted {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
