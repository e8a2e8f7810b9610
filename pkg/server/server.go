package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nearid/nep413-verifier/pkg/challenge"
	"github.com/nearid/nep413-verifier/pkg/persistence"
	"github.com/nearid/nep413-verifier/pkg/receipt"
	"github.com/nearid/nep413-verifier/pkg/verification"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

/*
Server exposes the verifier over HTTP.

Sign-in Flow:
  POST /challenge:
    - Returns { id, message, recipient, nonce, issuedAt }
    - The client passes message, nonce and recipient to the wallet's signMessage

  POST /verify:
    - Request: { accountId, signature, publicKey, nonce, timestamp[, message, recipient] }
    - Checks freshness, the NEP-413 signature and single use of the nonce
    - Response: { valid, reason, error?, accountId?, receipt? }
    - 200 for every verdict, 503 when the nonce store cannot be reached

  POST /verify/blob:
    - Request: { blob } where blob is an opaque provider payload (raw or hex)
    - The signed message record is located inside the blob, then verified as above

Receipts:
  - A successful verification carries an EdDSA JWT (sub=accountId, aud=recipient)
  - GET /receipt/pubkey and GET /receipt/jwks publish the verification key

Operations:
  POST /hash:     debug digest for { message, nonce, recipient }
  GET /health:    nonce store health
  GET /metrics:   Prometheus exposition

Every response carries X-Request-Id. Clients are rate limited per remote
address; excess requests get 429.
*/

const (
	maxBodyBytes      = 64 << 10
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Config holds the transport-level settings
type Config struct {
	Port            int
	RateLimit       float64 // requests per second per client, 0 disables
	RateLimitBurst  int
	PersistenceType string
	// TrustedProxies lists the IPs or CIDR ranges whose X-Forwarded-For header is believed
	TrustedProxies []string
}

// Dependencies are the components the handlers call into. Receipts may be nil.
type Dependencies struct {
	Verifier   *verification.Service
	Challenges *challenge.Issuer
	Receipts   *receipt.Issuer
	Store      persistence.INonceStore
	Gatherer   prometheus.Gatherer
}

// Server handles HTTP requests for the verifier
type Server struct {
	deps       Dependencies
	config     Config
	logger     *zap.Logger
	limiter    *clientLimiter
	proxies    trustedProxies
	httpServer *http.Server
}

// NewServer creates a new server instance
func NewServer(deps Dependencies, cfg Config, logger *zap.Logger) (*Server, error) {
	if deps.Verifier == nil || deps.Challenges == nil || deps.Store == nil {
		return nil, fmt.Errorf("server requires a verifier, a challenge issuer and a nonce store")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	proxies, err := parseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		deps:    deps,
		config:  cfg,
		logger:  logger,
		limiter: newClientLimiter(cfg.RateLimit, cfg.RateLimitBurst),
		proxies: proxies,
	}

	router := mux.NewRouter()
	router.Use(s.requestIDMiddleware, s.rateLimitMiddleware)

	router.HandleFunc("/challenge", s.handleChallenge).Methods(http.MethodPost)
	router.HandleFunc("/verify", s.handleVerify).Methods(http.MethodPost)
	router.HandleFunc("/verify/blob", s.handleVerifyBlob).Methods(http.MethodPost)
	router.HandleFunc("/hash", s.handleHash).Methods(http.MethodPost)

	router.HandleFunc("/receipt/pubkey", s.handleReceiptPublicKey).Methods(http.MethodGet)
	router.HandleFunc("/receipt/jwks", s.handleReceiptKeySet).Methods(http.MethodGet)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "port", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests and stops the HTTP server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
