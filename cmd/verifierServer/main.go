package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nearid/nep413-verifier/pkg/challenge"
	"github.com/nearid/nep413-verifier/pkg/config"
	"github.com/nearid/nep413-verifier/pkg/extractor"
	"github.com/nearid/nep413-verifier/pkg/logger"
	"github.com/nearid/nep413-verifier/pkg/metrics"
	"github.com/nearid/nep413-verifier/pkg/receipt"
	"github.com/nearid/nep413-verifier/pkg/server"
	"github.com/nearid/nep413-verifier/pkg/verification"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "verifier-server",
		Usage: "NEP-413 signed message verifier",
		Description: `An HTTP service that authenticates NEAR accounts from wallet-signed messages.

This server implements:
- Challenge issuance for wallet signMessage requests
- NEP-413 signature verification with freshness and replay protection
- Extraction of signed message records from opaque provider payloads
- Short-lived EdDSA receipts for verified accounts`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvVerifierPort},
			},
			&cli.StringFlag{
				Name:     "recipient",
				Usage:    "Identifier signatures must be scoped to, e.g. a contract account",
				EnvVars:  []string{config.EnvVerifierRecipient},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "origin",
				Usage:    "Site URL shown in the challenge message",
				EnvVars:  []string{config.EnvVerifierOrigin},
				Required: true,
			},
			&cli.DurationFlag{
				Name:    "timestamp-window",
				Value:   config.DefaultTimestampWindow,
				Usage:   "Maximum age of a signed message",
				EnvVars: []string{config.EnvVerifierTimestampWindow},
			},
			&cli.DurationFlag{
				Name:    "future-skew",
				Value:   config.DefaultFutureSkew,
				Usage:   "How far ahead of the server clock a timestamp may be",
				EnvVars: []string{config.EnvVerifierFutureSkew},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Value:   config.PersistenceTypeMemory.String(),
				Usage:   fmt.Sprintf("Nonce store: %s", config.GetSupportedPersistenceTypesString()),
				EnvVars: []string{config.EnvVerifierPersistenceType},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port) for the redis nonce store",
				EnvVars: []string{config.EnvVerifierRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvVerifierRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvVerifierRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for all redis keys",
				EnvVars: []string{config.EnvVerifierRedisKeyPrefix},
			},
			&cli.StringFlag{
				Name:    "badger-path",
				Value:   config.DefaultBadgerPath,
				Usage:   "Data directory for the badger nonce store",
				EnvVars: []string{config.EnvVerifierBadgerPath},
			},
			&cli.StringFlag{
				Name:    "receipt-secret",
				Usage:   "Secret the receipt signing key is derived from; receipts are disabled when empty",
				EnvVars: []string{config.EnvVerifierReceiptSecret},
			},
			&cli.StringFlag{
				Name:    "receipt-issuer",
				Value:   config.DefaultReceiptIssuer,
				Usage:   "iss claim of issued receipts",
				EnvVars: []string{config.EnvVerifierReceiptIssuer},
			},
			&cli.DurationFlag{
				Name:    "receipt-ttl",
				Value:   config.DefaultReceiptTTL,
				Usage:   "Lifetime of issued receipts",
				EnvVars: []string{config.EnvVerifierReceiptTTL},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Value:   config.DefaultRateLimit,
				Usage:   "Requests per second per client, 0 disables",
				EnvVars: []string{config.EnvVerifierRateLimit},
			},
			&cli.IntFlag{
				Name:    "rate-limit-burst",
				Value:   config.DefaultRateLimitBurst,
				Usage:   "Burst size per client",
				EnvVars: []string{config.EnvVerifierRateLimitBurst},
			},
			&cli.StringSliceFlag{
				Name:    "trusted-proxy",
				Usage:   "IP or CIDR of a reverse proxy whose X-Forwarded-For header is trusted (repeatable)",
				EnvVars: []string{config.EnvVerifierTrustedProxies},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvVerifierVerbose},
			},
		},
		Action: runVerifierServer,
	}

	// Flags read their EnvVars while parsing, so the env file must be loaded first
	if err := loadEnvFile(os.Getenv(config.EnvVerifierEnvFile)); err != nil {
		log.Fatalf("Application error: %v", err)
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// loadEnvFile loads path, or ./.env when path is empty, into the environment.
// Variables already set take precedence. A missing ./.env is not an error.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	_ = godotenv.Load()
	return nil
}

func runVerifierServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseVerifierConfig(c)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := newNonceStore(&cfg.Persistence, l)
	if err != nil {
		return fmt.Errorf("failed to create nonce store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.HealthCheck(); err != nil {
		return fmt.Errorf("nonce store health check failed: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewMetrics(registry)
	if err != nil {
		return err
	}

	ext, err := extractor.NewHeuristicExtractor()
	if err != nil {
		return err
	}

	var receipts *receipt.Issuer
	if cfg.Receipt.Enabled() {
		receipts, err = receipt.NewIssuerFromSecret(cfg.Receipt.Issuer, cfg.Receipt.TTL, []byte(cfg.Receipt.Secret))
		if err != nil {
			return fmt.Errorf("failed to create receipt issuer: %w", err)
		}
		l.Sugar().Infow("Receipts enabled", "issuer", receipts.Name(), "public_key", receipts.PublicKey(), "ttl", cfg.Receipt.TTL)
	} else {
		l.Sugar().Warn("Receipts disabled - set NEP413_RECEIPT_SECRET to issue them")
	}

	svc, err := verification.NewService(&verification.Config{
		Recipient:       cfg.Recipient,
		Origin:          cfg.Origin,
		TimestampWindow: cfg.TimestampWindow,
		FutureSkew:      cfg.FutureSkew,
	}, store, ext, receipts, m, l)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Dependencies{
		Verifier:   svc,
		Challenges: challenge.NewIssuer(cfg.Recipient, cfg.Origin),
		Receipts:   receipts,
		Store:      store,
		Gatherer:   registry,
	}, server.Config{
		Port:            cfg.Port,
		RateLimit:       cfg.RateLimit,
		RateLimitBurst:  cfg.RateLimitBurst,
		PersistenceType: cfg.Persistence.Type.String(),
		TrustedProxies:  cfg.TrustedProxies,
	}, l)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		l.Sugar().Infow("Verifier Server Configuration",
			"port", cfg.Port,
			"recipient", cfg.Recipient,
			"origin", cfg.Origin,
			"timestamp_window", cfg.TimestampWindow,
			"future_skew", cfg.FutureSkew,
			"persistence", cfg.Persistence.Type,
			"rate_limit", cfg.RateLimit,
			"rate_limit_burst", cfg.RateLimitBurst,
			"trusted_proxies", cfg.TrustedProxies)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Verifier Server running", "port", cfg.Port, "recipient", cfg.Recipient)
	l.Sugar().Infow("Available endpoints",
		"challenge", "POST /challenge",
		"verify", "POST /verify",
		"verify_blob", "POST /verify/blob",
		"receipts", "GET /receipt/pubkey, GET /receipt/jwks",
		"operations", "POST /hash, GET /health, GET /metrics")
	l.Sugar().Info("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	l.Sugar().Infow("Shutting down", "signal", sig.String())
	return srv.Stop()
}

func parseVerifierConfig(c *cli.Context) *config.VerifierServerConfig {
	return &config.VerifierServerConfig{
		Port:            c.Int("port"),
		Recipient:       c.String("recipient"),
		Origin:          c.String("origin"),
		TimestampWindow: c.Duration("timestamp-window"),
		FutureSkew:      c.Duration("future-skew"),
		Persistence: config.PersistenceConfig{
			Type: config.PersistenceType(c.String("persistence")),
			Redis: config.RedisConfig{
				Address:   c.String("redis-address"),
				Password:  c.String("redis-password"),
				DB:        c.Int("redis-db"),
				KeyPrefix: c.String("redis-key-prefix"),
			},
			BadgerPath: c.String("badger-path"),
		},
		Receipt: config.ReceiptConfig{
			Secret: c.String("receipt-secret"),
			Issuer: c.String("receipt-issuer"),
			TTL:    c.Duration("receipt-ttl"),
		},
		RateLimit:      c.Float64("rate-limit"),
		RateLimitBurst: c.Int("rate-limit-burst"),
		TrustedProxies: c.StringSlice("trusted-proxy"),
		Debug:          c.Bool("verbose"),
		Verbose:        c.Bool("verbose"),
	}
}
