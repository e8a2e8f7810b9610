package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/nearid/nep413-verifier/pkg/client"
	"github.com/nearid/nep413-verifier/pkg/config"
	"github.com/nearid/nep413-verifier/pkg/extractor"
	"github.com/nearid/nep413-verifier/pkg/logger"
	"github.com/nearid/nep413-verifier/pkg/nep413"
	"github.com/nearid/nep413-verifier/pkg/types"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "verifier-client",
		Usage: "NEP-413 signing and verification toolkit",
		Description: `Offline tools for NEP-413 signed messages plus a client for a running verifier.

Offline commands work without a server:
- keygen / sign produce test keys and wallet-equivalent signatures
- hash prints the digest a wallet signs
- verify checks a signature locally
- extract finds a signed message record inside an opaque blob

challenge and remote-verify talk to a verifier server.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Verifier server URL",
				Value:   fmt.Sprintf("http://localhost:%d", config.DefaultPort),
				EnvVars: []string{config.EnvVerifierServerURL},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvVerifierVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "Generate an Ed25519 key pair",
				Action: keygenCommand,
			},
			{
				Name:  "sign",
				Usage: "Sign a message the way a wallet's signMessage does",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "private-key", Usage: "Base64 Ed25519 seed or private key", Required: true},
					&cli.StringFlag{Name: "message", Usage: "Message to sign", Required: true},
					&cli.StringFlag{Name: "recipient", Usage: "Recipient the signature is scoped to", Required: true},
					&cli.StringFlag{Name: "nonce", Usage: "Base64 32-byte nonce (random when omitted)"},
					&cli.StringFlag{Name: "account-id", Usage: "Account id placed in the output record"},
				},
				Action: signCommand,
			},
			{
				Name:  "hash",
				Usage: "Print the hex digest a wallet signs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message", Required: true},
					&cli.StringFlag{Name: "nonce", Usage: "Base64 32-byte nonce", Required: true},
					&cli.StringFlag{Name: "recipient", Required: true},
				},
				Action: hashCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify a signature locally",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message", Required: true},
					&cli.StringFlag{Name: "signature", Usage: "Base64 signature", Required: true},
					&cli.StringFlag{Name: "public-key", Usage: "ed25519:<base58>", Required: true},
					&cli.StringFlag{Name: "nonce", Usage: "Base64 32-byte nonce", Required: true},
					&cli.StringFlag{Name: "recipient", Required: true},
				},
				Action: verifyCommand,
			},
			{
				Name:  "extract",
				Usage: "Find a signed message record inside an opaque blob",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "blob", Usage: "Blob text (hex or raw); read from stdin when omitted"},
				},
				Action: extractCommand,
			},
			{
				Name:  "challenge",
				Usage: "Request a challenge from the server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account-id"},
				},
				Action: challengeCommand,
			},
			{
				Name:  "remote-verify",
				Usage: "Submit a signed message record (JSON) or blob to the server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "record", Usage: "Signed message record JSON; read from stdin when omitted"},
					&cli.BoolFlag{Name: "blob", Usage: "Treat the input as an opaque blob"},
				},
				Action: remoteVerifyCommand,
			},
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput returns the flag value, or stdin when the flag is empty
func readInput(c *cli.Context, flag string) (string, error) {
	if v := c.String(flag); v != "" {
		return v, nil
	}
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// parsePrivateKey accepts a base64 32-byte seed or 64-byte private key
func parsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("private key is not base64: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

func keygenCommand(c *cli.Context) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	return printJSON(c.App.Writer, map[string]string{
		"publicKey":  nep413.FormatPublicKey(pub),
		"privateKey": base64.StdEncoding.EncodeToString(priv.Seed()),
	})
}

func signCommand(c *cli.Context) error {
	priv, err := parsePrivateKey(c.String("private-key"))
	if err != nil {
		return err
	}

	var nonce []byte
	if s := c.String("nonce"); s != "" {
		if nonce, err = nep413.DecodeNonce(s); err != nil {
			return fmt.Errorf("invalid nonce: %w", err)
		}
	} else if nonce, err = nep413.GenerateNonce(nil); err != nil {
		return err
	}

	signature, err := nep413.SignPayload(priv, nep413.NewSignedPayload(c.String("message"), nonce, c.String("recipient")))
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}

	return printJSON(c.App.Writer, types.SignatureContext{
		AccountID: c.String("account-id"),
		Signature: signature,
		PublicKey: nep413.FormatPublicKey(priv.Public().(ed25519.PublicKey)),
		Nonce:     nep413.EncodeNonce(nonce),
		Timestamp: time.Now().UnixMilli(),
	})
}

func hashCommand(c *cli.Context) error {
	nonce, err := nep413.DecodeNonce(c.String("nonce"))
	if err != nil {
		return fmt.Errorf("invalid nonce: %w", err)
	}

	hash, err := nep413.HashPayloadHex(nep413.NewSignedPayload(c.String("message"), nonce, c.String("recipient")))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.App.Writer, hash)
	return err
}

func verifyCommand(c *cli.Context) error {
	outcome := nep413.Verify(
		c.String("message"),
		c.String("signature"),
		c.String("public-key"),
		c.String("nonce"),
		c.String("recipient"),
	)
	if err := printJSON(c.App.Writer, outcome); err != nil {
		return err
	}
	if !outcome.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func extractCommand(c *cli.Context) error {
	blob, err := readInput(c, "blob")
	if err != nil {
		return err
	}

	ext, err := extractor.NewHeuristicExtractor()
	if err != nil {
		return err
	}

	sigCtx := ext.TryExtractSignedPayload([]byte(blob))
	if sigCtx == nil {
		return cli.Exit("no signed message record found", 1)
	}
	return printJSON(c.App.Writer, sigCtx)
}

// createClient creates a verifier client from CLI context
func createClient(c *cli.Context) (*client.Client, error) {
	zapLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return client.NewClient(&client.ClientConfig{
		ServerURL: c.String("server-url"),
		Logger:    zapLogger,
	})
}

func challengeCommand(c *cli.Context) error {
	vc, err := createClient(c)
	if err != nil {
		return err
	}

	ch, err := vc.RequestChallenge(c.Context, c.String("account-id"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, ch)
}

func remoteVerifyCommand(c *cli.Context) error {
	input, err := readInput(c, "record")
	if err != nil {
		return err
	}

	vc, err := createClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	var resp *types.VerifyResponse
	if c.Bool("blob") {
		resp, err = vc.VerifyBlob(ctx, input)
	} else {
		var req types.VerifyRequest
		if err := json.Unmarshal([]byte(input), &req); err != nil {
			return fmt.Errorf("record is not valid JSON: %w", err)
		}
		resp, err = vc.Verify(ctx, &req)
	}
	if err != nil {
		return err
	}

	if err := printJSON(c.App.Writer, resp); err != nil {
		return err
	}
	if !resp.Valid {
		return cli.Exit("", 1)
	}
	return nil
}
