// Package receipt issues short-lived EdDSA JWTs attesting that an account
// proved control of a key to this verifier.
//
// A relying service that trusts the verifier only needs the issuer's public
// key (GET /receipt/pubkey or GET /receipt/jwks) to check a receipt offline.
package receipt

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/nearid/nep413-verifier/pkg/nep413"
	"golang.org/x/crypto/hkdf"
)

const (
	claimPublicKey = "public_key"
	claimNonce     = "nonce"

	// hkdfInfo binds derived keys to their purpose
	hkdfInfo = "nep413-verifier receipt signing key v1"
)

// Claims is the content of a receipt
type Claims struct {
	Issuer    string
	AccountID string
	Audience  string
	PublicKey string
	Nonce     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs and verifies receipts with a single Ed25519 key
type Issuer struct {
	name       string
	ttl        time.Duration
	privateKey jwk.Key
	publicKey  jwk.Key
	rawPublic  ed25519.PublicKey
	keyID      string
	now        func() time.Time
}

// NewIssuer wraps an Ed25519 private key
func NewIssuer(name string, ttl time.Duration, privateKey ed25519.PrivateKey) (*Issuer, error) {
	if name == "" {
		return nil, fmt.Errorf("receipt issuer name cannot be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("receipt ttl must be positive, got %s", ttl)
	}
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid receipt private key length %d", len(privateKey))
	}

	rawPublic := privateKey.Public().(ed25519.PublicKey)
	fingerprint := sha256.Sum256(rawPublic)
	keyID := hex.EncodeToString(fingerprint[:8])

	privKey, err := jwk.Import(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to import receipt private key: %w", err)
	}
	if err := privKey.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("failed to set key id: %w", err)
	}

	pubKey, err := jwk.PublicKeyOf(privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive receipt public key: %w", err)
	}
	if err := pubKey.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("failed to set key id: %w", err)
	}
	if err := pubKey.Set(jwk.AlgorithmKey, jwa.EdDSA()); err != nil {
		return nil, fmt.Errorf("failed to set key algorithm: %w", err)
	}
	if err := pubKey.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("failed to set key usage: %w", err)
	}

	return &Issuer{
		name:       name,
		ttl:        ttl,
		privateKey: privKey,
		publicKey:  pubKey,
		rawPublic:  rawPublic,
		keyID:      keyID,
		now:        time.Now,
	}, nil
}

// NewIssuerFromSecret derives the signing key from secret with HKDF-SHA256,
// so every replica configured with the same secret issues interchangeable receipts.
func NewIssuerFromSecret(name string, ttl time.Duration, secret []byte) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("receipt secret cannot be empty")
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), seed); err != nil {
		return nil, fmt.Errorf("failed to derive receipt key: %w", err)
	}

	return NewIssuer(name, ttl, ed25519.NewKeyFromSeed(seed))
}

// WithClock replaces the time source used for issuing and validating. Intended for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Name returns the iss claim placed in every receipt
func (i *Issuer) Name() string {
	return i.name
}

// KeyID returns the kid header placed in every receipt
func (i *Issuer) KeyID() string {
	return i.keyID
}

// PublicKey returns the verification key as "ed25519:<base58>"
func (i *Issuer) PublicKey() string {
	return nep413.FormatPublicKey(i.rawPublic)
}

// KeySet returns the verification key as a JWK set
func (i *Issuer) KeySet() (jwk.Set, error) {
	set := jwk.NewSet()
	if err := set.AddKey(i.publicKey); err != nil {
		return nil, fmt.Errorf("failed to build key set: %w", err)
	}
	return set, nil
}

// Issue signs a receipt for claims. Issuer, ID, IssuedAt and ExpiresAt are
// filled in by the issuer.
func (i *Issuer) Issue(claims *Claims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("cannot issue receipt for nil claims")
	}
	if claims.AccountID == "" || claims.Audience == "" {
		return "", fmt.Errorf("receipt requires account id and audience")
	}

	now := i.now()
	tok, err := jwt.NewBuilder().
		Issuer(i.name).
		Subject(claims.AccountID).
		Audience([]string{claims.Audience}).
		IssuedAt(now).
		Expiration(now.Add(i.ttl)).
		JwtID(uuid.New().String()).
		Claim(claimPublicKey, claims.PublicKey).
		Claim(claimNonce, claims.Nonce).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build receipt token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.EdDSA(), i.privateKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign receipt: %w", err)
	}
	return string(signed), nil
}

// Verify checks the signature, issuer, audience and expiry of a receipt
func (i *Issuer) Verify(token, audience string) (*Claims, error) {
	tok, err := jwt.Parse(
		[]byte(token),
		jwt.WithKey(jwa.EdDSA(), i.publicKey),
		jwt.WithValidate(true),
		jwt.WithIssuer(i.name),
		jwt.WithAudience(audience),
		jwt.WithClock(jwt.ClockFunc(i.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("receipt verification failed: %w", err)
	}

	claims := &Claims{Issuer: i.name, Audience: audience}
	var ok bool
	if claims.AccountID, ok = tok.Subject(); !ok {
		return nil, fmt.Errorf("subject claim not found in receipt")
	}
	claims.ID, _ = tok.JwtID()
	claims.IssuedAt, _ = tok.IssuedAt()
	claims.ExpiresAt, _ = tok.Expiration()
	if err := tok.Get(claimPublicKey, &claims.PublicKey); err != nil {
		return nil, fmt.Errorf("public_key claim not found in receipt: %w", err)
	}
	if err := tok.Get(claimNonce, &claims.Nonce); err != nil {
		return nil, fmt.Errorf("nonce claim not found in receipt: %w", err)
	}

	return claims, nil
}
