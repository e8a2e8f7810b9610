// Package challenge issues the messages a wallet is asked to sign.
package challenge

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/nearid/nep413-verifier/pkg/nep413"
	"github.com/nearid/nep413-verifier/pkg/types"
)

// BuildMessage returns the text a wallet signs to prove control of an account
// to recipient. Verifiers rebuild the same text when no message is supplied.
func BuildMessage(recipient, origin string) string {
	return fmt.Sprintf("Identify myself for %s at %s", recipient, origin)
}

// Issuer hands out fresh challenges bound to one recipient and origin
type Issuer struct {
	recipient string
	origin    string
	random    io.Reader
	now       func() time.Time
}

// NewIssuer creates an issuer reading nonces from crypto/rand
func NewIssuer(recipient, origin string) *Issuer {
	return &Issuer{
		recipient: recipient,
		origin:    origin,
		random:    rand.Reader,
		now:       time.Now,
	}
}

// WithRandom replaces the nonce source. Intended for tests.
func (i *Issuer) WithRandom(r io.Reader) *Issuer {
	i.random = r
	return i
}

// WithClock replaces the time source. Intended for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Recipient returns the recipient every challenge is scoped to
func (i *Issuer) Recipient() string {
	return i.recipient
}

// Message returns the text a wallet must sign for this issuer
func (i *Issuer) Message() string {
	return BuildMessage(i.recipient, i.origin)
}

// NewChallenge returns a challenge with a fresh 32-byte nonce. accountID may
// be empty when the caller does not know the account yet.
func (i *Issuer) NewChallenge(accountID string) (*types.Challenge, error) {
	nonce, err := nep413.GenerateNonce(i.random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge nonce: %w", err)
	}

	return &types.Challenge{
		ID:        uuid.New().String(),
		Message:   i.Message(),
		Recipient: i.recipient,
		Nonce:     nep413.EncodeNonce(nonce),
		IssuedAt:  i.now().UnixMilli(),
		AccountID: accountID,
	}, nil
}
