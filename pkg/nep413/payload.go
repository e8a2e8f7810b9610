package nep413

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SignedPayload is the structure wallets encode and hash before signing
type SignedPayload struct {
	Message     string
	Nonce       []byte
	Recipient   string
	CallbackURL *string
}

// NewSignedPayload builds a payload without a callback URL, which is how
// every signature in this system is produced.
func NewSignedPayload(message string, nonce []byte, recipient string) *SignedPayload {
	return &SignedPayload{
		Message:   message,
		Nonce:     nonce,
		Recipient: recipient,
	}
}

// EncodePayload serializes the payload with the Borsh layout wallets use.
// Field order is part of the wire contract.
func EncodePayload(p *SignedPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("payload is nil")
	}
	if len(p.Nonce) != NonceLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidNonceLength, len(p.Nonce))
	}

	size := 4 + len(p.Message) + NonceLength + 4 + len(p.Recipient) + 1
	if p.CallbackURL != nil {
		size += 4 + len(*p.CallbackURL)
	}

	w := &borshWriter{}
	w.buf.Grow(size)

	w.writeString(p.Message)
	w.writeFixed(p.Nonce)
	w.writeString(p.Recipient)
	w.writeOptionalString(p.CallbackURL)

	return w.buf.Bytes(), nil
}

type borshWriter struct {
	buf bytes.Buffer
}

func (w *borshWriter) writeU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *borshWriter) writeString(s string) {
	w.writeU32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *borshWriter) writeFixed(b []byte) {
	w.buf.Write(b)
}

func (w *borshWriter) writeOptionalString(s *string) {
	if s == nil {
		w.buf.WriteByte(0)
		return
	}
	w.buf.WriteByte(1)
	w.writeString(*s)
}
