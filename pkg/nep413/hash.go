package nep413

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// TagBytes returns the little-endian encoding of MessageTag
func TagBytes() []byte {
	tag := make([]byte, 4)
	binary.LittleEndian.PutUint32(tag, MessageTag)
	return tag
}

// HashPayload computes sha256(tag || borsh(payload)), the digest a wallet signs
func HashPayload(p *SignedPayload) ([DigestLength]byte, error) {
	encoded, err := EncodePayload(p)
	if err != nil {
		return [DigestLength]byte{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	h := sha256.New()
	h.Write(TagBytes())
	h.Write(encoded)

	var digest [DigestLength]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

// HashPayloadHex returns the digest as lowercase hex, for debug output
func HashPayloadHex(p *SignedPayload) (string, error) {
	digest, err := HashPayload(p)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(digest[:]), nil
}
