package persistence

import (
	"encoding/json"
	"fmt"
	"time"
)

// MarshalNonceRecord serializes a NonceRecord to JSON bytes.
func MarshalNonceRecord(record *NonceRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil NonceRecord")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal NonceRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalNonceRecord deserializes a NonceRecord from JSON bytes.
func UnmarshalNonceRecord(data []byte) (*NonceRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record NonceRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to NonceRecord: %w", err)
	}

	return &record, nil
}

// ValidateNonceRecord checks the fields every store relies on
func ValidateNonceRecord(record *NonceRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil NonceRecord")
	}
	if record.Nonce == "" {
		return fmt.Errorf("nonce record has empty nonce")
	}
	if record.ExpiresAt <= 0 {
		return fmt.Errorf("nonce record has no expiry")
	}
	return nil
}

// RetentionTTL validates record and returns how long it must be kept from now.
// A record that is already expired cannot be consumed.
func RetentionTTL(record *NonceRecord, now time.Time) (time.Duration, error) {
	if err := ValidateNonceRecord(record); err != nil {
		return 0, err
	}
	ttl := record.TTL(now)
	if ttl <= 0 {
		return 0, fmt.Errorf("nonce record for %s already expired", record.Nonce)
	}
	return ttl, nil
}
