package extractor

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nearid/nep413-verifier/pkg/types"
	"github.com/xeipuuv/gojsonschema"
)

// Extractor recovers a signed-message record from an upstream blob whose
// container format this system does not control. Implementations return nil
// when nothing usable can be recovered; that is an expected outcome.
type Extractor interface {
	TryExtractSignedPayload(blob []byte) *types.SignatureContext
}

// discriminator is how the JSON record starts when the wallet side encoded it
const discriminator = `{"accountId"`

// signatureContextSchema is the shape a recovered record must have
const signatureContextSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["accountId", "signature", "publicKey", "nonce", "timestamp"],
  "properties": {
    "accountId": {"type": "string", "minLength": 1},
    "signature": {"type": "string", "minLength": 1},
    "publicKey": {"type": "string", "minLength": 1},
    "nonce":     {"type": "string", "minLength": 1},
    "timestamp": {"type": "integer"}
  }
}`

// HeuristicExtractor finds a JSON object inside a blob that may be hex
// encoded, NUL padded, and surrounded by unrelated bytes.
type HeuristicExtractor struct {
	schema *gojsonschema.Schema
}

var _ Extractor = (*HeuristicExtractor)(nil)

// NewHeuristicExtractor compiles the record schema
func NewHeuristicExtractor() (*HeuristicExtractor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(signatureContextSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile signature context schema: %w", err)
	}
	return &HeuristicExtractor{schema: schema}, nil
}

// TryExtractSignedPayload never returns an error and never panics on input
func (e *HeuristicExtractor) TryExtractSignedPayload(blob []byte) *types.SignatureContext {
	if len(blob) == 0 {
		return nil
	}

	text := decodeMaybeHex(blob)
	text = bytes.ReplaceAll(text, []byte{0}, nil)

	candidate := locateObject(string(text))
	if candidate == "" {
		return nil
	}

	result, err := e.schema.Validate(gojsonschema.NewStringLoader(candidate))
	if err != nil || !result.Valid() {
		return nil
	}

	var ctx types.SignatureContext
	if err := json.Unmarshal([]byte(candidate), &ctx); err != nil {
		return nil
	}
	return &ctx
}

// ValidationErrors explains why a candidate JSON document does not match the
// record schema. Used by tooling; the extractor itself only needs a yes/no.
func (e *HeuristicExtractor) ValidationErrors(document []byte) []string {
	result, err := e.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return []string{err.Error()}
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, re.String())
	}
	return errs
}

// decodeMaybeHex hex-decodes the blob when it is entirely hex, otherwise
// returns it unchanged
func decodeMaybeHex(blob []byte) []byte {
	s := strings.TrimSpace(string(blob))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" || len(s)%2 != 0 || !isHex(s) {
		return blob
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return blob
	}
	return decoded
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// locateObject returns the substring from the record start to the last '}'.
// Falls back to the first '{' when the discriminator is not present.
func locateObject(text string) string {
	start := strings.Index(text, discriminator)
	if start < 0 {
		start = strings.Index(text, "{")
	}
	if start < 0 {
		return ""
	}

	end := strings.LastIndex(text, "}")
	if end < start {
		return ""
	}
	return text[start : end+1]
}
