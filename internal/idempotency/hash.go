// Package idempotency canonicalizes command requests and caches replayable responses.
package idempotency

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/blake2b"

	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

var (
	// ErrInvalidBody is returned when a request body is not a JSON object.
	ErrInvalidBody = errors.New("request body must be a JSON object")
	// ErrNonCanonicalBody is returned for valid JSON that RFC 8785 cannot represent,
	// such as numbers outside the IEEE-754 double range.
	ErrNonCanonicalBody = errors.New("request body cannot be canonicalized")
)

type envelope struct {
	Params map[string]string `json:"params"`
	Body   json.RawMessage   `json:"body"`
}

// ParseKey validates an Idempotency-Key header value and returns its canonical form.
func ParseKey(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apperrors.NewMissingIdempotencyKey()
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return "", apperrors.NewInvalidIdempotencyKey(trimmed)
	}
	return id.String(), nil
}

// Canonicalize renders path params and body as RFC 8785 JSON.
// An empty body is treated as {}.
func Canonicalize(params map[string]string, body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		trimmed = []byte("{}")
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, ErrInvalidBody
	}
	if params == nil {
		params = map[string]string{}
	}
	raw, err := json.Marshal(envelope{Params: params, Body: trimmed})
	if err != nil {
		return nil, fmt.Errorf("marshal request envelope: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonCanonicalBody, err)
	}
	return canonical, nil
}

// Hash returns the hex BLAKE2b-256 digest of the canonical request.
func Hash(params map[string]string, body []byte) (string, error) {
	canonical, err := Canonicalize(params, body)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
