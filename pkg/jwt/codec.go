package jwt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/turtacn/credkit/pkg/errors"
)

const segmentSeparator = "."

// Decoded is the result of splitting and decoding a wire token.
type Decoded struct {
	Header    Header
	Body      Body
	Signature []byte

	// SigningInput is the first two encoded segments joined by a dot, exactly as received.
	SigningInput string
}

// Encode serializes header and body into the unsigned "header.body" form.
func Encode(header Header, body Body) (string, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("marshal jwt header: %w", err)
	}
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal jwt body: %w", err)
	}
	return encodeSegment(headerJSON) + segmentSeparator + encodeSegment(bodyJSON), nil
}

// Decode splits wire into header, body and signature. Every failure, whatever
// the cause, is reported as a malformed token error.
func Decode(wire string) (*Decoded, error) {
	parts := strings.Split(wire, segmentSeparator)
	if len(parts) != 3 {
		return nil, errors.ErrMalformedToken(fmt.Sprintf("expected 3 parts, got %d", len(parts)))
	}
	for _, part := range parts {
		if part == "" {
			return nil, errors.ErrMalformedToken("empty part")
		}
	}

	headerJSON, err := decodeSegment(parts[0])
	if err != nil {
		return nil, errors.ErrMalformedToken("header is not base64url").WithCause(err)
	}
	bodyJSON, err := decodeSegment(parts[1])
	if err != nil {
		return nil, errors.ErrMalformedToken("body is not base64url").WithCause(err)
	}
	signature, err := decodeSegment(parts[2])
	if err != nil {
		return nil, errors.ErrMalformedToken("signature is not base64url").WithCause(err)
	}

	var (
		header *Header
		body   *Body
	)
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, errors.ErrMalformedToken("header is not valid JSON").WithCause(err)
	}
	if header == nil {
		return nil, errors.ErrMalformedToken("header is not a JSON object")
	}
	if err := json.Unmarshal(bodyJSON, &body); err != nil {
		return nil, errors.ErrMalformedToken("body is not valid JSON").WithCause(err)
	}
	if body == nil {
		return nil, errors.ErrMalformedToken("body is not a JSON object")
	}
	return &Decoded{
		Header:       *header,
		Body:         *body,
		Signature:    signature,
		SigningInput: parts[0] + segmentSeparator + parts[1],
	}, nil
}

func encodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeSegment accepts both padded and unpadded base64url input.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
