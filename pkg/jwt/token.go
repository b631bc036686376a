// Package jwt implements the identity token used to authenticate requests to the
// identity service: a three part, dot separated, base64url encoded JWT with a
// Virgil-specific content type.
//
// A Token is immutable. Its unsigned bytes and canonical string are computed once
// at construction and returned as-is afterwards.
package jwt

import (
	"strings"
	"time"

	"github.com/turtacn/credkit/pkg/constants"
	"github.com/turtacn/credkit/pkg/errors"
)

// Token is a parsed or synthesized identity token.
type Token struct {
	header    Header
	body      Body
	signature []byte
	unsigned  string
	str       string
}

// New builds a token from its parts. signature may be empty for a token that has
// not been signed yet; such a token renders without the third segment.
func New(header Header, body Body, signature []byte) (*Token, error) {
	unsigned, err := Encode(header, body)
	if err != nil {
		return nil, err
	}
	return newToken(header, body, signature, unsigned), nil
}

// Parse decodes a wire string into a Token. The received signing input is kept
// verbatim so String() reproduces wire exactly.
func Parse(wire string) (*Token, error) {
	d, err := Decode(wire)
	if err != nil {
		return nil, err
	}
	return newToken(d.Header, d.Body, d.Signature, d.SigningInput), nil
}

func newToken(header Header, body Body, signature []byte, unsigned string) *Token {
	t := &Token{
		header:   header,
		body:     body.clone(),
		unsigned: unsigned,
		str:      unsigned,
	}
	if len(signature) > 0 {
		t.signature = append([]byte(nil), signature...)
		t.str = unsigned + segmentSeparator + encodeSegment(signature)
	}
	return t
}

// String returns the canonical wire form.
func (t *Token) String() string {
	return t.str
}

// Header returns the token header.
func (t *Token) Header() Header {
	return t.header
}

// Body returns a copy of the token body.
func (t *Token) Body() Body {
	return t.body.clone()
}

// Signature returns a copy of the signature bytes, or nil for an unsigned token.
func (t *Token) Signature() []byte {
	if t.signature == nil {
		return nil
	}
	return append([]byte(nil), t.signature...)
}

// UnsignedBytes returns the bytes the signature covers.
func (t *Token) UnsignedBytes() []byte {
	return []byte(t.unsigned)
}

// Identity returns the subject with its prefix stripped.
func (t *Token) Identity() (string, error) {
	if !strings.HasPrefix(t.body.Subject, constants.SubjectPrefix) {
		return "", errors.ErrTokenFormat("subject", constants.SubjectPrefix)
	}
	return strings.TrimPrefix(t.body.Subject, constants.SubjectPrefix), nil
}

// AppID returns the issuer with its prefix stripped.
func (t *Token) AppID() (string, error) {
	if !strings.HasPrefix(t.body.Issuer, constants.IssuerPrefix) {
		return "", errors.ErrTokenFormat("issuer", constants.IssuerPrefix)
	}
	return strings.TrimPrefix(t.body.Issuer, constants.IssuerPrefix), nil
}

// IsExpired reports whether the token expired before at. A token whose expiry
// equals at (to the second) is still valid at that instant.
func (t *Token) IsExpired(at time.Time) bool {
	return t.body.ExpiresAt < at.Unix()
}

// Expired is IsExpired at the current time.
func (t *Token) Expired() bool {
	return t.IsExpired(time.Now())
}

// ExpiresAt returns the expiry as a time.
func (t *Token) ExpiresAt() time.Time {
	return time.Unix(t.body.ExpiresAt, 0)
}
