// Package tokenprovider supplies identity tokens to outgoing requests.
//
// The central type is CachingTokenProvider: it hands out a cached token while it
// is fresh and otherwise runs exactly one renewal at a time, sharing the result
// with every caller that asked while the renewal was in flight.
package tokenprovider

import (
	"context"
	"errors"
	"fmt"

	"github.com/turtacn/credkit/pkg/jwt"
)

// TokenContext describes the request a token is wanted for. It is passed
// through to renewal callbacks untouched.
type TokenContext struct {
	Identity  string
	Service   string
	Operation string

	// ForceReload skips the cache and asks for a new token.
	ForceReload bool
}

// AccessTokenProvider returns a token to attach to the next authenticated request.
type AccessTokenProvider interface {
	GetToken(ctx context.Context, tokenCtx TokenContext) (*jwt.Token, error)
}

// TokenOrString is what a renewal callback may hand back: either an already
// parsed token or its wire string.
type TokenOrString struct {
	token *jwt.Token
	wire  string
}

// FromToken wraps a parsed token.
func FromToken(t *jwt.Token) TokenOrString {
	return TokenOrString{token: t}
}

// FromString wraps a token wire string.
func FromString(s string) TokenOrString {
	return TokenOrString{wire: s}
}

// IsZero reports whether neither a token nor a string is set.
func (v TokenOrString) IsZero() bool {
	return v.token == nil && v.wire == ""
}

// Coerce normalizes the value to a token, parsing the string form if needed.
func (v TokenOrString) Coerce() (*jwt.Token, error) {
	if v.token != nil {
		return v.token, nil
	}
	if v.wire == "" {
		return nil, errors.New("renewal returned neither a token nor a token string")
	}
	return jwt.Parse(v.wire)
}

// RenewFunc obtains a new token from the identity service.
type RenewFunc func(ctx context.Context, tokenCtx TokenContext) (TokenOrString, error)

// TokenStringer is implemented by errors that carry a token wire string. Some
// legacy servers report a freshly issued token through the failure path; a
// renewal error implementing this interface whose string parses as a token is
// treated as a successful renewal.
type TokenStringer interface {
	TokenString() string
}

// RenewalError is a renewal failure whose value is a token string.
type RenewalError struct {
	Token string
}

func (e *RenewalError) Error() string {
	return fmt.Sprintf("renewal failed with token string value (%d bytes)", len(e.Token))
}

// TokenString returns the carried token string.
func (e *RenewalError) TokenString() string {
	return e.Token
}

// tokenFromFailure returns the token carried by err, if any.
func tokenFromFailure(err error) (*jwt.Token, bool) {
	var ts TokenStringer
	if !errors.As(err, &ts) {
		return nil, false
	}
	tok, parseErr := jwt.Parse(ts.TokenString())
	if parseErr != nil {
		return nil, false
	}
	return tok, true
}
