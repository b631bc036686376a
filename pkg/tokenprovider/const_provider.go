package tokenprovider

import (
	"context"

	"github.com/turtacn/credkit/pkg/errors"
	"github.com/turtacn/credkit/pkg/jwt"
)

// ConstAccessTokenProvider always returns the same token. Useful for short-lived
// tools that were handed a token out of band.
type ConstAccessTokenProvider struct {
	token *jwt.Token
}

// NewConstAccessTokenProvider creates a provider for a fixed token.
func NewConstAccessTokenProvider(token TokenOrString) (*ConstAccessTokenProvider, error) {
	if token.IsZero() {
		return nil, errors.ErrValidation("token")
	}
	tok, err := token.Coerce()
	if err != nil {
		return nil, err
	}
	return &ConstAccessTokenProvider{token: tok}, nil
}

// GetToken returns the fixed token, expired or not.
func (p *ConstAccessTokenProvider) GetToken(ctx context.Context, _ TokenContext) (*jwt.Token, error) {
	return p.token, nil
}

// CallbackTokenProvider calls its callback for every request; nothing is cached.
type CallbackTokenProvider struct {
	renew RenewFunc
}

// NewCallbackTokenProvider creates a provider around renew.
func NewCallbackTokenProvider(renew RenewFunc) (*CallbackTokenProvider, error) {
	if renew == nil {
		return nil, errors.ErrValidation("renew")
	}
	return &CallbackTokenProvider{renew: renew}, nil
}

// GetToken invokes the callback and parses its result.
func (p *CallbackTokenProvider) GetToken(ctx context.Context, tokenCtx TokenContext) (*jwt.Token, error) {
	v, err := p.renew(ctx, tokenCtx)
	if err != nil {
		return nil, err
	}
	return v.Coerce()
}

var (
	_ AccessTokenProvider = (*ConstAccessTokenProvider)(nil)
	_ AccessTokenProvider = (*CallbackTokenProvider)(nil)
)
