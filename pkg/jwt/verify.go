package jwt

import (
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Verify checks the token signature with key using the golang-jwt signing method
// named by the "alg" header. The key type must match what that method expects
// (e.g. []byte for HS256, *rsa.PublicKey for RS256, ed25519.PublicKey for EdDSA).
func (t *Token) Verify(key interface{}) error {
	if t.signature == nil {
		return gojwt.ErrTokenUnverifiable
	}
	method := gojwt.GetSigningMethod(t.header.Algorithm)
	if method == nil {
		return fmt.Errorf("%w: %q", gojwt.ErrTokenUnverifiable, t.header.Algorithm)
	}
	if err := method.Verify(t.unsigned, t.signature, key); err != nil {
		return fmt.Errorf("%w: %v", gojwt.ErrTokenSignatureInvalid, err)
	}
	return nil
}
